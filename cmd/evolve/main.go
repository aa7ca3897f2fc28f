package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/logrusorgru/aurora/v3"

	"github.com/vlogbase/evolve"
	"github.com/vlogbase/evolve/internal/cli"
	"github.com/vlogbase/evolve/unit"
)

func main() {
	runCmd := flag.Bool("run", false, "apply all pending schema evolutions")
	statusCmd := flag.Bool("status", false, "report per-unit state without mutating anything")
	historyCmd := flag.Bool("history", false, "print the ledger of applied evolutions")

	configPath := flag.String("config", "", "path to a yaml configuration file")
	databaseURL := flag.String("db", "", "database url, overrides config and DATABASE_URL")
	printSql := flag.Bool("sql", false, "echo every executed statement")
	printDebug := flag.Bool("debug", false, "verbose per-step output")

	flag.Parse()

	reg, err := registry()
	if err != nil {
		fail(err)
	}

	app, closer, err := createApp(*configPath, *databaseURL, reg, *printSql, *printDebug)
	if err != nil {
		fail(err)
	}

	defer func() {
		if err := closer(); err != nil {
			fmt.Println(aurora.Red("evolve: "), err.Error())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	switch {
	case *runCmd:
		records, err := app.Run(ctx)
		printRecords(records)
		if err != nil {
			fail(err)
		}
		if !records.Ok() {
			fail(fmt.Errorf("%d unit(s) failed", len(records.Failed())))
		}
		fmt.Println(aurora.Green("evolve: "), "all done")
	case *statusCmd:
		records, err := app.Status(ctx)
		printRecords(records)
		if err != nil {
			fail(err)
		}
	case *historyCmd:
		entries, err := app.History(ctx)
		if err != nil {
			fail(err)
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\n", e.AppliedAt.Format(time.RFC3339), e.Name)
		}
	default:
		fail(fmt.Errorf("no command given, expected one of -run, -status, -history"))
	}
}

func createApp(configPath, databaseURL string, reg *unit.Registry, printSql, printDebug bool) (*cli.App, cli.CloserFunc, error) {
	lg := evolve.UseColorLogger(log.New(os.Stdout, "", 0), printSql, printDebug)

	if databaseURL != "" {
		return cli.New(cli.Config{DatabaseURL: databaseURL}, reg, lg)
	}

	if configPath != "" {
		return cli.NewFromYaml(configPath, reg, lg)
	}

	return cli.NewFromEnv(reg, lg)
}

func printRecords(records unit.Records) {
	for _, rec := range records {
		switch rec.Outcome {
		case unit.Applied:
			fmt.Println(aurora.Green(fmt.Sprintf("  applied  %s (%s)", rec.Name, rec.Duration)))
		case unit.Skipped:
			fmt.Println(aurora.Gray(15, fmt.Sprintf("  skipped  %s: already present", rec.Name)))
		case unit.Pending:
			fmt.Println(aurora.Yellow(fmt.Sprintf("  pending  %s", rec.Name)))
		case unit.Failed:
			fmt.Println(aurora.Red(fmt.Sprintf("  failed   %s: %s", rec.Name, rec.Err)))
		}
	}
}

func fail(err error) {
	fmt.Println(aurora.Red("evolve: "), err.Error())
	os.Exit(1)
}
