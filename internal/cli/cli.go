package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vlogbase/evolve"
	"github.com/vlogbase/evolve/unit"
)

var (
	// ErrNoDatabaseURL is the configuration error: without a database
	// url nothing can run and the process must exit non-zero before
	// any unit is attempted.
	ErrNoDatabaseURL = errors.New("database url was not provided")

	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

type (
	CloserFunc func() error

	Config struct {
		DatabaseURL string
		LedgerTable string
	}

	App struct {
		runner *evolve.Runner
	}
)

// NewFromYaml builds the app from a yaml config file. Values wrapped in
// %% are resolved from the environment.
func NewFromYaml(path string, registry *unit.Registry, opts ...evolve.OptionFunc) (*App, CloserFunc, error) {
	cfg, err := createConfigFromYaml(path)
	if err != nil {
		return nil, nil, err
	}

	return New(cfg, registry, opts...)
}

// NewFromEnv builds the app from the DATABASE_URL environment variable,
// the convention every maintenance script around the runner follows.
func NewFromEnv(registry *unit.Registry, opts ...evolve.OptionFunc) (*App, CloserFunc, error) {
	return New(createConfigFromEnv(), registry, opts...)
}

func New(cfg Config, registry *unit.Registry, opts ...evolve.OptionFunc) (*App, CloserFunc, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, ErrNoDatabaseURL
	}

	runner, closer, err := createRunner(cfg, registry, opts...)
	if err != nil {
		return nil, nil, err
	}

	return &App{runner: runner}, CloserFunc(closer), nil
}

func (app *App) Run(ctx context.Context) (unit.Records, error) {
	return app.runner.Run(ctx)
}

func (app *App) Status(ctx context.Context) (unit.Records, error) {
	return app.runner.Status(ctx)
}

func (app *App) History(ctx context.Context) ([]unit.LedgerEntry, error) {
	return app.runner.History(ctx)
}
