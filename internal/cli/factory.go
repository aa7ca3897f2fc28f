package cli

import (
	"io/ioutil"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/xo/dburl"
	"gopkg.in/yaml.v2"

	"github.com/vlogbase/evolve"
	"github.com/vlogbase/evolve/unit"
)

const databaseURLVar = "DATABASE_URL"

type (
	runnerFactory func(db *sqlx.DB, cfg Config, registry *unit.Registry, opts []evolve.OptionFunc) (*evolve.Runner, evolve.CloserFunc, error)

	evolutions struct {
		DatabaseURL string `yaml:"database_url"`
		LedgerTable string `yaml:"ledger_table"`
	}

	configFile struct {
		Version    string     `yaml:"version"`
		Evolutions evolutions `yaml:"evolutions"`
	}
)

var factories = map[string]runnerFactory{
	"mysql":    createMySQLRunner,
	"postgres": createPostgresRunner,
	"sqlite3":  createSqliteRunner,
}

func createConfigFromYaml(path string) (Config, error) {
	var cfg Config

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "could not open evolve configuration file")
	}

	defer func() {
		_ = f.Close()
	}()

	b, err := ioutil.ReadAll(f)
	if err != nil {
		return cfg, errors.Wrap(err, "could not read evolve configuration file")
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return cfg, errors.Wrap(err, "could not parse evolve configuration file")
	}

	cfg.DatabaseURL = resolveEnvPlaceholder(cfgFile.Evolutions.DatabaseURL)
	cfg.LedgerTable = resolveEnvPlaceholder(cfgFile.Evolutions.LedgerTable)

	if cfg.DatabaseURL == "" {
		return cfg, ErrNoDatabaseURL
	}

	return cfg, nil
}

func createConfigFromEnv() Config {
	return Config{DatabaseURL: os.Getenv(databaseURLVar)}
}

// resolveEnvPlaceholder turns %%SOME_VAR%% into the value of SOME_VAR.
func resolveEnvPlaceholder(v string) string {
	if strings.HasPrefix(v, "%%") && strings.HasSuffix(v, "%%") {
		return os.Getenv(strings.ReplaceAll(v, "%%", ""))
	}

	return v
}

func createRunner(cfg Config, registry *unit.Registry, opts ...evolve.OptionFunc) (*evolve.Runner, evolve.CloserFunc, error) {
	u, err := dburl.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not parse database url [%s]", cfg.DatabaseURL)
	}

	factory, ok := factories[u.Driver]
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnsupportedDriver, "[%s]", u.Driver)
	}

	db, err := sqlx.Open(u.Driver, u.DSN)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open a [%s] database", u.Driver)
	}

	runner, closer, err := factory(db, cfg, registry, opts)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, nil, errors.Wrap(err, closeErr.Error())
		}

		return nil, nil, err
	}

	wrappedCloser := func() error {
		if err := closer(); err != nil {
			_ = db.Close()
			return err
		}

		return db.Close()
	}

	return runner, wrappedCloser, nil
}

func createMySQLRunner(db *sqlx.DB, cfg Config, registry *unit.Registry, opts []evolve.OptionFunc) (*evolve.Runner, evolve.CloserFunc, error) {
	var mysqlOpts []evolve.MySQLOptionFunc
	if cfg.LedgerTable != "" {
		mysqlOpts = append(mysqlOpts, evolve.WithMySQLLedgerTable(cfg.LedgerTable))
	}

	opts = append(opts, evolve.UseMySQL(db.DB, mysqlOpts...))

	return evolve.NewRunner(registry, opts...)
}

func createPostgresRunner(db *sqlx.DB, cfg Config, registry *unit.Registry, opts []evolve.OptionFunc) (*evolve.Runner, evolve.CloserFunc, error) {
	var pgOpts []evolve.PostgresOptionFunc
	if cfg.LedgerTable != "" {
		pgOpts = append(pgOpts, evolve.WithPostgresLedgerTable(cfg.LedgerTable))
	}

	opts = append(opts, evolve.UsePostgres(db.DB, pgOpts...))

	return evolve.NewRunner(registry, opts...)
}

func createSqliteRunner(db *sqlx.DB, cfg Config, registry *unit.Registry, opts []evolve.OptionFunc) (*evolve.Runner, evolve.CloserFunc, error) {
	var sqliteOpts []evolve.SqliteOptionFunc
	if cfg.LedgerTable != "" {
		sqliteOpts = append(sqliteOpts, evolve.WithSqliteLedgerTable(cfg.LedgerTable))
	}

	opts = append(opts, evolve.UseSqlite(db.DB, sqliteOpts...))

	return evolve.NewRunner(registry, opts...)
}
