package evolve

import (
	"database/sql"
	"time"

	"github.com/vlogbase/evolve/internal/database"
	"github.com/vlogbase/evolve/internal/database/sqlgateway"
	"github.com/vlogbase/evolve/internal/database/sqlgateway/mysql"
	"github.com/vlogbase/evolve/internal/database/sqlgateway/postgres"
	"github.com/vlogbase/evolve/internal/database/sqlgateway/sqlite"
)

type (
	MySQLOptionFunc    func(*sqlgateway.MySQLOptions, *sqlgateway.ConnectOptions)
	PostgresOptionFunc func(*sqlgateway.PostgresOptions, *sqlgateway.ConnectOptions)
	SqliteOptionFunc   func(*sqlgateway.SqliteOptions, *sqlgateway.ConnectOptions)
)

func UseMySQL(db *sql.DB, options ...MySQLOptionFunc) OptionFunc {
	return func(r *Runner) error {
		mysqlOpts := &sqlgateway.MySQLOptions{
			CommonOptions: database.CommonOptions{
				LedgerTable: database.DefaultLedgerTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(mysqlOpts, connectOpts)
		}

		connector := sqlgateway.MakeRetryingConnector(db, connectOpts)
		gateway, closer := sqlgateway.NewGateway(connector, mysql.NewDialect(mysqlOpts.LedgerTable))

		r.gateway = gateway
		r.closerFns = append(r.closerFns, CloserFunc(closer))

		return nil
	}
}

func UsePostgres(db *sql.DB, options ...PostgresOptionFunc) OptionFunc {
	return func(r *Runner) error {
		pgOpts := &sqlgateway.PostgresOptions{
			CommonOptions: database.CommonOptions{
				LedgerTable: database.DefaultLedgerTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(pgOpts, connectOpts)
		}

		connector := sqlgateway.MakeRetryingConnector(db, connectOpts)
		gateway, closer := sqlgateway.NewGateway(connector, postgres.NewDialect(pgOpts.LedgerTable))

		r.gateway = gateway
		r.closerFns = append(r.closerFns, CloserFunc(closer))

		return nil
	}
}

func UseSqlite(db *sql.DB, options ...SqliteOptionFunc) OptionFunc {
	return func(r *Runner) error {
		sqliteOpts := &sqlgateway.SqliteOptions{
			CommonOptions: database.CommonOptions{
				LedgerTable: database.DefaultLedgerTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(sqliteOpts, connectOpts)
		}

		connector := sqlgateway.MakeRetryingConnector(db, connectOpts)
		gateway, closer := sqlgateway.NewGateway(connector, sqlite.NewDialect(sqliteOpts.LedgerTable))

		r.gateway = gateway
		r.closerFns = append(r.closerFns, CloserFunc(closer))

		return nil
	}
}

func WithMySQLLedgerTable(ledgerTable string) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.LedgerTable = ledgerTable
	}
}

func WithMySQLMaxConnectionAttempts(attempts int) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}

func WithMySQLConnectionTimeout(timeout time.Duration) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithPostgresLedgerTable(ledgerTable string) PostgresOptionFunc {
	return func(pgOpts *sqlgateway.PostgresOptions, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.LedgerTable = ledgerTable
	}
}

func WithPostgresMaxConnectionAttempts(attempts int) PostgresOptionFunc {
	return func(pgOpts *sqlgateway.PostgresOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}

func WithPostgresConnectionTimeout(timeout time.Duration) PostgresOptionFunc {
	return func(pgOpts *sqlgateway.PostgresOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithSqliteLedgerTable(ledgerTable string) SqliteOptionFunc {
	return func(sqliteOpts *sqlgateway.SqliteOptions, connectOpts *sqlgateway.ConnectOptions) {
		sqliteOpts.LedgerTable = ledgerTable
	}
}

func WithSqliteMaxConnectionAttempts(attempts int) SqliteOptionFunc {
	return func(sqliteOpts *sqlgateway.SqliteOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}

func WithSqliteConnectionTimeout(timeout time.Duration) SqliteOptionFunc {
	return func(sqliteOpts *sqlgateway.SqliteOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}
