package sqlgateway

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/vlogbase/evolve/internal/database"
	"github.com/vlogbase/evolve/internal/logger"
	"github.com/vlogbase/evolve/unit"
)

// Dialect supplies the SQL that differs between schema stores: catalog
// introspection and the history ledger queries. Introspection queries
// take the table (and column) name as bind parameters and return a count.
type Dialect interface {
	TableExistsQuery() string
	ColumnExistsQuery() string
	CreateLedgerQuery() string
	InsertLedgerQuery() string
	ReadLedgerQuery() string
}

type MySQLOptions struct {
	database.CommonOptions
}

type PostgresOptions struct {
	database.CommonOptions
}

type SqliteOptions struct {
	database.CommonOptions
}

type SQLGateway struct {
	lg        logger.Logger
	connector SQLConnector
	conn      *sql.Conn
	dialect   Dialect
}

var _ database.Gateway = (*SQLGateway)(nil)
var _ unit.Schema = (*SQLGateway)(nil)

func NewGateway(connector SQLConnector, dialect Dialect) (*SQLGateway, database.ConnCloser) {
	g := &SQLGateway{
		lg:        &logger.NullLogger{},
		connector: connector,
		dialect:   dialect,
	}

	return g, g.Close
}

func (g *SQLGateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *SQLGateway) Connect(ctx context.Context) error {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return err
	}

	g.conn = conn

	return nil
}

func (g *SQLGateway) Close() error {
	return g.connector.Close()
}

func (g *SQLGateway) Schema() unit.Schema {
	return g
}

func (g *SQLGateway) HasTable(ctx context.Context, table string) (bool, error) {
	query := g.dialect.TableExistsQuery()
	g.lg.SQL(query, table)

	var count int
	if err := g.conn.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return false, errors.Wrapf(err, "could not check existence of table [%s]", table)
	}

	return count > 0, nil
}

func (g *SQLGateway) HasColumn(ctx context.Context, table, column string) (bool, error) {
	query := g.dialect.ColumnExistsQuery()
	g.lg.SQL(query, table, column)

	var count int
	if err := g.conn.QueryRowContext(ctx, query, table, column).Scan(&count); err != nil {
		return false, errors.Wrapf(err, "could not check existence of column [%s.%s]", table, column)
	}

	return count > 0, nil
}

// Apply runs the unit's statements and the ledger insert inside a single
// transaction. Either the whole change lands together with its ledger row
// or nothing does.
func (g *SQLGateway) Apply(ctx context.Context, u unit.Unit) error {
	tx, err := g.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrapf(err, "could not start transaction for unit [%s]", u.Name())
	}

	executor := &txExecutor{tx: tx, lg: g.lg}

	if err := u.Apply(ctx, executor); err != nil {
		return rollback(tx, err)
	}

	insertQuery := g.dialect.InsertLedgerQuery()
	g.lg.SQL(insertQuery, u.Name())
	if _, err := tx.ExecContext(ctx, insertQuery, u.Name(), time.Now().UTC()); err != nil {
		return rollback(tx, errors.Wrapf(err, "could not write ledger entry for unit [%s]", u.Name()))
	}

	if err := tx.Commit(); err != nil {
		return rollback(tx, errors.Wrapf(err, "could not commit unit [%s]", u.Name()))
	}

	return nil
}

func (g *SQLGateway) InitLedger(ctx context.Context) error {
	query := g.dialect.CreateLedgerQuery()
	g.lg.SQL(query)

	if _, err := g.conn.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, "could not create the history ledger table")
	}

	return nil
}

func (g *SQLGateway) ReadLedger(ctx context.Context) ([]unit.LedgerEntry, error) {
	query := g.dialect.ReadLedgerQuery()
	g.lg.SQL(query)

	rows, err := g.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the history ledger")
	}

	defer func() {
		_ = rows.Close()
	}()

	var entries []unit.LedgerEntry
	for rows.Next() {
		var entry unit.LedgerEntry
		if err := rows.Scan(&entry.Name, &entry.AppliedAt); err != nil {
			return nil, errors.Wrap(err, "could not scan a history ledger entry")
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "could not iterate the history ledger")
	}

	return entries, nil
}

func rollback(tx *sql.Tx, cause error) error {
	if errRb := tx.Rollback(); errRb != nil && !errors.Is(errRb, sql.ErrTxDone) {
		return errors.Wrapf(errRb, "could not rollback transaction after error %v", cause)
	}

	return cause
}

type txExecutor struct {
	tx *sql.Tx
	lg logger.Logger
}

var _ unit.Execer = (*txExecutor)(nil)

func (e *txExecutor) Exec(ctx context.Context, query string, args ...interface{}) error {
	e.lg.SQL(query, args...)

	if _, err := e.tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return nil
}
