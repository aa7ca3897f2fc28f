package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"

	"github.com/pkg/errors"
	"github.com/vlogbase/evolve/internal/logger"
	"github.com/vlogbase/evolve/unit"
)

const DefaultLedgerTable = "schema_evolutions"

// ErrConnectionLost marks a mid-run connection failure. The runner
// treats it as fatal: without a connection no further unit can be
// detected or applied safely.
var ErrConnectionLost = errors.New("database connection lost")

type CommonOptions struct {
	LedgerTable string
}

// Gateway abstracts the schema store: catalog introspection, transactional
// application of a single unit, and the history ledger.
type Gateway interface {
	SetLogger(logger.Logger)
	Connect(ctx context.Context) error
	Schema() unit.Schema
	Apply(ctx context.Context, u unit.Unit) error
	InitLedger(ctx context.Context) error
	ReadLedger(ctx context.Context) ([]unit.LedgerEntry, error)
	Close() error
}

type ConnCloser func() error

// IsConnectionLost classifies driver-level connection failures that make
// the remainder of a run unsafe to attempt.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
