package sqlgateway

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/vlogbase/evolve/internal/retry"
)

const (
	DefaultConnectionAttempts    = 10
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 2 * time.Second
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

type SQLConnector interface {
	Connect(ctx context.Context) (*sql.Conn, error)
	Timeout() time.Duration
	Close() error
}

// RetryingConnector checks a single connection out of the pool with
// incremental backoff and caches it for the rest of the run.
type RetryingConnector struct {
	options *ConnectOptions
	db      *sql.DB
	conn    *sql.Conn
}

var _ SQLConnector = (*RetryingConnector)(nil)

func MakeRetryingConnector(db *sql.DB, options *ConnectOptions) *RetryingConnector {
	return &RetryingConnector{db: db, options: options}
}

func (c *RetryingConnector) Timeout() time.Duration {
	return c.options.MaxTimeout
}

func (c *RetryingConnector) Connect(ctx context.Context) (*sql.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	var conn *sql.Conn
	err := retry.Incremental(ctx, c.options.RetryStep, c.options.MaxAttempts, func(attempt int) error {
		result, err := c.db.Conn(ctx)
		if err != nil {
			return retry.Error(errors.Wrap(err, "could not establish database connection"), attempt)
		}

		if err := result.PingContext(ctx); err != nil {
			_ = result.Close()
			return retry.Error(errors.Wrap(err, "database ping failed"), attempt)
		}

		conn = result
		return nil
	})

	if err != nil {
		return nil, err
	}

	c.conn = conn

	return conn, nil
}

func (c *RetryingConnector) Close() error {
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			return errors.Wrap(err, "could not close the checked out connection")
		}
	}

	return nil
}
