package evolve

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vlogbase/evolve/internal/database"
	"github.com/vlogbase/evolve/internal/logger"
	"github.com/vlogbase/evolve/unit"
)

var ErrGatewayNotInitialized = errors.New("database gateway has not been initialized")
var ErrNoRegistry = errors.New("unit registry has not been provided")

// ErrConnectionLost is returned by Run when the connection drops mid-run
// and the remaining units are aborted.
var ErrConnectionLost = database.ErrConnectionLost

type CloserFunc func() error

// Runner applies an ordered registry of schema-evolution units.
// Detection decides per unit whether anything needs to happen; every
// apply runs inside its own transaction together with its ledger row.
type Runner struct {
	lg        logger.Logger
	gateway   database.Gateway
	registry  *unit.Registry
	closerFns []CloserFunc
}

// NewRunner creates a runner for the given registry using option
// callbacks to choose the database gateway and logging. Exactly one
// of the Use<Driver> options is required.
func NewRunner(registry *unit.Registry, opts ...OptionFunc) (*Runner, CloserFunc, error) {
	r := new(Runner)
	r.lg = &logger.NullLogger{}
	r.registry = registry

	for _, oFunc := range opts {
		if err := oFunc(r); err != nil {
			return nil, nil, err
		}
	}

	if r.gateway == nil {
		return nil, nil, ErrGatewayNotInitialized
	}

	if r.registry == nil {
		if err := r.close(); err != nil {
			r.lg.Error(err)
		}

		return nil, nil, ErrNoRegistry
	}

	r.gateway.SetLogger(r.lg)

	return r, r.close, nil
}

// Run walks the registry in order. Per-unit failures are recorded and
// the run continues; only connection acquisition failure, connection
// loss and context expiry abort the remaining units. The returned
// records always follow registry order.
func (r *Runner) Run(ctx context.Context) (unit.Records, error) {
	if err := r.gateway.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "could not acquire a database connection")
	}

	if err := r.gateway.InitLedger(ctx); err != nil {
		return nil, err
	}

	schema := r.gateway.Schema()
	records := make(unit.Records, 0, r.registry.Len())

	for _, u := range r.registry.Units() {
		if err := ctx.Err(); err != nil {
			return records, errors.Wrap(err, "run aborted")
		}

		rec := unit.Record{Name: u.Name(), StartedAt: time.Now()}
		r.lg.Debugf("detecting [%s]", u.Name())

		present, err := u.Detect(ctx, schema)
		if err != nil {
			records = append(records, r.failed(&rec, errors.Wrapf(err, "detection failed for unit [%s]", u.Name())))
			if database.IsConnectionLost(err) {
				return records, errors.Wrapf(database.ErrConnectionLost, "while detecting unit [%s]", u.Name())
			}
			continue
		}

		if present {
			rec.Outcome = unit.Skipped
			rec.Duration = time.Since(rec.StartedAt)
			records = append(records, rec)
			r.lg.Infof("skipped [%s]: change already present", u.Name())
			continue
		}

		r.lg.Debugf("applying [%s]", u.Name())

		if err := r.gateway.Apply(ctx, u); err != nil {
			records = append(records, r.failed(&rec, errors.Wrapf(err, "apply failed for unit [%s]", u.Name())))
			if database.IsConnectionLost(err) {
				return records, errors.Wrapf(database.ErrConnectionLost, "while applying unit [%s]", u.Name())
			}
			continue
		}

		rec.Outcome = unit.Applied
		rec.Duration = time.Since(rec.StartedAt)
		records = append(records, rec)
		r.lg.Successf("applied [%s] in %s", u.Name(), rec.Duration)
	}

	r.summarize(records)

	return records, nil
}

// Status runs detection only and mutates nothing. Units whose change is
// missing are reported pending, present ones skipped, detection failures
// failed.
func (r *Runner) Status(ctx context.Context) (unit.Records, error) {
	if err := r.gateway.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "could not acquire a database connection")
	}

	schema := r.gateway.Schema()
	records := make(unit.Records, 0, r.registry.Len())

	for _, u := range r.registry.Units() {
		if err := ctx.Err(); err != nil {
			return records, errors.Wrap(err, "status aborted")
		}

		rec := unit.Record{Name: u.Name(), StartedAt: time.Now()}

		present, err := u.Detect(ctx, schema)
		if err != nil {
			records = append(records, r.failed(&rec, errors.Wrapf(err, "detection failed for unit [%s]", u.Name())))
			if database.IsConnectionLost(err) {
				return records, errors.Wrapf(database.ErrConnectionLost, "while detecting unit [%s]", u.Name())
			}
			continue
		}

		if present {
			rec.Outcome = unit.Skipped
		} else {
			rec.Outcome = unit.Pending
		}

		rec.Duration = time.Since(rec.StartedAt)
		records = append(records, rec)
	}

	return records, nil
}

// History reads the durable ledger of applied units.
func (r *Runner) History(ctx context.Context) ([]unit.LedgerEntry, error) {
	if err := r.gateway.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "could not acquire a database connection")
	}

	if err := r.gateway.InitLedger(ctx); err != nil {
		return nil, err
	}

	return r.gateway.ReadLedger(ctx)
}

func (r *Runner) failed(rec *unit.Record, err error) unit.Record {
	rec.Outcome = unit.Failed
	rec.Err = err
	rec.Duration = time.Since(rec.StartedAt)
	r.lg.Error(err)
	return *rec
}

func (r *Runner) summarize(records unit.Records) {
	var applied, skipped, failed int
	for i := range records {
		switch records[i].Outcome {
		case unit.Applied:
			applied++
		case unit.Skipped:
			skipped++
		case unit.Failed:
			failed++
		}
	}

	r.lg.Infof("run complete: %d applied, %d skipped, %d failed", applied, skipped, failed)
}

func (r *Runner) close() error {
	if r.gateway == nil {
		return ErrGatewayNotInitialized
	}

	var result error
	for _, fn := range r.closerFns {
		if err := fn(); err != nil {
			r.lg.Error(err)
			result = err
		}
	}

	return result
}
