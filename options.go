package evolve

import (
	"github.com/vlogbase/evolve/internal/logger"
)

type OptionFunc func(*Runner) error

// UseColorLogger makes the runner report progress through p with
// aurora-colored output. printSql additionally echoes every statement,
// printDebug the per-step detail.
func UseColorLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return func(r *Runner) error {
		r.lg = logger.NewColorLogger(p, printSql, printDebug)
		return nil
	}
}

// UseBWLogger is UseColorLogger without the colors, for dumb terminals
// and log collectors.
func UseBWLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return func(r *Runner) error {
		r.lg = logger.NewBWLogger(p, printSql, printDebug)
		return nil
	}
}
