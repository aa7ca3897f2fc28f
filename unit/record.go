package unit

import "time"

type Outcome int

const (
	Pending Outcome = iota
	Applied
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Skipped:
		return "skipped-already-present"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is the outcome of one unit within one runner invocation.
// Records are ephemeral reporting values, they are never persisted.
type Record struct {
	Name      string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
	Err       error
}

// LedgerEntry is one row of the durable history ledger written
// alongside every successful apply.
type LedgerEntry struct {
	Name      string
	AppliedAt time.Time
}

type Records []Record

func (rs Records) Names() (result []string) {
	for i := range rs {
		result = append(result, rs[i].Name)
	}
	return result
}

func (rs Records) Failed() (result Records) {
	for i := range rs {
		if rs[i].Outcome == Failed {
			result = append(result, rs[i])
		}
	}
	return result
}

// Ok reports whether every unit ended applied or already present.
func (rs Records) Ok() bool {
	for i := range rs {
		if rs[i].Outcome == Failed {
			return false
		}
	}
	return true
}
