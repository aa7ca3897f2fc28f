package unit

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrAmbiguousSchema signals that detection found the schema in a state
// the unit cannot classify as either done or not done. The unit must
// fail rather than guess; an operator has to resolve the state by hand.
var ErrAmbiguousSchema = errors.New("schema is in an ambiguous state")

var ErrNoStatements = errors.New("unit has no statements to execute")

type DetectFunc func(ctx context.Context, s Schema) (bool, error)

// SQLUnit is a declarative unit: a catalog predicate plus the DDL/DML
// statements that make the predicate true. All statements run inside
// a single transaction managed by the runner.
type SQLUnit struct {
	name       string
	detect     DetectFunc
	statements []string
}

var _ Unit = (*SQLUnit)(nil)

func (u *SQLUnit) Name() string {
	return u.name
}

func (u *SQLUnit) Detect(ctx context.Context, s Schema) (bool, error) {
	return u.detect(ctx, s)
}

func (u *SQLUnit) Apply(ctx context.Context, e Execer) error {
	if len(u.statements) == 0 {
		return errors.Wrapf(ErrNoStatements, "[%s]", u.name)
	}

	for i := range u.statements {
		if err := e.Exec(ctx, u.statements[i]); err != nil {
			return errors.Wrapf(err, "statement %d of unit [%s] failed", i+1, u.name)
		}
	}

	return nil
}

// Raw creates a unit from an arbitrary detection predicate and statements.
func Raw(name string, detect DetectFunc, statements ...string) *SQLUnit {
	return &SQLUnit{name: name, detect: detect, statements: statements}
}

// AddColumn creates a unit that adds a column with the given definition,
// skipping when the column already exists.
func AddColumn(table, column, definition string) *SQLUnit {
	return &SQLUnit{
		name: fmt.Sprintf("add_column_%s_%s", table, column),
		detect: func(ctx context.Context, s Schema) (bool, error) {
			return s.HasColumn(ctx, table, column)
		},
		statements: []string{
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition),
		},
	}
}

// AddTable creates a unit that runs createSQL when the table is absent.
func AddTable(table, createSQL string) *SQLUnit {
	return &SQLUnit{
		name: fmt.Sprintf("add_table_%s", table),
		detect: func(ctx context.Context, s Schema) (bool, error) {
			return s.HasTable(ctx, table)
		},
		statements: []string{createSQL},
	}
}

// DropColumn creates a unit that drops a column, treating an already
// absent column as done.
func DropColumn(table, column string) *SQLUnit {
	return &SQLUnit{
		name: fmt.Sprintf("drop_column_%s_%s", table, column),
		detect: func(ctx context.Context, s Schema) (bool, error) {
			exists, err := s.HasColumn(ctx, table, column)
			if err != nil {
				return false, err
			}
			return !exists, nil
		},
		statements: []string{
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, column),
		},
	}
}

// RenameColumn creates a unit that renames a column. Detection refuses
// to guess when both the old and the new column exist, or when neither
// does: both states mean a previous run or a manual change left the
// table in a shape this unit did not produce and cannot finish.
func RenameColumn(table, from, to string) *SQLUnit {
	return &SQLUnit{
		name: fmt.Sprintf("rename_column_%s_%s_to_%s", table, from, to),
		detect: func(ctx context.Context, s Schema) (bool, error) {
			hasFrom, err := s.HasColumn(ctx, table, from)
			if err != nil {
				return false, err
			}

			hasTo, err := s.HasColumn(ctx, table, to)
			if err != nil {
				return false, err
			}

			switch {
			case hasFrom && hasTo:
				return false, errors.Wrapf(
					ErrAmbiguousSchema,
					"both [%s] and [%s] exist on table [%s]",
					from, to, table,
				)
			case !hasFrom && !hasTo:
				return false, errors.Wrapf(
					ErrAmbiguousSchema,
					"neither [%s] nor [%s] exists on table [%s]",
					from, to, table,
				)
			case hasTo:
				return true, nil
			default:
				return false, nil
			}
		},
		statements: []string{
			fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, from, to),
		},
	}
}
