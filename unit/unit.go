package unit

import (
	"context"

	"github.com/pkg/errors"
)

var ErrDuplicateName = errors.New("duplicate unit name in registry")

// Schema is a read-only view of the target database catalog.
// Detection predicates must use it and nothing else, so that
// detection can never mutate state.
type Schema interface {
	HasTable(ctx context.Context, table string) (bool, error)
	HasColumn(ctx context.Context, table, column string) (bool, error)
}

// Execer runs schema-mutating statements inside the transaction
// opened by the runner for a single unit.
type Execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// Unit is a single idempotent schema change. Detect reports whether
// the change is already present in the schema. Apply performs the
// change and is only ever invoked after Detect returned false.
type Unit interface {
	Name() string
	Detect(ctx context.Context, s Schema) (bool, error)
	Apply(ctx context.Context, e Execer) error
}

// Registry is an ordered collection of units. Insertion order is run
// order; later units may assume earlier ones already ran.
type Registry struct {
	units []Unit
	names map[string]struct{}
}

func NewRegistry(units ...Unit) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{})}

	for _, u := range units {
		if err := r.Add(u); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) Add(u Unit) error {
	if _, ok := r.names[u.Name()]; ok {
		return errors.Wrapf(ErrDuplicateName, "[%s]", u.Name())
	}

	r.names[u.Name()] = struct{}{}
	r.units = append(r.units, u)

	return nil
}

func (r *Registry) Units() []Unit {
	return r.units
}

func (r *Registry) Len() int {
	return len(r.units)
}

func (r *Registry) Names() (result []string) {
	for i := range r.units {
		result = append(result, r.units[i].Name())
	}
	return result
}
