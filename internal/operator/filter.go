package operator

import "github.com/minidb/engine/internal/plan"

// Filter passes through child rows matching pred.
type Filter struct {
	child Operator
	pred  *plan.Predicate
}

// NewFilter wraps child with a predicate check. A nil pred passes every
// row through unchanged.
func NewFilter(child Operator, pred *plan.Predicate) *Filter {
	return &Filter{child: child, pred: pred}
}

func (f *Filter) Open() error { return f.child.Open() }

func (f *Filter) Next() (Row, bool, error) {
	for {
		row, ok, err := f.child.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		if evalPredicate(row, f.pred) {
			return row, true, nil
		}
	}
}

func (f *Filter) Close() error { return f.child.Close() }
