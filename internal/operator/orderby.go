package operator

import (
	"sort"
	"strings"

	"github.com/minidb/engine/internal/bptree"
	"github.com/minidb/engine/internal/plan"
)

// OrderBy sorts child's rows by one or more keys. Sorting is stable and
// applies keys from last to first, each pass a single-key stable sort —
// the same trick as sorting by the least significant key first gives a
// multi-key sort without a combined comparator. A nil value always sorts
// last regardless of the key's direction.
type OrderBy struct {
	child Operator
	keys  []plan.OrderKey

	rows []Row
	idx  int
}

// NewOrderBy wraps child, sorting its rows by keys.
func NewOrderBy(child Operator, keys []plan.OrderKey) *OrderBy {
	return &OrderBy{child: child, keys: keys}
}

func (o *OrderBy) Open() error {
	rows, err := drainAll(o.child)
	if err != nil {
		return err
	}
	for i := len(o.keys) - 1; i >= 0; i-- {
		k := o.keys[i]
		desc := strings.EqualFold(k.Direction, "DESC")
		sort.SliceStable(rows, func(a, b int) bool {
			va, vb := rows[a][k.Column], rows[b][k.Column]
			if va == nil && vb == nil {
				return false
			}
			if va == nil {
				return false
			}
			if vb == nil {
				return true
			}
			cmp := bptree.CompareKeys(va, vb)
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	o.rows = rows
	o.idx = 0
	return nil
}

func (o *OrderBy) Next() (Row, bool, error) {
	if o.idx >= len(o.rows) {
		return nil, false, nil
	}
	row := o.rows[o.idx]
	o.idx++
	return row, true, nil
}

func (o *OrderBy) Close() error { return nil }

// Limit caps child's output at n rows after skipping offset of them.
type Limit struct {
	child  Operator
	limit  *int
	offset *int

	rows []Row
	idx  int
}

// NewLimit wraps child with an optional offset/limit. Either may be nil.
func NewLimit(child Operator, limit, offset *int) *Limit {
	return &Limit{child: child, limit: limit, offset: offset}
}

func (l *Limit) Open() error {
	rows, err := drainAll(l.child)
	if err != nil {
		return err
	}
	start := 0
	if l.offset != nil && *l.offset > 0 {
		start = *l.offset
	}
	if start > len(rows) {
		start = len(rows)
	}
	rows = rows[start:]
	if l.limit != nil && *l.limit >= 0 && *l.limit < len(rows) {
		rows = rows[:*l.limit]
	}
	l.rows = rows
	l.idx = 0
	return nil
}

func (l *Limit) Next() (Row, bool, error) {
	if l.idx >= len(l.rows) {
		return nil, false, nil
	}
	row := l.rows[l.idx]
	l.idx++
	return row, true, nil
}

func (l *Limit) Close() error { return nil }
