package operator

import (
	"strings"

	"github.com/minidb/engine/internal/plan"
)

// Join combines left's rows with right's rows per spec. INNER keeps only
// matches; LEFT keeps every left row, filling unmatched right columns
// with nil; RIGHT is implemented as a LEFT join with the operands and
// on_condition sides swapped, so a RIGHT join's every-row guarantee
// lands on the table named as "right" in the plan. Equi-conditions
// ("=") use a hash join bucketed on the right side; any other operator
// falls back to a nested-loop comparison.
type Join struct {
	left   Operator
	right  Operator
	joinType string
	on     plan.OnCondition

	rows []Row
	idx  int
}

// NewJoin builds a join operator from left/right children and spec.
func NewJoin(left, right Operator, spec plan.JoinSpec) *Join {
	joinType := strings.ToUpper(spec.Type)
	on := spec.OnCondition
	if joinType == "RIGHT" {
		left, right = right, left
		on.LeftColumn, on.RightColumn = on.RightColumn, on.LeftColumn
		joinType = "LEFT"
	}
	return &Join{left: left, right: right, joinType: joinType, on: on}
}

func mergeRows(left, right Row) Row {
	out := make(Row, len(left)+len(right))
	for k, v := range left {
		out[k] = v
	}
	for k, v := range right {
		if _, collide := left[k]; collide {
			out[k+"_r"] = v
		} else {
			out[k] = v
		}
	}
	return out
}

func (j *Join) Open() error {
	leftRows, err := drainAll(j.left)
	if err != nil {
		return err
	}
	rightRows, err := drainAll(j.right)
	if err != nil {
		return err
	}

	var out []Row
	if j.on.Operator == "=" {
		out = j.hashJoin(leftRows, rightRows)
	} else {
		out = j.nestedLoopJoin(leftRows, rightRows)
	}
	j.rows = out
	j.idx = 0
	return nil
}

func (j *Join) hashJoin(leftRows, rightRows []Row) []Row {
	buckets := make(map[any][]Row)
	for _, r := range rightRows {
		k := r[j.on.RightColumn]
		buckets[normalizeKey(k)] = append(buckets[normalizeKey(k)], r)
	}
	var out []Row
	for _, l := range leftRows {
		matches := buckets[normalizeKey(l[j.on.LeftColumn])]
		if len(matches) == 0 {
			if j.joinType == "LEFT" {
				out = append(out, mergeRows(l, nilRightRow(rightRows)))
			}
			continue
		}
		for _, r := range matches {
			out = append(out, mergeRows(l, r))
		}
	}
	return out
}

func (j *Join) nestedLoopJoin(leftRows, rightRows []Row) []Row {
	var out []Row
	for _, l := range leftRows {
		matched := false
		for _, r := range rightRows {
			if evalOp(l[j.on.LeftColumn], r[j.on.RightColumn], j.on.Operator) {
				out = append(out, mergeRows(l, r))
				matched = true
			}
		}
		if !matched && j.joinType == "LEFT" {
			out = append(out, mergeRows(l, nilRightRow(rightRows)))
		}
	}
	return out
}

// nilRightRow builds an all-nil row shaped like the right side, so an
// unmatched LEFT row still carries every right-side column (as nil)
// rather than omitting them.
func nilRightRow(rightRows []Row) Row {
	if len(rightRows) == 0 {
		return Row{}
	}
	out := make(Row, len(rightRows[0]))
	for k := range rightRows[0] {
		out[k] = nil
	}
	return out
}

func normalizeKey(v any) any {
	if f, ok := toFloatKey(v); ok {
		return f
	}
	return v
}

func toFloatKey(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (j *Join) Next() (Row, bool, error) {
	if j.idx >= len(j.rows) {
		return nil, false, nil
	}
	row := j.rows[j.idx]
	j.idx++
	return row, true, nil
}

func (j *Join) Close() error { return nil }
