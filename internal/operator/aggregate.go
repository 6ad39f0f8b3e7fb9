package operator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/minidb/engine/internal/bptree"
	"github.com/minidb/engine/internal/plan"
)

// aggPattern matches an aggregate expression column spec such as
// "COUNT(id) AS total" or "AVG(age)" (alias optional, COUNT(*) allowed).
var aggPattern = regexp.MustCompile(`(?i)^\s*(COUNT|SUM|MIN|MAX|AVG)\s*\(\s*([^)]*?)\s*\)\s*(?:AS\s+(\w+))?\s*$`)

type aggSpec struct {
	fn        string
	column    string
	canonical string
	alias     string
}

// IsAggregateExpr reports whether spec is an aggregate expression such as
// "COUNT(*)" or "AVG(age) AS avg_age", letting callers decide whether a
// select list needs a HashAggregate stage without re-parsing it twice.
func IsAggregateExpr(spec string) bool {
	return aggPattern.MatchString(spec)
}

func parseAggSpecs(selectCols []string) []aggSpec {
	var specs []aggSpec
	for _, c := range selectCols {
		m := aggPattern.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		fn := strings.ToUpper(m[1])
		col := m[2]
		specs = append(specs, aggSpec{
			fn:        fn,
			column:    col,
			canonical: fmt.Sprintf("%s(%s)", fn, col),
			alias:     m[3],
		})
	}
	return specs
}

type groupAccum struct {
	keyVals map[string]any
	count   int
	sums    map[string]float64
	counts  map[string]int
	mins    map[string]any
	maxs    map[string]any
}

// HashAggregate groups child rows by the group-by columns and computes
// COUNT/SUM/MIN/MAX/AVG over aggregate expressions found in selectCols,
// optionally filtering groups with having. Each computed aggregate is
// exposed under both its canonical "FN(col)" key and its AS alias (when
// given), so downstream Project can reference either.
type HashAggregate struct {
	child      Operator
	groupCols  []string
	aggs       []aggSpec
	having     *plan.Predicate

	rows []Row
	idx  int
}

// NewHashAggregate builds a grouping operator over child.
func NewHashAggregate(child Operator, group *plan.GroupBy, selectCols []string) *HashAggregate {
	h := &HashAggregate{child: child, aggs: parseAggSpecs(selectCols)}
	if group != nil {
		h.groupCols = group.Columns
		h.having = group.Having
	}
	return h
}

func (h *HashAggregate) groupKey(row Row) string {
	var b strings.Builder
	for _, c := range h.groupCols {
		fmt.Fprintf(&b, "%v\x1f", row[c])
	}
	return b.String()
}

func (h *HashAggregate) Open() error {
	rows, err := drainAll(h.child)
	if err != nil {
		return err
	}

	order := make([]string, 0)
	groups := make(map[string]*groupAccum)
	for _, row := range rows {
		key := h.groupKey(row)
		g, ok := groups[key]
		if !ok {
			keyVals := make(map[string]any, len(h.groupCols))
			for _, c := range h.groupCols {
				keyVals[c] = row[c]
			}
			g = &groupAccum{
				keyVals: keyVals,
				sums:    make(map[string]float64),
				counts:  make(map[string]int),
				mins:    make(map[string]any),
				maxs:    make(map[string]any),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		for _, a := range h.aggs {
			h.accumulate(g, a, row)
		}
	}

	var out []Row
	for _, key := range order {
		g := groups[key]
		result := make(Row, len(h.groupCols)+len(h.aggs)*2)
		for c, v := range g.keyVals {
			result[c] = v
		}
		for _, a := range h.aggs {
			v := h.finalize(g, a)
			result[a.canonical] = v
			if a.alias != "" {
				result[a.alias] = v
			}
		}
		if evalPredicate(result, h.having) {
			out = append(out, result)
		}
	}
	h.rows = out
	h.idx = 0
	return nil
}

func (h *HashAggregate) accumulate(g *groupAccum, a aggSpec, row Row) {
	switch a.fn {
	case "COUNT":
		if a.column == "*" {
			g.counts[a.canonical]++
			return
		}
		if row[a.column] != nil {
			g.counts[a.canonical]++
		}
	case "SUM", "AVG":
		if f, ok := toFloatKey(row[a.column]); ok {
			g.sums[a.canonical] += f
			g.counts[a.canonical]++
		}
	case "MIN":
		v := row[a.column]
		if v == nil {
			return
		}
		if cur, ok := g.mins[a.canonical]; !ok || bptree.CompareKeys(v, cur) < 0 {
			g.mins[a.canonical] = v
		}
	case "MAX":
		v := row[a.column]
		if v == nil {
			return
		}
		if cur, ok := g.maxs[a.canonical]; !ok || bptree.CompareKeys(v, cur) > 0 {
			g.maxs[a.canonical] = v
		}
	}
}

func (h *HashAggregate) finalize(g *groupAccum, a aggSpec) any {
	switch a.fn {
	case "COUNT":
		return float64(g.counts[a.canonical])
	case "SUM":
		return g.sums[a.canonical]
	case "AVG":
		n := g.counts[a.canonical]
		if n == 0 {
			return nil
		}
		return g.sums[a.canonical] / float64(n)
	case "MIN":
		return g.mins[a.canonical]
	case "MAX":
		return g.maxs[a.canonical]
	default:
		return nil
	}
}

func (h *HashAggregate) Next() (Row, bool, error) {
	if h.idx >= len(h.rows) {
		return nil, false, nil
	}
	row := h.rows[h.idx]
	h.idx++
	return row, true, nil
}

func (h *HashAggregate) Close() error { return nil }
