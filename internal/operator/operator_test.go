package operator

import (
	"testing"

	"github.com/minidb/engine/internal/plan"
)

// sliceOp is a fixed in-memory Operator for unit-testing the
// transformation operators without needing live storage.
type sliceOp struct {
	rows []Row
	idx  int
}

func newSliceOp(rows []Row) *sliceOp { return &sliceOp{rows: rows} }

func (s *sliceOp) Open() error { s.idx = 0; return nil }

func (s *sliceOp) Next() (Row, bool, error) {
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	return row, true, nil
}

func (s *sliceOp) Close() error { return nil }

func TestFilter_PassesMatchingRowsOnly(t *testing.T) {
	src := newSliceOp([]Row{{"age": float64(10)}, {"age": float64(25)}, {"age": float64(30)}})
	f := NewFilter(src, &plan.Predicate{Column: "age", Operator: ">=", Value: float64(25)})
	rows, err := drainAll(f)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestFilter_NilPredicatePassesEverything(t *testing.T) {
	src := newSliceOp([]Row{{"a": 1}, {"a": 2}})
	f := NewFilter(src, nil)
	rows, err := drainAll(f)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestProject_ByBareNameAndAlias(t *testing.T) {
	src := newSliceOp([]Row{{"id": float64(1), "name": "ada"}})
	p := NewProject(src, []string{"id", "name AS n"})
	rows, err := drainAll(p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if rows[0]["id"] != float64(1) || rows[0]["n"] != "ada" {
		t.Fatalf("unexpected projected row: %+v", rows[0])
	}
}

func TestProject_FallsBackToBaseLeafName(t *testing.T) {
	src := newSliceOp([]Row{{"age": float64(7)}})
	p := NewProject(src, []string{"people.age"})
	rows, err := drainAll(p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if rows[0]["people.age"] != float64(7) {
		t.Fatalf("expected base-leaf fallback value, got %+v", rows[0])
	}
}

func TestJoin_InnerHashJoinOnEquality(t *testing.T) {
	left := newSliceOp([]Row{{"id": float64(1), "name": "a"}, {"id": float64(2), "name": "b"}})
	right := newSliceOp([]Row{{"uid": float64(1), "score": float64(99)}})
	j := NewJoin(left, right, plan.JoinSpec{
		Type:       "INNER",
		OnCondition: plan.OnCondition{LeftColumn: "id", Operator: "=", RightColumn: "uid"},
	})
	rows, err := drainAll(j)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 1 || rows[0]["score"] != float64(99) {
		t.Fatalf("unexpected inner join result: %+v", rows)
	}
}

func TestJoin_LeftKeepsUnmatchedWithNilRight(t *testing.T) {
	left := newSliceOp([]Row{{"id": float64(1)}, {"id": float64(2)}})
	right := newSliceOp([]Row{{"uid": float64(1), "score": float64(5)}})
	j := NewJoin(left, right, plan.JoinSpec{
		Type:       "LEFT",
		OnCondition: plan.OnCondition{LeftColumn: "id", Operator: "=", RightColumn: "uid"},
	})
	rows, err := drainAll(j)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows from left join, got %d", len(rows))
	}
	var sawUnmatched bool
	for _, r := range rows {
		if r["id"] == float64(2) {
			if r["score"] != nil {
				t.Fatalf("expected nil score for unmatched left row, got %v", r["score"])
			}
			sawUnmatched = true
		}
	}
	if !sawUnmatched {
		t.Fatal("expected to see the unmatched left row")
	}
}

func TestJoin_NestedLoopForNonEquiCondition(t *testing.T) {
	left := newSliceOp([]Row{{"a": float64(5)}})
	right := newSliceOp([]Row{{"b": float64(1)}, {"b": float64(9)}})
	j := NewJoin(left, right, plan.JoinSpec{
		Type:       "INNER",
		OnCondition: plan.OnCondition{LeftColumn: "a", Operator: ">", RightColumn: "b"},
	})
	rows, err := drainAll(j)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 matching row, got %d", len(rows))
	}
}

func TestHashAggregate_CountSumGroupedByColumn(t *testing.T) {
	src := newSliceOp([]Row{
		{"dept": "eng", "salary": float64(100)},
		{"dept": "eng", "salary": float64(200)},
		{"dept": "sales", "salary": float64(50)},
	})
	agg := NewHashAggregate(src, &plan.GroupBy{Columns: []string{"dept"}}, []string{"COUNT(*) AS cnt", "SUM(salary) AS total"})
	rows, err := drainAll(agg)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	for _, r := range rows {
		if r["dept"] == "eng" {
			if r["cnt"] != float64(2) || r["total"] != float64(300) {
				t.Fatalf("unexpected eng aggregate: %+v", r)
			}
		}
	}
}

func TestHashAggregate_HavingFiltersGroups(t *testing.T) {
	src := newSliceOp([]Row{
		{"dept": "eng", "salary": float64(100)},
		{"dept": "sales", "salary": float64(50)},
	})
	having := &plan.Predicate{Column: "total", Operator: ">", Value: float64(60)}
	agg := NewHashAggregate(src, &plan.GroupBy{Columns: []string{"dept"}, Having: having}, []string{"SUM(salary) AS total"})
	rows, err := drainAll(agg)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 1 || rows[0]["dept"] != "eng" {
		t.Fatalf("expected only eng to pass HAVING, got %+v", rows)
	}
}

func TestOrderBy_MultiKeyNullsLastRegardlessOfDirection(t *testing.T) {
	src := newSliceOp([]Row{
		{"a": float64(1), "b": nil},
		{"a": float64(1), "b": float64(2)},
		{"a": float64(0), "b": float64(9)},
	})
	ob := NewOrderBy(src, []plan.OrderKey{
		{Column: "a", Direction: "DESC"},
		{Column: "b", Direction: "ASC"},
	})
	rows, err := drainAll(ob)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if rows[0]["a"] != float64(1) || rows[0]["b"] != float64(2) {
		t.Fatalf("expected (1,2) first, got %+v", rows[0])
	}
	if rows[1]["b"] != nil {
		t.Fatalf("expected nil b to sort last within a=1 group, got %+v", rows[1])
	}
}

func TestLimit_OffsetAndCap(t *testing.T) {
	src := newSliceOp([]Row{{"n": 1}, {"n": 2}, {"n": 3}, {"n": 4}})
	limit, offset := 2, 1
	l := NewLimit(src, &limit, &offset)
	rows, err := drainAll(l)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(rows) != 2 || rows[0]["n"] != 2 || rows[1]["n"] != 3 {
		t.Fatalf("unexpected limited rows: %+v", rows)
	}
}
