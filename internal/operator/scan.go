package operator

import (
	"github.com/minidb/engine/internal/catalog"
	"github.com/minidb/engine/internal/plan"
	"github.com/minidb/engine/internal/storageadapter"
)

// SeqScan reads every live row of a table in heap order.
type SeqScan struct {
	sa    *storageadapter.StorageAdapter
	table string

	ot   *storageadapter.OpenTable
	rows []Row
	idx  int
}

// NewSeqScan builds a full-table scan operator over table.
func NewSeqScan(sa *storageadapter.StorageAdapter, table string) *SeqScan {
	return &SeqScan{sa: sa, table: table}
}

func (s *SeqScan) Open() error {
	ot, err := s.sa.OpenTable(s.table)
	if err != nil {
		return err
	}
	rows, err := s.sa.ScanRows(ot)
	if err != nil {
		s.sa.ReleaseTable(ot)
		return err
	}
	s.ot = ot
	s.rows = rows
	s.idx = 0
	return nil
}

func (s *SeqScan) Next() (Row, bool, error) {
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	return row, true, nil
}

func (s *SeqScan) Close() error {
	if s.ot == nil {
		return nil
	}
	err := s.sa.ReleaseTable(s.ot)
	s.ot = nil
	return err
}

// IndexScan answers an equality or range predicate straight from a
// secondary index's in-memory B+tree, skipping the table's heap
// entirely. TryIndexScan reports false when no index covers the
// predicate's column or its operator isn't one a B+tree can answer
// (an ExtendedSelect with such a predicate falls back to SeqScan+Filter).
type IndexScan struct {
	rows []Row
	idx  int
}

// TryIndexScan attempts to build an IndexScan for pred against table's
// indexes; ok is false when the caller must fall back to a seq scan.
func TryIndexScan(ir *catalog.IndexRegistry, table string, pred plan.Predicate) (*IndexScan, bool, error) {
	entry, ok := ir.FindIndexByColumn(table, pred.Column)
	if !ok {
		return nil, false, nil
	}
	switch pred.Operator {
	case "=", ">", ">=", "<", "<=":
	default:
		return nil, false, nil
	}
	if err := ir.EnsureLoadedFromStorage(table, entry.Name); err != nil {
		return nil, false, err
	}
	tree := ir.GetTree(table, entry.Name)

	var rows []Row
	switch pred.Operator {
	case "=":
		rows = toRows(tree.SearchEq(pred.Value))
	case ">":
		rows = toRows(tree.SearchRange(pred.Value, nil, false, false))
	case ">=":
		rows = toRows(tree.SearchRange(pred.Value, nil, true, false))
	case "<":
		rows = toRows(tree.SearchRange(nil, pred.Value, false, false))
	case "<=":
		rows = toRows(tree.SearchRange(nil, pred.Value, false, true))
	}
	return &IndexScan{rows: rows}, true, nil
}

func toRows(in []map[string]any) []Row {
	out := make([]Row, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}

func (s *IndexScan) Open() error {
	s.idx = 0
	return nil
}

func (s *IndexScan) Next() (Row, bool, error) {
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	return row, true, nil
}

func (s *IndexScan) Close() error { return nil }
