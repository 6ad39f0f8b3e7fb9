package operator

import (
	"fmt"

	"github.com/minidb/engine/internal/catalog"
	"github.com/minidb/engine/internal/catalogtype"
	"github.com/minidb/engine/internal/plan"
	"github.com/minidb/engine/internal/storageadapter"
)

func columnTypes(cols []catalogtype.Column) map[string]string {
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Name] = c.Type
	}
	return m
}

// InsertOp is the single-shot execute operator for an Insert plan node.
// Each inserted row is also appended, best-effort, to every index heap
// covering the table.
type InsertOp struct {
	sa   *storageadapter.StorageAdapter
	ir   *catalog.IndexRegistry
	sys  *catalog.SysCatalog
	node plan.Node
}

// NewInsertOp builds the execute operator for node.
func NewInsertOp(sa *storageadapter.StorageAdapter, ir *catalog.IndexRegistry, sys *catalog.SysCatalog, node plan.Node) *InsertOp {
	return &InsertOp{sa: sa, ir: ir, sys: sys, node: node}
}

func (in *InsertOp) Execute() (plan.Result, error) {
	entry, err := in.sys.GetTable(in.node.TableName)
	if err != nil {
		return plan.Result{}, err
	}
	types := columnTypes(entry.Columns)

	ot, err := in.sa.OpenTable(in.node.TableName)
	if err != nil {
		return plan.Result{}, err
	}
	defer in.sa.ReleaseTable(ot)

	inserted := 0
	for _, values := range in.node.Values {
		if len(values) != len(in.node.InsertColumns) {
			return plan.Result{}, fmt.Errorf("insert into %s: %d column(s) but %d value(s)", in.node.TableName, len(in.node.InsertColumns), len(values))
		}
		row := make(map[string]any, len(values))
		for i, col := range in.node.InsertColumns {
			row[col] = catalogtype.CoerceByType(values[i], types[col])
		}
		if _, err := in.sa.InsertRow(ot, row); err != nil {
			return plan.Result{}, err
		}
		in.ir.SyncInsert(in.node.TableName, row)
		inserted++
	}
	return plan.Result{OK: true, Message: fmt.Sprintf("%d row(s) inserted", inserted)}, nil
}

// DeleteOp is the single-shot execute operator for a Delete plan node.
// It is a full-rewrite operator: every live row is read, the ones not
// matching Where are kept, and the table is atomically replaced with
// just the kept rows (a nil Where keeps none, deleting everything).
type DeleteOp struct {
	sa   *storageadapter.StorageAdapter
	ir   *catalog.IndexRegistry
	node plan.Node
}

// NewDeleteOp builds the execute operator for node.
func NewDeleteOp(sa *storageadapter.StorageAdapter, ir *catalog.IndexRegistry, node plan.Node) *DeleteOp {
	return &DeleteOp{sa: sa, ir: ir, node: node}
}

func (d *DeleteOp) Execute() (plan.Result, error) {
	ot, err := d.sa.OpenTable(d.node.TableName)
	if err != nil {
		return plan.Result{}, err
	}
	defer d.sa.ReleaseTable(ot)

	rows, err := d.sa.ScanRows(ot)
	if err != nil {
		return plan.Result{}, err
	}

	var kept []map[string]any
	if d.node.Where != nil {
		for _, row := range rows {
			if !evalPredicate(row, d.node.Where) {
				kept = append(kept, row)
			}
		}
	}
	deleted := len(rows) - len(kept)

	if err := d.sa.ReplaceRows(ot, kept); err != nil {
		return plan.Result{}, err
	}
	d.ir.RebuildIndexesForTable(d.node.TableName, kept)

	return plan.Result{OK: true, Message: fmt.Sprintf("%d row(s) deleted", deleted)}, nil
}

// UpdateOp is the single-shot execute operator for an Update plan node.
// Like Delete it is a full-rewrite operator: every row is read, matching
// rows get their SET clauses applied in place, and the whole row set
// (changed or not) is written back via an atomic replace.
type UpdateOp struct {
	sa   *storageadapter.StorageAdapter
	ir   *catalog.IndexRegistry
	sys  *catalog.SysCatalog
	node plan.Node
}

// NewUpdateOp builds the execute operator for node.
func NewUpdateOp(sa *storageadapter.StorageAdapter, ir *catalog.IndexRegistry, sys *catalog.SysCatalog, node plan.Node) *UpdateOp {
	return &UpdateOp{sa: sa, ir: ir, sys: sys, node: node}
}

func (u *UpdateOp) Execute() (plan.Result, error) {
	entry, err := u.sys.GetTable(u.node.TableName)
	if err != nil {
		return plan.Result{}, err
	}
	types := columnTypes(entry.Columns)

	ot, err := u.sa.OpenTable(u.node.TableName)
	if err != nil {
		return plan.Result{}, err
	}
	defer u.sa.ReleaseTable(ot)

	rows, err := u.sa.ScanRows(ot)
	if err != nil {
		return plan.Result{}, err
	}

	updated := 0
	for _, row := range rows {
		if !evalPredicate(row, u.node.Where) {
			continue
		}
		for _, sc := range u.node.SetClauses {
			row[sc.Column] = catalogtype.CoerceByType(sc.Value, types[sc.Column])
		}
		updated++
	}

	if err := u.sa.ReplaceRows(ot, rows); err != nil {
		return plan.Result{}, err
	}
	u.ir.RebuildIndexesForTable(u.node.TableName, rows)

	return plan.Result{OK: true, Message: fmt.Sprintf("%d row(s) updated", updated)}, nil
}
