// Package executor wires a parsed plan.Node tree to an operator tree and
// runs it, producing the engine's uniform plan.Result envelope. It is the
// single entry point the SQL front-end (out of scope of this module, per
// spec.md §1) targets: one compiled plan in, one result out.
package executor

import (
	"fmt"

	"github.com/minidb/engine/internal/catalog"
	"github.com/minidb/engine/internal/operator"
	"github.com/minidb/engine/internal/plan"
	"github.com/minidb/engine/internal/storageadapter"
)

// Engine owns the three collaborators every plan needs: storage, the
// system catalog, and the index registry built over it. One Engine is
// meant to live for the lifetime of a process (or a test), sharing its
// StorageAdapter's handle pool across every statement it executes.
type Engine struct {
	SA  *storageadapter.StorageAdapter
	Sys *catalog.SysCatalog
	IR  *catalog.IndexRegistry
}

// New builds an Engine rooted at dataDir with the given storage
// parameters, opening or creating the two system tables. bptreeOrder
// sets the order of every secondary index's in-memory B+tree (spec.md
// §6's bptree_order, default 64); values below 4 are raised to 4 by
// bptree.New itself.
func New(sa *storageadapter.StorageAdapter, dataDir string, bptreeOrder int) (*Engine, error) {
	sys, err := catalog.NewSysCatalog(sa, dataDir)
	if err != nil {
		return nil, err
	}
	ir := catalog.NewIndexRegistry(sys, sa, bptreeOrder)
	return &Engine{SA: sa, Sys: sys, IR: ir}, nil
}

// Execute dispatches node to its operator(s) and returns the uniform
// result envelope. It never panics on a malformed plan; every failure
// surfaces as either a returned error (caller's fault, e.g. a storage
// fault) or a {ok:false, error} result for statement-level problems the
// original spec expects the executor to report rather than raise.
func (e *Engine) Execute(node plan.Node) (plan.Result, error) {
	switch node.Type {
	case plan.CreateTable:
		return operator.NewCreateTableOp(e.Sys, node).Execute()
	case plan.CreateIndex:
		return operator.NewCreateIndexOp(e.IR, node).Execute()
	case plan.Insert:
		return operator.NewInsertOp(e.SA, e.IR, e.Sys, node).Execute()
	case plan.Update:
		return operator.NewUpdateOp(e.SA, e.IR, e.Sys, node).Execute()
	case plan.Delete:
		return operator.NewDeleteOp(e.SA, e.IR, node).Execute()
	case plan.Select, plan.ExtendedSelect:
		return e.executeSelect(node)
	default:
		return plan.Result{OK: false, Error: fmt.Sprintf("executor: unsupported plan type %q", node.Type)}, nil
	}
}

// executeSelect builds the read-side operator tree (PlanBuilder's job)
// and drains it into a Result. Build order mirrors the logical pipeline
// of §4.8: scan/index-scan first, then join, filter, group/having,
// order, limit, and finally project — each stage wraps the previous as
// its child, exactly as the Volcano model composes.
func (e *Engine) executeSelect(node plan.Node) (plan.Result, error) {
	if !e.Sys.HasTable(node.TableName) {
		return plan.Result{OK: false, Error: fmt.Sprintf("table not found: %s", node.TableName)}, nil
	}

	op, indexServed, err := e.buildBaseScan(node.TableName, node.Where)
	if err != nil {
		return plan.Result{}, err
	}

	for _, js := range node.Joins {
		if !e.Sys.HasTable(js.RightTable) {
			return plan.Result{OK: false, Error: fmt.Sprintf("table not found: %s", js.RightTable)}, nil
		}
		rightOp, _, err := e.buildBaseScan(js.RightTable, nil)
		if err != nil {
			return plan.Result{}, err
		}
		op = operator.NewJoin(op, rightOp, js)
		// Once a join runs, the base table's predicate (if not already
		// folded into the scan) must still apply to the joined result.
		indexServed = false
	}

	// A predicate already consumed by an index scan on the base table
	// (no joins) must not be re-applied.
	if node.Where != nil && !indexServed {
		op = operator.NewFilter(op, node.Where)
	}

	if node.Group != nil || hasAggregates(node.SelectCols) {
		op = operator.NewHashAggregate(op, node.Group, node.SelectCols)
	}

	if len(node.OrderBy) > 0 {
		op = operator.NewOrderBy(op, node.OrderBy)
	}

	if node.Limit != nil || node.Offset != nil {
		op = operator.NewLimit(op, node.Limit, node.Offset)
	}

	if len(node.SelectCols) > 0 {
		op = operator.NewProject(op, node.SelectCols)
	}

	if err := op.Open(); err != nil {
		return plan.Result{}, err
	}
	defer op.Close()

	var rows []map[string]any
	for {
		row, ok, err := op.Next()
		if err != nil {
			return plan.Result{}, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return plan.Result{OK: true, Rows: rows}, nil
}

// buildBaseScan builds the leaf scan for one table. When pred is a
// single-column comparison covered by an index, it tries IndexScan
// first (§4.8); served reports whether pred was fully answered there,
// so the caller can skip adding a redundant Filter stage.
func (e *Engine) buildBaseScan(table string, pred *plan.Predicate) (op operator.Operator, served bool, err error) {
	if pred != nil {
		idxOp, ok, err := operator.TryIndexScan(e.IR, table, *pred)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return idxOp, true, nil
		}
	}
	return operator.NewSeqScan(e.SA, table), false, nil
}

func hasAggregates(selectCols []string) bool {
	for _, c := range selectCols {
		if operator.IsAggregateExpr(c) {
			return true
		}
	}
	return false
}
