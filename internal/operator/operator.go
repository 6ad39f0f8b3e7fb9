// Package operator implements the pull-based physical operators that the
// executor assembles into a tree from a plan node: scans, filters,
// joins, aggregation, ordering and limiting for queries, and single-shot
// execute operators for DDL/DML statements.
package operator

import (
	"strings"

	"github.com/minidb/engine/internal/bptree"
	"github.com/minidb/engine/internal/plan"
)

// Row is a decoded table row keyed by column name.
type Row = map[string]any

// State tracks where an operator sits in its Open/Next/Close lifecycle.
// Calling Next before Open, or any call after Close, is a programming
// error in the executor, not a data condition.
type State int

const (
	Created State = iota
	Opened
	Closed
)

// Operator is the pull-based (Volcano-style) interface every query
// operator implements: Open prepares state (often by pulling a child
// fully), Next yields rows one at a time until it reports done, Close
// releases any held resources (table handles, pins).
type Operator interface {
	Open() error
	Next() (Row, bool, error)
	Close() error
}

func evalOp(rowVal, val any, op string) bool {
	if rowVal == nil || val == nil {
		if op == "!=" || op == "<>" {
			return rowVal != val
		}
		if op == "=" {
			return rowVal == val
		}
		return false
	}
	cmp := bptree.CompareKeys(rowVal, val)
	switch op {
	case "=":
		return cmp == 0
	case "!=", "<>":
		return cmp != 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	default:
		return false
	}
}

func evalPredicate(row Row, pred *plan.Predicate) bool {
	if pred == nil {
		return true
	}
	return evalOp(row[pred.Column], pred.Value, pred.Operator)
}

// drainAll pulls every row out of op via Open/Next, closing it before
// returning. Most operators here materialize their child fully at Open
// time rather than threading pull-through state, matching the scan and
// join mechanics they are grounded on.
func drainAll(op Operator) ([]Row, error) {
	if err := op.Open(); err != nil {
		return nil, err
	}
	defer op.Close()
	var rows []Row
	for {
		row, ok, err := op.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

func splitAlias(spec string) (expr, alias string) {
	upper := strings.ToUpper(spec)
	if i := strings.Index(upper, " AS "); i >= 0 {
		return strings.TrimSpace(spec[:i]), strings.TrimSpace(spec[i+4:])
	}
	return strings.TrimSpace(spec), ""
}

func baseLeaf(expr string) string {
	if i := strings.LastIndex(expr, "."); i >= 0 {
		return expr[i+1:]
	}
	return expr
}
