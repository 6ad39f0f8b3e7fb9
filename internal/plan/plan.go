// Package plan defines the Go shape of the tagged plan tree the executor
// consumes: one node type per statement kind, predicates, joins,
// group-by/having, and order-by, mirroring the wire format section of
// the engine's external interface.
package plan

import "github.com/minidb/engine/internal/catalogtype"

// NodeType discriminates a plan node.
type NodeType string

const (
	CreateTable    NodeType = "CreateTable"
	CreateIndex    NodeType = "CreateIndex"
	Insert         NodeType = "Insert"
	Select         NodeType = "Select"
	ExtendedSelect NodeType = "ExtendedSelect"
	Update         NodeType = "Update"
	Delete         NodeType = "Delete"
)

// Predicate is a single-column comparison: {column, operator, value}.
type Predicate struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// JoinSpec describes one join step against the running result.
type JoinSpec struct {
	Type        string      `json:"type"` // INNER | LEFT | RIGHT
	RightTable  string      `json:"right_table"`
	OnCondition OnCondition `json:"on_condition"`
}

// OnCondition is a join predicate: {left_column, operator, right_column}.
type OnCondition struct {
	LeftColumn  string `json:"left_column"`
	Operator    string `json:"operator"`
	RightColumn string `json:"right_column"`
}

// GroupBy is {columns, having?}.
type GroupBy struct {
	Columns []string   `json:"columns"`
	Having  *Predicate `json:"having,omitempty"`
}

// OrderKey is {column, direction}.
type OrderKey struct {
	Column    string `json:"column"`
	Direction string `json:"direction"` // ASC | DESC
}

// SetClause is {column, value} for UPDATE ... SET.
type SetClause struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Node is the tagged plan tree the executor dispatches on. Only the
// fields relevant to Type are populated by the planner; the executor
// ignores the rest.
type Node struct {
	Type NodeType `json:"type"`

	TableName  string               `json:"table_name,omitempty"`
	Columns    []catalogtype.Column `json:"columns,omitempty"`
	SelectCols []string             `json:"select_columns,omitempty"`

	// Insert
	InsertColumns []string `json:"insert_columns,omitempty"`
	Values        [][]any  `json:"values,omitempty"`

	// Select / ExtendedSelect
	Where   *Predicate `json:"where,omitempty"`
	Joins   []JoinSpec `json:"joins,omitempty"`
	Group   *GroupBy   `json:"group_by,omitempty"`
	OrderBy []OrderKey `json:"order_by,omitempty"`
	Limit   *int       `json:"limit,omitempty"`
	Offset  *int       `json:"offset,omitempty"`

	// Update
	SetClauses []SetClause `json:"set_clauses,omitempty"`

	// CreateIndex
	Column    string `json:"column,omitempty"`
	IndexName string `json:"index_name,omitempty"`
}

// Result is the executor's uniform output envelope.
type Result struct {
	OK      bool             `json:"ok"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}
