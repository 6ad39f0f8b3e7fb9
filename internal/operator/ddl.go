package operator

import (
	"fmt"

	"github.com/minidb/engine/internal/catalog"
	"github.com/minidb/engine/internal/dberrors"
	"github.com/minidb/engine/internal/plan"
)

// CreateTableOp is the single-shot execute operator for a CreateTable
// plan node: it does not participate in the pull-based Open/Next/Close
// lifecycle, since DDL has no rows to produce.
type CreateTableOp struct {
	sys  *catalog.SysCatalog
	node plan.Node
}

// NewCreateTableOp builds the execute operator for node.
func NewCreateTableOp(sys *catalog.SysCatalog, node plan.Node) *CreateTableOp {
	return &CreateTableOp{sys: sys, node: node}
}

func (c *CreateTableOp) Execute() (plan.Result, error) {
	if c.sys.HasTable(c.node.TableName) {
		return plan.Result{OK: false, Error: fmt.Sprintf("%s: %s", dberrors.ErrTableExists, c.node.TableName)}, nil
	}
	if _, err := c.sys.CreateTableAndRegister(c.node.TableName, c.node.Columns); err != nil {
		return plan.Result{}, err
	}
	return plan.Result{OK: true, Message: fmt.Sprintf("table %s created", c.node.TableName)}, nil
}

// CreateIndexOp is the single-shot execute operator for a CreateIndex
// plan node.
type CreateIndexOp struct {
	ir   *catalog.IndexRegistry
	node plan.Node
}

// NewCreateIndexOp builds the execute operator for node.
func NewCreateIndexOp(ir *catalog.IndexRegistry, node plan.Node) *CreateIndexOp {
	return &CreateIndexOp{ir: ir, node: node}
}

func (c *CreateIndexOp) Execute() (plan.Result, error) {
	n, err := c.ir.CreateIndex(c.node.TableName, c.node.IndexName, c.node.Column)
	if err != nil {
		return plan.Result{}, err
	}
	return plan.Result{
		OK:      true,
		Message: fmt.Sprintf("index %s created on %s.%s (%d row(s) indexed)", c.node.IndexName, c.node.TableName, c.node.Column, n),
	}, nil
}
