package catalog

import (
	"testing"

	"github.com/minidb/engine/internal/buffer"
	"github.com/minidb/engine/internal/catalogtype"
	"github.com/minidb/engine/internal/pager"
	"github.com/minidb/engine/internal/storageadapter"
)

func newTestCatalog(t *testing.T) (*storageadapter.StorageAdapter, *SysCatalog) {
	t.Helper()
	dir := t.TempDir()
	sa := storageadapter.New(dir, pager.DefaultPageSize, 16, buffer.LRU)
	sys, err := NewSysCatalog(sa, dir)
	if err != nil {
		t.Fatalf("NewSysCatalog: %v", err)
	}
	return sa, sys
}

func TestSysCatalog_CreateAndGetTable(t *testing.T) {
	_, sys := newTestCatalog(t)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}}
	if _, err := sys.CreateTableAndRegister("people", cols); err != nil {
		t.Fatalf("CreateTableAndRegister: %v", err)
	}
	entry, err := sys.GetTable("people")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if len(entry.Columns) != 1 || entry.Columns[0].Name != "id" {
		t.Fatalf("unexpected columns: %+v", entry.Columns)
	}
}

func TestSysCatalog_CreateDuplicateTableFails(t *testing.T) {
	_, sys := newTestCatalog(t)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}}
	sys.CreateTableAndRegister("t", cols)
	if _, err := sys.CreateTableAndRegister("t", cols); err == nil {
		t.Fatal("expected error creating a duplicate table")
	}
}

func TestSysCatalog_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	sa1 := storageadapter.New(dir, pager.DefaultPageSize, 16, buffer.LRU)
	sys1, err := NewSysCatalog(sa1, dir)
	if err != nil {
		t.Fatalf("NewSysCatalog: %v", err)
	}
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}, {Name: "name", Type: "VARCHAR"}}
	if _, err := sys1.CreateTableAndRegister("people", cols); err != nil {
		t.Fatalf("CreateTableAndRegister: %v", err)
	}

	sa2 := storageadapter.New(dir, pager.DefaultPageSize, 16, buffer.LRU)
	sys2, err := NewSysCatalog(sa2, dir)
	if err != nil {
		t.Fatalf("NewSysCatalog (reopen): %v", err)
	}
	if !sys2.HasTable("people") {
		t.Fatal("expected table to survive a catalog reopen")
	}
	entry, err := sys2.GetTable("people")
	if err != nil {
		t.Fatalf("GetTable after reopen: %v", err)
	}
	if len(entry.Columns) != 2 {
		t.Fatalf("expected 2 columns after reopen, got %d", len(entry.Columns))
	}
}

func TestIndexRegistry_CreateIndexPopulatesHeapAndLazyLoadsTree(t *testing.T) {
	sa, sys := newTestCatalog(t)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}, {Name: "age", Type: "INT"}}
	sys.CreateTableAndRegister("people", cols)

	ot, err := sa.OpenTable("people")
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	sa.InsertRow(ot, map[string]any{"id": float64(1), "age": float64(30)})
	sa.InsertRow(ot, map[string]any{"id": float64(2), "age": float64(25)})
	sa.ReleaseTable(ot)

	ir := NewIndexRegistry(sys, sa, 64)
	n, err := ir.CreateIndex("people", "idx_age", "age")
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries indexed, got %d", n)
	}

	meta, ok := ir.FindIndexByColumn("people", "age")
	if !ok {
		t.Fatal("expected to find index by column age")
	}

	if err := ir.EnsureLoadedFromStorage("people", meta.Name); err != nil {
		t.Fatalf("EnsureLoadedFromStorage: %v", err)
	}
	tree := ir.GetTree("people", meta.Name)
	rows := tree.SearchEq(float64(25))
	if len(rows) != 1 {
		t.Fatalf("expected 1 row for age=25, got %d", len(rows))
	}
}

func TestIndexRegistry_DropIndexRemovesRegistration(t *testing.T) {
	sa, sys := newTestCatalog(t)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}}
	sys.CreateTableAndRegister("t", cols)

	ir := NewIndexRegistry(sys, sa, 64)
	if _, err := ir.CreateIndex("t", "idx_id", "id"); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := ir.DropIndex("t", "idx_id"); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}
	if _, ok := ir.FindIndexByColumn("t", "id"); ok {
		t.Fatal("expected index to be gone after DropIndex")
	}
}
