package storageadapter

import (
	"testing"

	"github.com/minidb/engine/internal/buffer"
	"github.com/minidb/engine/internal/catalogtype"
	"github.com/minidb/engine/internal/pager"
)

func newTestAdapter(t *testing.T) *StorageAdapter {
	t.Helper()
	return New(t.TempDir(), pager.DefaultPageSize, 16, buffer.LRU)
}

func TestStorageAdapter_CreateOpenInsertScanRoundTrip(t *testing.T) {
	sa := newTestAdapter(t)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}, {Name: "name", Type: "VARCHAR"}}
	if _, err := sa.CreateTable("people", cols); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	ot, err := sa.OpenTable("people")
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	defer sa.ReleaseTable(ot)

	if _, err := sa.InsertRow(ot, map[string]any{"id": float64(1), "name": "ada"}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	if _, err := sa.InsertRow(ot, map[string]any{"id": float64(2), "name": "grace"}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	rows, err := sa.ScanRows(ot)
	if err != nil {
		t.Fatalf("ScanRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
}

func TestStorageAdapter_OpenTableSharesHandleAcrossCalls(t *testing.T) {
	sa := newTestAdapter(t)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}}
	sa.CreateTable("t", cols)

	ot1, err := sa.OpenTable("t")
	if err != nil {
		t.Fatalf("OpenTable 1: %v", err)
	}
	sa.InsertRow(ot1, map[string]any{"id": float64(1)})

	ot2, err := sa.OpenTable("t")
	if err != nil {
		t.Fatalf("OpenTable 2: %v", err)
	}
	if ot1.h != ot2.h {
		t.Fatal("expected both opens to share the same pooled handle")
	}

	rows, err := sa.ScanRows(ot2)
	if err != nil {
		t.Fatalf("ScanRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected insert via ot1 visible through ot2, got %d rows", len(rows))
	}

	sa.ReleaseTable(ot1)
	sa.ReleaseTable(ot2)
}

func TestStorageAdapter_ClearTableEmptiesRows(t *testing.T) {
	sa := newTestAdapter(t)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}}
	sa.CreateTable("t", cols)
	ot, _ := sa.OpenTable("t")
	sa.InsertRow(ot, map[string]any{"id": float64(1)})

	if err := sa.ClearTable(ot); err != nil {
		t.Fatalf("ClearTable: %v", err)
	}
	rows, err := sa.ScanRows(ot)
	if err != nil {
		t.Fatalf("ScanRows after clear: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows after ClearTable, got %d", len(rows))
	}
	sa.ReleaseTable(ot)
}

func TestStorageAdapter_ReopenAfterProcessRestartRecoversRows(t *testing.T) {
	dir := t.TempDir()
	sa1 := New(dir, pager.DefaultPageSize, 16, buffer.LRU)
	cols := []catalogtype.Column{{Name: "id", Type: "INT"}}
	sa1.CreateTable("t", cols)
	ot1, _ := sa1.OpenTable("t")
	sa1.InsertRow(ot1, map[string]any{"id": float64(1)})
	sa1.InsertRow(ot1, map[string]any{"id": float64(2)})
	sa1.ReleaseTable(ot1)

	sa2 := New(dir, pager.DefaultPageSize, 16, buffer.LRU)
	ot2, err := sa2.OpenTable("t")
	if err != nil {
		t.Fatalf("OpenTable after restart: %v", err)
	}
	defer sa2.ReleaseTable(ot2)
	rows, err := sa2.ScanRows(ot2)
	if err != nil {
		t.Fatalf("ScanRows after restart: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected heap reconstruction to recover 2 rows, got %d", len(rows))
	}
}

func TestStorageAdapter_OpenMissingTableFails(t *testing.T) {
	sa := newTestAdapter(t)
	if _, err := sa.OpenTable("nope"); err == nil {
		t.Fatal("expected error opening a table that was never created")
	}
}
