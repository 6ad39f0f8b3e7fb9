package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/minidb/engine/internal/bptree"
	"github.com/minidb/engine/internal/catalogtype"
	"github.com/minidb/engine/internal/dberrors"
	"github.com/minidb/engine/internal/storageadapter"
)

// IndexRegistry owns the lazily-built in-memory B+trees for every
// registered secondary index, keyed by (table, index name).
type IndexRegistry struct {
	sys   *SysCatalog
	sa    *storageadapter.StorageAdapter
	order int

	mu     sync.Mutex
	trees  map[[2]string]*bptree.BPlusTree
	loaded map[[2]string]bool
}

// NewIndexRegistry wraps sys with in-memory tree management. Every tree
// this registry builds uses order (bptree_order, spec.md §6); order < 4
// is raised to 4 by bptree.New itself.
func NewIndexRegistry(sys *SysCatalog, sa *storageadapter.StorageAdapter, order int) *IndexRegistry {
	return &IndexRegistry{
		sys:    sys,
		sa:     sa,
		order:  order,
		trees:  make(map[[2]string]*bptree.BPlusTree),
		loaded: make(map[[2]string]bool),
	}
}

func indexHeapName(table, indexName string) string {
	return fmt.Sprintf("%s%s__%s", idxPrefix, table, indexName)
}

// CreateIndex allocates the index's heap file, registers it, and
// populates the heap file (but not the in-memory tree — that loads
// lazily on first query) from a full scan of table's current rows.
func (ir *IndexRegistry) CreateIndex(table, indexName, column string) (int, error) {
	tableOT, err := ir.sa.OpenTable(table)
	if err != nil {
		return 0, err
	}
	defer ir.sa.ReleaseTable(tableOT)

	idxName := indexHeapName(table, indexName)
	desc, err := ir.sa.CreateTable(idxName, []catalogtype.Column{
		{Name: "k", Type: "ANY"},
		{Name: "row", Type: "JSON"},
	})
	if err != nil {
		return 0, err
	}
	if err := ir.sys.AddIndex(table, indexName, column, desc, false); err != nil {
		return 0, err
	}
	ir.markUnloadedLocked(table, indexName)

	idxOT, err := ir.sa.OpenTable(idxName)
	if err != nil {
		return 0, err
	}
	defer ir.sa.ReleaseTable(idxOT)

	rows, err := ir.sa.ScanRows(tableOT)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if _, err := ir.sa.InsertRow(idxOT, map[string]any{"k": row[column], "row": row}); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// DropIndex removes the index heap file and its registration.
func (ir *IndexRegistry) DropIndex(table, indexName string) error {
	idxName := indexHeapName(table, indexName)
	entry, registered := ir.sys.ListIndexes(table)[indexName]
	if ot, err := ir.sa.OpenTable(idxName); err == nil {
		ir.sa.ClearTable(ot)
		ir.sa.ReleaseTable(ot)
	}
	if registered && entry.Storage.Path != "" {
		os.RemoveAll(filepath.Dir(entry.Storage.Path))
	}
	if err := ir.sys.DropIndex(table, indexName); err != nil {
		return err
	}
	ir.mu.Lock()
	key := [2]string{table, indexName}
	delete(ir.trees, key)
	delete(ir.loaded, key)
	ir.mu.Unlock()
	return nil
}

// FindIndexByColumn returns the first index on table covering column.
func (ir *IndexRegistry) FindIndexByColumn(table, column string) (IndexEntry, bool) {
	return ir.sys.FindIndexByColumn(table, column)
}

// ListIndexes returns every index registered for table.
func (ir *IndexRegistry) ListIndexes(table string) map[string]IndexEntry {
	return ir.sys.ListIndexes(table)
}

// GetTree returns (creating if necessary) the in-memory tree for an
// index, empty until EnsureLoadedFromStorage populates it.
func (ir *IndexRegistry) GetTree(table, indexName string) *bptree.BPlusTree {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	key := [2]string{table, indexName}
	if t, ok := ir.trees[key]; ok {
		return t
	}
	t := bptree.New(ir.order)
	ir.trees[key] = t
	return t
}

// MarkUnloaded invalidates the in-memory tree for an index so the next
// EnsureLoadedFromStorage call rebuilds it from the heap file.
func (ir *IndexRegistry) MarkUnloaded(table, indexName string) {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	ir.markUnloadedLocked(table, indexName)
}

func (ir *IndexRegistry) markUnloadedLocked(table, indexName string) {
	ir.loaded[[2]string{table, indexName}] = false
}

// SyncInsert appends row to every index heap covering table and marks
// each touched index's in-memory tree stale. An index write failure is
// skipped rather than propagated or retried, so an insert never fails
// because of a secondary index; the skipped row stays absent from that
// index heap (and from trees rebuilt from it) until
// RebuildIndexesForTable repopulates the heap from the base table.
func (ir *IndexRegistry) SyncInsert(table string, row map[string]any) {
	for name, entry := range ir.sys.ListIndexes(table) {
		idxName := indexHeapName(table, name)
		ot, err := ir.sa.OpenTable(idxName)
		if err != nil {
			continue
		}
		ir.sa.InsertRow(ot, map[string]any{"k": row[entry.Column], "row": row})
		ir.sa.ReleaseTable(ot)
		ir.MarkUnloaded(table, name)
	}
}

// RebuildIndexesForTable repopulates every index heap for table from
// rows — the table's full row set after a rewrite — and invalidates each
// index's in-memory tree so the next query reloads it. Per-index
// failures are skipped, matching SyncInsert's best-effort contract.
func (ir *IndexRegistry) RebuildIndexesForTable(table string, rows []map[string]any) {
	for name, entry := range ir.sys.ListIndexes(table) {
		idxName := indexHeapName(table, name)
		ot, err := ir.sa.OpenTable(idxName)
		if err != nil {
			continue
		}
		if err := ir.sa.ClearTable(ot); err == nil {
			for _, row := range rows {
				ir.sa.InsertRow(ot, map[string]any{"k": row[entry.Column], "row": row})
			}
		}
		ir.sa.ReleaseTable(ot)
		ir.MarkUnloaded(table, name)
	}
}

// EnsureLoadedFromStorage rebuilds the in-memory tree for an index from
// its heap file unless it is already marked loaded.
func (ir *IndexRegistry) EnsureLoadedFromStorage(table, indexName string) error {
	key := [2]string{table, indexName}
	ir.mu.Lock()
	if ir.loaded[key] {
		ir.mu.Unlock()
		return nil
	}
	ir.mu.Unlock()

	entries := ir.sys.ListIndexes(table)
	if _, found := entries[indexName]; !found {
		return fmt.Errorf("%w: %s on %s", dberrors.ErrIndexNotFound, indexName, table)
	}

	idxName := indexHeapName(table, indexName)
	ot, err := ir.sa.OpenTable(idxName)
	if err != nil {
		return err
	}
	defer ir.sa.ReleaseTable(ot)

	rows, err := ir.sa.ScanRows(ot)
	if err != nil {
		return err
	}

	tree := bptree.New(ir.order)
	for _, r := range rows {
		row, _ := r["row"].(map[string]any)
		tree.Insert(r["k"], row)
	}

	ir.mu.Lock()
	ir.trees[key] = tree
	ir.loaded[key] = true
	ir.mu.Unlock()
	return nil
}
