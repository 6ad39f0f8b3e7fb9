// Package catalog tracks table and index metadata in two reserved heap
// tables (__sys_tables, __sys_indexes) loaded into memory at startup,
// and bridges secondary indexes to their in-memory B+trees.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minidb/engine/internal/catalogtype"
	"github.com/minidb/engine/internal/dberrors"
	"github.com/minidb/engine/internal/storageadapter"
)

const (
	sysTables  = "__sys_tables"
	sysIndexes = "__sys_indexes"
	idxPrefix  = "__idx__"
)

// TableEntry is one table's registered schema and on-disk location.
type TableEntry struct {
	Columns []catalogtype.Column
	Storage storageadapter.StorageDesc
}

// IndexEntry is one secondary index's registered definition.
type IndexEntry struct {
	Table   string
	Name    string
	Column  string
	Type    string
	Storage storageadapter.StorageDesc
	Unique  bool
}

// SysCatalog is the in-memory-cached view of __sys_tables/__sys_indexes,
// backed by the same StorageAdapter every other table goes through.
type SysCatalog struct {
	sa      *storageadapter.StorageAdapter
	dataDir string

	tables  map[string]TableEntry
	indexes map[string]map[string]IndexEntry
}

// NewSysCatalog ensures the two system tables exist, loads their
// contents into memory, then auto-discovers any pre-existing table or
// index directories under dataDir that aren't yet registered.
func NewSysCatalog(sa *storageadapter.StorageAdapter, dataDir string) (*SysCatalog, error) {
	sc := &SysCatalog{
		sa:      sa,
		dataDir: dataDir,
		tables:  make(map[string]TableEntry),
		indexes: make(map[string]map[string]IndexEntry),
	}
	if err := sc.ensureSysTables(); err != nil {
		return nil, err
	}
	if err := sc.loadCache(); err != nil {
		return nil, err
	}
	if err := sc.discoverExistingTables(); err != nil {
		return nil, err
	}
	if err := sc.discoverExistingIndexes(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *SysCatalog) ensureSysTables() error {
	if !sc.sa.TableExists(sysTables) {
		if _, err := sc.sa.CreateTable(sysTables, []catalogtype.Column{
			{Name: "name", Type: "VARCHAR"},
			{Name: "columns", Type: "JSON"},
			{Name: "storage", Type: "JSON"},
		}); err != nil {
			return err
		}
	}
	if !sc.sa.TableExists(sysIndexes) {
		if _, err := sc.sa.CreateTable(sysIndexes, []catalogtype.Column{
			{Name: "table", Type: "VARCHAR"},
			{Name: "name", Type: "VARCHAR"},
			{Name: "column", Type: "VARCHAR"},
			{Name: "type", Type: "VARCHAR"},
			{Name: "storage", Type: "JSON"},
			{Name: "unique", Type: "INT"},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (sc *SysCatalog) loadCache() error {
	ot, err := sc.sa.OpenTable(sysTables)
	if err != nil {
		return err
	}
	defer sc.sa.ReleaseTable(ot)
	rows, err := sc.sa.ScanRows(ot)
	if err != nil {
		return err
	}
	for _, row := range rows {
		name, _ := row["name"].(string)
		if name == "" {
			continue
		}
		cols, err := decodeColumns(row["columns"])
		if err != nil {
			continue
		}
		desc, err := decodeStorageDesc(row["storage"])
		if err != nil {
			continue
		}
		sc.tables[name] = TableEntry{Columns: cols, Storage: desc}
	}

	oti, err := sc.sa.OpenTable(sysIndexes)
	if err != nil {
		return err
	}
	defer sc.sa.ReleaseTable(oti)
	rowsI, err := sc.sa.ScanRows(oti)
	if err != nil {
		return err
	}
	for _, row := range rowsI {
		table, _ := row["table"].(string)
		name, _ := row["name"].(string)
		if table == "" || name == "" {
			continue
		}
		desc, err := decodeStorageDesc(row["storage"])
		if err != nil {
			continue
		}
		col, _ := row["column"].(string)
		typ, _ := row["type"].(string)
		unique := false
		if u, ok := row["unique"].(float64); ok {
			unique = u != 0
		}
		if sc.indexes[table] == nil {
			sc.indexes[table] = make(map[string]IndexEntry)
		}
		sc.indexes[table][name] = IndexEntry{Table: table, Name: name, Column: col, Type: typ, Storage: desc, Unique: unique}
	}
	return nil
}

// discoverExistingTables registers any table directory under dataDir
// (excluding the system tables and index heap directories) that has a
// meta.json but isn't yet in the in-memory cache.
func (sc *SysCatalog) discoverExistingTables() error {
	entries, err := os.ReadDir(sc.dataDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: discover tables in %s: %v", dberrors.ErrStorageIO, sc.dataDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == sysTables || name == sysIndexes || strings.HasPrefix(name, idxPrefix) {
			continue
		}
		if _, ok := sc.tables[name]; ok {
			continue
		}
		metaPath := filepath.Join(sc.dataDir, name, "meta.json")
		raw, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var m struct {
			Columns []catalogtype.Column           `json:"columns"`
			Storage storageadapter.StorageDesc     `json:"storage"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if err := sc.insertSysTableRow(name, m.Columns, m.Storage); err != nil {
			continue
		}
	}
	return nil
}

// discoverExistingIndexes registers __idx__<table>__<index> directories
// not yet present in the in-memory cache.
func (sc *SysCatalog) discoverExistingIndexes() error {
	entries, err := os.ReadDir(sc.dataDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), idxPrefix) {
			continue
		}
		rest := strings.TrimPrefix(e.Name(), idxPrefix)
		parts := strings.SplitN(rest, "__", 2)
		if len(parts) != 2 {
			continue
		}
		table, iname := parts[0], parts[1]
		if _, ok := sc.indexes[table][iname]; ok {
			continue
		}
		metaPath := filepath.Join(sc.dataDir, e.Name(), "meta.json")
		raw, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var m struct {
			Storage storageadapter.StorageDesc `json:"storage"`
			Extra   struct {
				Column string `json:"column"`
			} `json:"extra"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		sc.insertSysIndexRow(table, iname, m.Extra.Column, "BTREE", m.Storage, false)
	}
	return nil
}

func (sc *SysCatalog) insertSysTableRow(name string, columns []catalogtype.Column, desc storageadapter.StorageDesc) error {
	ot, err := sc.sa.OpenTable(sysTables)
	if err != nil {
		return err
	}
	defer sc.sa.ReleaseTable(ot)
	if _, err := sc.sa.InsertRow(ot, map[string]any{"name": name, "columns": columns, "storage": desc}); err != nil {
		return err
	}
	sc.tables[name] = TableEntry{Columns: columns, Storage: desc}
	return nil
}

func (sc *SysCatalog) insertSysIndexRow(table, name, column, itype string, desc storageadapter.StorageDesc, unique bool) error {
	ot, err := sc.sa.OpenTable(sysIndexes)
	if err != nil {
		return err
	}
	defer sc.sa.ReleaseTable(ot)
	u := 0
	if unique {
		u = 1
	}
	if _, err := sc.sa.InsertRow(ot, map[string]any{
		"table": table, "name": name, "column": column, "type": itype, "storage": desc, "unique": u,
	}); err != nil {
		return err
	}
	if sc.indexes[table] == nil {
		sc.indexes[table] = make(map[string]IndexEntry)
	}
	sc.indexes[table][name] = IndexEntry{Table: table, Name: name, Column: column, Type: itype, Storage: desc, Unique: unique}
	return nil
}

// CreateTableAndRegister creates name's heap file (reusing the existing
// storage descriptor when the table directory already has a meta.json)
// and registers it in the system catalog.
func (sc *SysCatalog) CreateTableAndRegister(name string, columns []catalogtype.Column) (TableEntry, error) {
	if _, ok := sc.tables[name]; ok {
		return TableEntry{}, fmt.Errorf("%w: %s", dberrors.ErrTableExists, name)
	}
	desc, err := sc.sa.CreateTable(name, columns)
	if err != nil {
		return TableEntry{}, err
	}
	if err := sc.insertSysTableRow(name, columns, desc); err != nil {
		return TableEntry{}, err
	}
	return TableEntry{Columns: columns, Storage: desc}, nil
}

// GetTable returns the registered entry for name.
func (sc *SysCatalog) GetTable(name string) (TableEntry, error) {
	e, ok := sc.tables[name]
	if !ok {
		return TableEntry{}, fmt.Errorf("%w: %s", dberrors.ErrTableNotFound, name)
	}
	return e, nil
}

// HasTable reports whether name is registered.
func (sc *SysCatalog) HasTable(name string) bool {
	_, ok := sc.tables[name]
	return ok
}

// ListTables returns every registered table name, sorted.
func (sc *SysCatalog) ListTables() []string {
	names := make([]string, 0, len(sc.tables))
	for n := range sc.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddIndex registers a new index definition.
func (sc *SysCatalog) AddIndex(table, name, column string, desc storageadapter.StorageDesc, unique bool) error {
	return sc.insertSysIndexRow(table, name, column, "BTREE", desc, unique)
}

// DropIndex removes an index's in-memory registration and rewrites
// __sys_indexes to drop its row.
func (sc *SysCatalog) DropIndex(table, name string) error {
	if sc.indexes[table] != nil {
		delete(sc.indexes[table], name)
	}
	ot, err := sc.sa.OpenTable(sysIndexes)
	if err != nil {
		return err
	}
	defer sc.sa.ReleaseTable(ot)
	if err := sc.sa.ClearTable(ot); err != nil {
		return err
	}
	for t, byName := range sc.indexes {
		for n, e := range byName {
			u := 0
			if e.Unique {
				u = 1
			}
			if _, err := sc.sa.InsertRow(ot, map[string]any{
				"table": t, "name": n, "column": e.Column, "type": e.Type, "storage": e.Storage, "unique": u,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListIndexes returns every index registered for table.
func (sc *SysCatalog) ListIndexes(table string) map[string]IndexEntry {
	return sc.indexes[table]
}

// FindIndexByColumn returns the first index covering column on table, if
// any.
func (sc *SysCatalog) FindIndexByColumn(table, column string) (IndexEntry, bool) {
	for _, e := range sc.indexes[table] {
		if e.Column == column {
			return e, true
		}
	}
	return IndexEntry{}, false
}

func decodeColumns(raw any) ([]catalogtype.Column, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var cols []catalogtype.Column
	if err := json.Unmarshal(buf, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func decodeStorageDesc(raw any) (storageadapter.StorageDesc, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return storageadapter.StorageDesc{}, err
	}
	var desc storageadapter.StorageDesc
	if err := json.Unmarshal(buf, &desc); err != nil {
		return storageadapter.StorageDesc{}, err
	}
	return desc, nil
}
