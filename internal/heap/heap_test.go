package heap

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/minidb/engine/internal/buffer"
	"github.com/minidb/engine/internal/pager"
)

func newTestHeap(t *testing.T) *TableHeap {
	t.Helper()
	dir := t.TempDir()
	p, err := pager.Open(filepath.Join(dir, "t.mdb"), pager.DefaultPageSize)
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	bp, err := buffer.New(p, 8, buffer.LRU)
	if err != nil {
		t.Fatalf("buffer.New: %v", err)
	}
	return Open(p, bp, NewMeta(1, "t"))
}

func TestTableHeap_InsertScanRoundTrip(t *testing.T) {
	h := newTestHeap(t)
	want := [][]byte{[]byte("row-a"), []byte("row-b"), []byte("row-c")}
	var rids []RID
	for _, row := range want {
		rid, err := h.Insert(row)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		rids = append(rids, rid)
	}

	var got [][]byte
	if err := h.Scan(func(rid RID, payload []byte) bool {
		cp := append([]byte(nil), payload...)
		got = append(got, cp)
		return true
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("want %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("row %d: want %q got %q", i, want[i], got[i])
		}
	}
}

func TestTableHeap_DeleteRemovesFromScan(t *testing.T) {
	h := newTestHeap(t)
	rid1, _ := h.Insert([]byte("keep"))
	rid2, _ := h.Insert([]byte("drop"))

	if err := h.Delete(rid2); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var seen []RID
	h.Scan(func(rid RID, payload []byte) bool {
		seen = append(seen, rid)
		return true
	})
	if len(seen) != 1 || seen[0] != rid1 {
		t.Fatalf("expected only rid1 to survive, got %v", seen)
	}
}

func TestTableHeap_UpdateSameLengthInPlace(t *testing.T) {
	h := newTestHeap(t)
	rid, _ := h.Insert([]byte("aaaaa"))
	newRid, err := h.Update(rid, []byte("bbbbb"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newRid != rid {
		t.Fatalf("expected in-place update to keep RID, got %v -> %v", rid, newRid)
	}
}

func TestTableHeap_UpdateDifferentLengthReinserts(t *testing.T) {
	h := newTestHeap(t)
	rid, _ := h.Insert([]byte("short"))
	newRid, err := h.Update(rid, []byte("a much longer replacement payload"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newRid.SlotID == rid.SlotID && newRid.PageID == rid.PageID {
		// same-slot reuse would only happen if delete+reinsert landed in
		// the exact same spot, which InsertRecord's append-only slot
		// allocation makes impossible for a live table.
		t.Fatalf("expected reinsert to allocate a new slot, old=%v", rid)
	}

	var rows [][]byte
	h.Scan(func(rid RID, payload []byte) bool {
		rows = append(rows, append([]byte(nil), payload...))
		return true
	})
	if len(rows) != 1 || string(rows[0]) != "a much longer replacement payload" {
		t.Fatalf("unexpected scan result: %q", rows)
	}
}

func TestTableHeap_InsertAllocatesNewPageWhenFull(t *testing.T) {
	h := newTestHeap(t)
	big := bytes.Repeat([]byte{1}, pager.DefaultPageSize/2)
	h.Insert(big)
	h.Insert(big)
	h.Insert(big)

	if len(h.Meta().DataPIDs) < 2 {
		t.Fatalf("expected heap to span multiple pages, got %d", len(h.Meta().DataPIDs))
	}
}
