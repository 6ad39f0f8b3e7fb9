// Package heap implements a heap table: an unordered collection of
// variable-length records spread across one or more pages of a single
// pager.Pager, located through a first-fit Free Space Map.
package heap

import (
	"github.com/minidb/engine/internal/buffer"
	"github.com/minidb/engine/internal/pager"
)

// RID identifies one record by the page it lives on and its slot within
// that page.
type RID struct {
	PageID pager.PageID
	SlotID int
}

// Meta is a table's page-level bookkeeping: which pages belong to it, and
// a Free Space Map giving a rough (possibly stale) free-byte count per
// page, refreshed from the real page header whenever an insert, delete
// or update writes to that page.
type Meta struct {
	TableID  int
	Name     string
	DataPIDs []pager.PageID
	FSM      map[pager.PageID]int
}

// NewMeta returns an empty Meta ready to receive its first allocated page.
func NewMeta(tableID int, name string) *Meta {
	return &Meta{TableID: tableID, Name: name, FSM: make(map[pager.PageID]int)}
}

// TableHeap is a table = a set of data pages. It only knows how to place,
// fetch, and remove byte-string records; schema and typed-row concerns
// live one layer up in storageadapter.
type TableHeap struct {
	pager *pager.Pager
	bp    *buffer.BufferPool
	meta  *Meta
}

// Open wraps an existing pager/buffer pool/meta triple as a TableHeap.
func Open(p *pager.Pager, bp *buffer.BufferPool, meta *Meta) *TableHeap {
	return &TableHeap{pager: p, bp: bp, meta: meta}
}

// Meta returns the table's page/FSM bookkeeping.
func (h *TableHeap) Meta() *Meta { return h.meta }

func slotOverhead() int { return pager.SlotSize }

// Scan calls fn for every live (non-tombstoned) record in the table, in
// page order then ascending slot order within a page. Stops early if fn
// returns false.
func (h *TableHeap) Scan(fn func(rid RID, payload []byte) bool) error {
	for _, pid := range h.meta.DataPIDs {
		buf, err := h.bp.GetPage(pid)
		if err != nil {
			return err
		}
		page := pager.Wrap(buf)
		keepGoing := true
		page.IterSlots(func(slotID int) bool {
			rec, err := page.ReadRecord(slotID)
			if err != nil {
				return true
			}
			if !fn(RID{PageID: pid, SlotID: slotID}, rec) {
				keepGoing = false
				return false
			}
			return true
		})
		h.bp.Unpin(pid, false)
		if !keepGoing {
			break
		}
	}
	return nil
}

// Insert places payload on the first page with enough free space per the
// FSM, allocating a new page if none qualifies, then returns its RID.
func (h *TableHeap) Insert(payload []byte) (RID, error) {
	need := len(payload)
	pid, ok := h.choosePageForInsert(need)
	if !ok {
		var err error
		pid, err = h.allocateDataPage()
		if err != nil {
			return RID{}, err
		}
	}

	buf, err := h.bp.GetPage(pid)
	if err != nil {
		return RID{}, err
	}
	page := pager.Wrap(buf)

	// Re-check real free space: the FSM entry may be stale.
	if page.FreeSpace() < need+slotOverhead() {
		h.bp.Unpin(pid, false)
		pid, err = h.allocateDataPage()
		if err != nil {
			return RID{}, err
		}
		buf, err = h.bp.GetPage(pid)
		if err != nil {
			return RID{}, err
		}
		page = pager.Wrap(buf)
	}

	slotID, err := page.InsertRecord(payload)
	if err != nil {
		h.bp.Unpin(pid, false)
		return RID{}, err
	}
	h.meta.FSM[pid] = page.FreeSpace()
	h.bp.Unpin(pid, true)
	return RID{PageID: pid, SlotID: slotID}, nil
}

// Delete tombstones rid's record.
func (h *TableHeap) Delete(rid RID) error {
	buf, err := h.bp.GetPage(rid.PageID)
	if err != nil {
		return err
	}
	page := pager.Wrap(buf)
	if err := page.DeleteRecord(rid.SlotID); err != nil {
		h.bp.Unpin(rid.PageID, false)
		return err
	}
	h.meta.FSM[rid.PageID] = page.FreeSpace()
	return h.bp.Unpin(rid.PageID, true)
}

// Update overwrites rid in place if the new payload is the same length,
// otherwise it deletes the old record and reinserts, possibly moving to a
// different page; the returned RID reflects the final location.
func (h *TableHeap) Update(rid RID, newPayload []byte) (RID, error) {
	buf, err := h.bp.GetPage(rid.PageID)
	if err != nil {
		return RID{}, err
	}
	page := pager.Wrap(buf)

	ok, err := page.OverwriteRecord(rid.SlotID, newPayload)
	if err != nil {
		h.bp.Unpin(rid.PageID, false)
		return RID{}, err
	}
	if ok {
		h.meta.FSM[rid.PageID] = page.FreeSpace()
		h.bp.Unpin(rid.PageID, true)
		return rid, nil
	}

	if err := page.DeleteRecord(rid.SlotID); err != nil {
		h.bp.Unpin(rid.PageID, false)
		return RID{}, err
	}
	h.meta.FSM[rid.PageID] = page.FreeSpace()
	h.bp.Unpin(rid.PageID, true)
	return h.Insert(newPayload)
}

func (h *TableHeap) choosePageForInsert(need int) (pager.PageID, bool) {
	required := need + slotOverhead()
	for _, pid := range h.meta.DataPIDs {
		if h.meta.FSM[pid] >= required {
			return pid, true
		}
	}
	return pager.InvalidPageID, false
}

func (h *TableHeap) allocateDataPage() (pager.PageID, error) {
	pid, err := h.pager.AllocatePage()
	if err != nil {
		return pager.InvalidPageID, err
	}
	h.meta.DataPIDs = append(h.meta.DataPIDs, pid)

	buf, err := h.bp.GetPage(pid)
	if err != nil {
		return pager.InvalidPageID, err
	}
	page := pager.Wrap(buf)
	page.FormatEmpty(pid)
	h.meta.FSM[pid] = page.FreeSpace()
	if err := h.bp.Unpin(pid, true); err != nil {
		return pager.InvalidPageID, err
	}
	return pid, nil
}
