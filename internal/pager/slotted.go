package pager

import (
	"encoding/binary"
	"fmt"

	"github.com/minidb/engine/internal/dberrors"
)

// SlottedPage is a record-level view over one page buffer.
//
// Layout:
//
//	[0:4)   page_id   (u32)
//	[4:6)   free_off  (u16) — end of the used data area, grows upward
//	[6:8)   slot_count(u16)
//	[8:10)  flags     (u16)
//	[10 .. free_off)         data area
//	[free_off .. P-6*slot_count) unused
//	[P-6 .. P)               slot 0 (offset, length, tombstone, pad)
//	[P-12 .. P-6)            slot 1
//	...slot directory grows downward from the end of the page.
const (
	HeaderSize = 10
	SlotSize   = 6
)

// SlotEntry describes one directory entry.
type SlotEntry struct {
	Offset    uint16
	Length    uint16
	Tombstone bool
}

// Wrap adapts an existing page buffer (size P) for record operations.
func Wrap(buf []byte) *SlottedPage {
	return &SlottedPage{buf: buf}
}

type SlottedPage struct {
	buf []byte
}

// FormatEmpty zeroes the page and writes the initial header.
func (sp *SlottedPage) FormatEmpty(pid PageID) {
	for i := range sp.buf {
		sp.buf[i] = 0
	}
	binary.LittleEndian.PutUint32(sp.buf[0:4], uint32(pid))
	binary.LittleEndian.PutUint16(sp.buf[4:6], uint16(HeaderSize))
	binary.LittleEndian.PutUint16(sp.buf[6:8], 0)
	binary.LittleEndian.PutUint16(sp.buf[8:10], 0)
}

func (sp *SlottedPage) PageID() PageID {
	return PageID(binary.LittleEndian.Uint32(sp.buf[0:4]))
}

func (sp *SlottedPage) FreeOff() int {
	return int(binary.LittleEndian.Uint16(sp.buf[4:6]))
}

func (sp *SlottedPage) setFreeOff(off int) {
	binary.LittleEndian.PutUint16(sp.buf[4:6], uint16(off))
}

func (sp *SlottedPage) SlotCount() int {
	return int(binary.LittleEndian.Uint16(sp.buf[6:8]))
}

func (sp *SlottedPage) setSlotCount(n int) {
	binary.LittleEndian.PutUint16(sp.buf[6:8], uint16(n))
}

func (sp *SlottedPage) slotOffset(slotID int) int {
	return len(sp.buf) - (slotID+1)*SlotSize
}

func (sp *SlottedPage) getSlot(slotID int) SlotEntry {
	off := sp.slotOffset(slotID)
	return SlotEntry{
		Offset:    binary.LittleEndian.Uint16(sp.buf[off:]),
		Length:    binary.LittleEndian.Uint16(sp.buf[off+2:]),
		Tombstone: sp.buf[off+4] != 0,
	}
}

func (sp *SlottedPage) setSlot(slotID int, e SlotEntry) {
	off := sp.slotOffset(slotID)
	binary.LittleEndian.PutUint16(sp.buf[off:], e.Offset)
	binary.LittleEndian.PutUint16(sp.buf[off+2:], e.Length)
	if e.Tombstone {
		sp.buf[off+4] = 1
	} else {
		sp.buf[off+4] = 0
	}
	sp.buf[off+5] = 0
}

// FreeSpace is the number of bytes available for a new record plus its
// slot entry (spec §3: accounts for one not-yet-allocated slot).
func (sp *SlottedPage) FreeSpace() int {
	return len(sp.buf) - sp.FreeOff() - (sp.SlotCount()+1)*SlotSize
}

func (sp *SlottedPage) checkSlot(slotID int) error {
	if slotID < 0 || slotID >= sp.SlotCount() {
		return fmt.Errorf("%w: slot %d out of range [0,%d)", dberrors.ErrStorageIO, slotID, sp.SlotCount())
	}
	return nil
}

// InsertRecord appends payload to the data area and allocates a new slot
// for it. Returns ErrOutOfPageSpace if there isn't room.
func (sp *SlottedPage) InsertRecord(payload []byte) (int, error) {
	if sp.FreeSpace() < len(payload)+SlotSize {
		return -1, fmt.Errorf("%w: need %d bytes, have %d", dberrors.ErrOutOfPageSpace, len(payload)+SlotSize, sp.FreeSpace())
	}
	off := sp.FreeOff()
	copy(sp.buf[off:off+len(payload)], payload)
	sp.setFreeOff(off + len(payload))

	slotID := sp.SlotCount()
	sp.setSlot(slotID, SlotEntry{Offset: uint16(off), Length: uint16(len(payload))})
	sp.setSlotCount(slotID + 1)
	return slotID, nil
}

// ReadRecord returns the payload at slotID, or ErrRecordDeleted if
// tombstoned.
func (sp *SlottedPage) ReadRecord(slotID int) ([]byte, error) {
	if err := sp.checkSlot(slotID); err != nil {
		return nil, err
	}
	e := sp.getSlot(slotID)
	if e.Tombstone {
		return nil, fmt.Errorf("%w: slot %d", dberrors.ErrRecordDeleted, slotID)
	}
	out := make([]byte, e.Length)
	copy(out, sp.buf[e.Offset:int(e.Offset)+int(e.Length)])
	return out, nil
}

// DeleteRecord tombstones slotID. Idempotent.
func (sp *SlottedPage) DeleteRecord(slotID int) error {
	if err := sp.checkSlot(slotID); err != nil {
		return err
	}
	e := sp.getSlot(slotID)
	e.Tombstone = true
	sp.setSlot(slotID, e)
	return nil
}

// OverwriteRecord replaces the payload in place iff the length matches the
// existing record. Returns false (page unchanged) on a length mismatch.
func (sp *SlottedPage) OverwriteRecord(slotID int, payload []byte) (bool, error) {
	if err := sp.checkSlot(slotID); err != nil {
		return false, err
	}
	e := sp.getSlot(slotID)
	if e.Tombstone {
		return false, fmt.Errorf("%w: slot %d", dberrors.ErrRecordDeleted, slotID)
	}
	if int(e.Length) != len(payload) {
		return false, nil
	}
	copy(sp.buf[e.Offset:int(e.Offset)+int(e.Length)], payload)
	return true, nil
}

// RecordLength returns the stored length of slotID, tombstoned or not.
func (sp *SlottedPage) RecordLength(slotID int) (int, error) {
	if err := sp.checkSlot(slotID); err != nil {
		return 0, err
	}
	return int(sp.getSlot(slotID).Length), nil
}

// IterSlots calls fn for every live slot (tombstone==0 && length>0) in
// ascending slot-id order. Stops early if fn returns false.
func (sp *SlottedPage) IterSlots(fn func(slotID int) bool) {
	for i := 0; i < sp.SlotCount(); i++ {
		e := sp.getSlot(i)
		if e.Tombstone || e.Length == 0 {
			continue
		}
		if !fn(i) {
			return
		}
	}
}

// Bytes returns the underlying page buffer.
func (sp *SlottedPage) Bytes() []byte { return sp.buf }
