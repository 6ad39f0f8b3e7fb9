package pager

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/minidb/engine/internal/dberrors"
)

func newTestSlottedPage(t *testing.T) *SlottedPage {
	t.Helper()
	buf := make([]byte, DefaultPageSize)
	sp := Wrap(buf)
	sp.FormatEmpty(PageID(7))
	return sp
}

func TestSlottedPage_InsertReadRoundTrip(t *testing.T) {
	sp := newTestSlottedPage(t)
	payloads := [][]byte{[]byte("alpha"), []byte("beta"), []byte(""), []byte("gamma-gamma")}
	var slots []int
	for _, p := range payloads {
		sid, err := sp.InsertRecord(p)
		if err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
		slots = append(slots, sid)
	}
	for i, sid := range slots {
		got, err := sp.ReadRecord(sid)
		if err != nil {
			t.Fatalf("ReadRecord(%d): %v", sid, err)
		}
		if !bytes.Equal(got, payloads[i]) {
			t.Fatalf("slot %d: want %q got %q", sid, payloads[i], got)
		}
	}
}

func TestSlottedPage_DeleteIsIdempotentAndTombstones(t *testing.T) {
	sp := newTestSlottedPage(t)
	sid, _ := sp.InsertRecord([]byte("x"))
	if err := sp.DeleteRecord(sid); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := sp.DeleteRecord(sid); err != nil {
		t.Fatalf("DeleteRecord (second call): %v", err)
	}
	if _, err := sp.ReadRecord(sid); !errors.Is(err, dberrors.ErrRecordDeleted) {
		t.Fatalf("expected ErrRecordDeleted, got %v", err)
	}
}

func TestSlottedPage_OverwriteSameLength(t *testing.T) {
	sp := newTestSlottedPage(t)
	sid, _ := sp.InsertRecord([]byte("hello"))
	ok, err := sp.OverwriteRecord(sid, []byte("world"))
	if err != nil {
		t.Fatalf("OverwriteRecord: %v", err)
	}
	if !ok {
		t.Fatal("expected overwrite to succeed for equal length")
	}
	got, _ := sp.ReadRecord(sid)
	if string(got) != "world" {
		t.Fatalf("want world, got %s", got)
	}
}

func TestSlottedPage_OverwriteDifferentLengthLeavesPageUnchanged(t *testing.T) {
	sp := newTestSlottedPage(t)
	sid, _ := sp.InsertRecord([]byte("hello"))
	before, _ := sp.ReadRecord(sid)
	ok, err := sp.OverwriteRecord(sid, []byte("much longer payload"))
	if err != nil {
		t.Fatalf("OverwriteRecord: %v", err)
	}
	if ok {
		t.Fatal("expected overwrite to fail on length mismatch")
	}
	after, _ := sp.ReadRecord(sid)
	if !bytes.Equal(before, after) {
		t.Fatalf("page mutated on failed overwrite: before=%q after=%q", before, after)
	}
}

func TestSlottedPage_OutOfSpaceFails(t *testing.T) {
	sp := newTestSlottedPage(t)
	big := bytes.Repeat([]byte{1}, DefaultPageSize)
	if _, err := sp.InsertRecord(big); !errors.Is(err, dberrors.ErrOutOfPageSpace) {
		t.Fatalf("expected ErrOutOfPageSpace, got %v", err)
	}
}

func TestSlottedPage_IterSlotsSkipsTombstonesInAscendingOrder(t *testing.T) {
	sp := newTestSlottedPage(t)
	var ids []int
	for i := 0; i < 5; i++ {
		sid, _ := sp.InsertRecord([]byte(fmt.Sprintf("rec-%d", i)))
		ids = append(ids, sid)
	}
	sp.DeleteRecord(ids[1])
	sp.DeleteRecord(ids[3])

	var seen []int
	sp.IterSlots(func(sid int) bool {
		seen = append(seen, sid)
		return true
	})
	want := []int{ids[0], ids[2], ids[4]}
	if len(seen) != len(want) {
		t.Fatalf("want %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("want %v, got %v", want, seen)
		}
	}
}

func TestSlottedPage_FreeSpaceAccountsForNextSlot(t *testing.T) {
	sp := newTestSlottedPage(t)
	before := sp.FreeSpace()
	sp.InsertRecord([]byte("12345"))
	after := sp.FreeSpace()
	if after != before-5-SlotSize {
		t.Fatalf("expected free space to drop by payload+slot overhead: before=%d after=%d", before, after)
	}
}
