package pager

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minidb/engine/internal/dberrors"
)

func newTestPager(t *testing.T) *Pager {
	t.Helper()
	dir := t.TempDir()
	p, err := Open(filepath.Join(dir, "t.mdb"), DefaultPageSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPager_AllocatePageNeverDecreasesCount(t *testing.T) {
	p := newTestPager(t)
	last := p.PageCount()
	for i := 0; i < 10; i++ {
		if _, err := p.AllocatePage(); err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		if p.PageCount() < last {
			t.Fatalf("page_count decreased: %d -> %d", last, p.PageCount())
		}
		last = p.PageCount()
	}
}

func TestPager_FreeThenAllocateIsLIFO(t *testing.T) {
	p := newTestPager(t)
	var ids []PageID
	for i := 0; i < 5; i++ {
		pid, err := p.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		ids = append(ids, pid)
	}
	// free in order a,b,c -> free list head is c, then b, then a.
	for _, pid := range ids[:3] {
		if err := p.FreePage(pid); err != nil {
			t.Fatalf("FreePage(%d): %v", pid, err)
		}
	}
	for i := 2; i >= 0; i-- {
		got, err := p.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		if got != ids[i] {
			t.Fatalf("LIFO reuse mismatch: want %d got %d", ids[i], got)
		}
	}
}

func TestPager_ReadWriteRoundTrip(t *testing.T) {
	p := newTestPager(t)
	pid, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	data := bytes.Repeat([]byte{0xAB}, p.PageSize())
	if err := p.WritePage(pid, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	got, err := p.ReadPage(pid)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPager_FreedPageIsZeroFilledOnRealloc(t *testing.T) {
	p := newTestPager(t)
	pid, _ := p.AllocatePage()
	data := bytes.Repeat([]byte{0xFF}, p.PageSize())
	if err := p.WritePage(pid, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := p.FreePage(pid); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	got, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if got != pid {
		t.Fatalf("expected LIFO reuse of %d, got %d", pid, got)
	}
	buf, err := p.ReadPage(got)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zero: %x", i, b)
		}
	}
}

func TestPager_OutOfRangeFails(t *testing.T) {
	p := newTestPager(t)
	if _, err := p.ReadPage(PageID(999)); !errors.Is(err, dberrors.ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}

func TestPager_CannotFreeMetaPage(t *testing.T) {
	p := newTestPager(t)
	if err := p.FreePage(0); err == nil {
		t.Fatal("expected error freeing page 0")
	}
}

func TestPager_MagicMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.mdb")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0}, DefaultPageSize), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path, DefaultPageSize); err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestPager_ReopenPreservesPageSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.mdb")
	p, err := Open(path, DefaultPageSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pid, _ := p.AllocatePage()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	p2, err := Open(path, DefaultPageSize)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	if p2.PageSize() != DefaultPageSize {
		t.Fatalf("expected page_size %d after reopen, got %d", DefaultPageSize, p2.PageSize())
	}
	if p2.PageCount() != 2 {
		t.Fatalf("expected page_count 2 after reopen, got %d", p2.PageCount())
	}
	if _, err := p2.ReadPage(pid); err != nil {
		t.Fatalf("ReadPage after reopen: %v", err)
	}
}
