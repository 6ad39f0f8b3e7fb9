package pager

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/minidb/engine/internal/dberrors"
)

// Pager owns exactly one open file and serializes all page-level I/O
// against it. It knows nothing about caching — that is the BufferPool's
// job, layered on top (spec §3: "a Pager is shared by all pools bound to
// the same file").
type Pager struct {
	mu     sync.RWMutex
	file   *os.File
	path   string
	meta   Meta
	closed bool
}

// Open opens an existing table file or creates one with the given page
// size. Magic or page-size mismatch on an existing file is fatal.
func Open(path string, pageSize int) (*Pager, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	isNew := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open table file %s: %v", dberrors.ErrStorageIO, path, err)
	}

	p := &Pager{file: f, path: path}

	if isNew {
		p.meta = newMeta(pageSize)
		buf := make([]byte, pageSize)
		marshalMeta(p.meta, buf)
		if _, err := f.WriteAt(buf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: write meta page: %v", dberrors.ErrStorageIO, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: sync new table file: %v", dberrors.ErrStorageIO, err)
		}
		return p, nil
	}

	buf := make([]byte, pageSize)
	n, err := f.ReadAt(buf, 0)
	if n != pageSize {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		f.Close()
		return nil, fmt.Errorf("%w: read meta page: %v", dberrors.ErrStorageIO, err)
	}
	meta, err := unmarshalMeta(buf, pageSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.meta = meta
	return p, nil
}

// PageSize returns the page size in effect for this file.
func (p *Pager) PageSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return int(p.meta.PageSize)
}

// PageCount returns the total number of pages, including the meta page.
func (p *Pager) PageCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return int(p.meta.PageCount)
}

func (p *Pager) checkRange(pid PageID) error {
	if int64(pid) < 0 || int64(pid) >= int64(p.meta.PageCount) {
		return fmt.Errorf("%w: page %d (page_count=%d)", dberrors.ErrPageOutOfRange, pid, p.meta.PageCount)
	}
	return nil
}

func (p *Pager) readPageRaw(pid PageID) ([]byte, error) {
	buf := make([]byte, p.meta.PageSize)
	off := int64(pid) * int64(p.meta.PageSize)
	n, err := p.file.ReadAt(buf, off)
	if n != len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read page %d: %v", dberrors.ErrStorageIO, pid, err)
	}
	return buf, nil
}

func (p *Pager) writePageRaw(pid PageID, buf []byte) error {
	if len(buf) != int(p.meta.PageSize) {
		return fmt.Errorf("%w: write page %d: expected %d bytes, got %d", dberrors.ErrStorageIO, pid, p.meta.PageSize, len(buf))
	}
	off := int64(pid) * int64(p.meta.PageSize)
	if _, err := p.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("%w: write page %d: %v", dberrors.ErrStorageIO, pid, err)
	}
	return nil
}

func (p *Pager) writeMeta() error {
	buf := make([]byte, p.meta.PageSize)
	marshalMeta(p.meta, buf)
	if _, err := p.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: write meta page: %v", dberrors.ErrStorageIO, err)
	}
	return p.file.Sync()
}

// ReadPage reads one page by id. Fails if pid is out of [0, page_count).
func (p *Pager) ReadPage(pid PageID) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.checkRange(pid); err != nil {
		return nil, err
	}
	return p.readPageRaw(pid)
}

// WritePage writes exactly PageSize() bytes to the given page.
func (p *Pager) WritePage(pid PageID, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkRange(pid); err != nil {
		return err
	}
	return p.writePageRaw(pid, data)
}

// AllocatePage returns a fresh, zero-filled page id: popped from the free
// list in O(1) if non-empty, otherwise appended at end-of-file.
func (p *Pager) AllocatePage() (PageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pid, ok, err := p.popFreeHead(); err != nil {
		return InvalidPageID, err
	} else if ok {
		if err := p.writeMeta(); err != nil {
			return InvalidPageID, err
		}
		zero := make([]byte, p.meta.PageSize)
		if err := p.writePageRaw(pid, zero); err != nil {
			return InvalidPageID, err
		}
		return pid, nil
	}

	pid := PageID(p.meta.PageCount)
	p.meta.PageCount++
	if err := p.writeMeta(); err != nil {
		return InvalidPageID, err
	}
	zero := make([]byte, p.meta.PageSize)
	if err := p.writePageRaw(pid, zero); err != nil {
		return InvalidPageID, err
	}
	return pid, nil
}

// FreePage returns pid to the free list. Freeing page 0 (the meta page) is
// rejected.
func (p *Pager) FreePage(pid PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pid == 0 {
		return fmt.Errorf("%w: cannot free meta page 0", dberrors.ErrStorageIO)
	}
	if err := p.checkRange(pid); err != nil {
		return err
	}
	if err := p.pushFree(pid); err != nil {
		return err
	}
	return p.writeMeta()
}

// Sync flushes OS buffers for the underlying file.
func (p *Pager) Sync() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", dberrors.ErrStorageIO, err)
	}
	return nil
}

// Close syncs then closes the underlying file. Safe to call more than once.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		return fmt.Errorf("%w: sync on close: %v", dberrors.ErrStorageIO, err)
	}
	return p.file.Close()
}

// Path returns the table file path this Pager was opened against.
func (p *Pager) Path() string { return p.path }
