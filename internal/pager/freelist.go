package pager

import "encoding/binary"

// Free pages form an intrusive singly linked list rooted at the meta
// page's free_head. A free page's layout is just its next pointer in the
// first 4 bytes (int32, -1 terminates), the rest zero-filled — there is no
// separate free-list page type, unlike a batched free-list-page design.

// popFreeHead removes and returns the head of the free list, or
// (InvalidPageID, false) if the list is empty. The caller must have p.mu held.
func (p *Pager) popFreeHead() (PageID, bool, error) {
	if p.meta.FreeHead < 0 {
		return InvalidPageID, false, nil
	}
	pid := PageID(p.meta.FreeHead)
	buf, err := p.readPageRaw(pid)
	if err != nil {
		return InvalidPageID, false, err
	}
	next := int32(binary.LittleEndian.Uint32(buf[0:4]))
	p.meta.FreeHead = next
	return pid, true, nil
}

// pushFree links pid onto the head of the free list. The caller must have
// p.mu held and must not reuse the page's prior contents.
func (p *Pager) pushFree(pid PageID) error {
	buf := make([]byte, p.meta.PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.meta.FreeHead))
	if err := p.writePageRaw(pid, buf); err != nil {
		return err
	}
	p.meta.FreeHead = int32(pid)
	return nil
}
