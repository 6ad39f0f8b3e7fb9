package buffer

import (
	"container/list"

	"github.com/minidb/engine/internal/pager"
)

// evictionPolicy tracks the candidate set of unpinned pages and chooses a
// victim on eviction. touch/remove are called only while a page's pin
// count is zero or transitioning to/from zero.
type evictionPolicy interface {
	touch(pid pager.PageID)
	remove(pid pager.PageID)
	victim() (pager.PageID, bool)
}

// lruPolicy evicts the least recently unpinned page first.
type lruPolicy struct {
	order *list.List
	index map[pager.PageID]*list.Element
}

func newLRUPolicy() *lruPolicy {
	return &lruPolicy{order: list.New(), index: make(map[pager.PageID]*list.Element)}
}

func (p *lruPolicy) touch(pid pager.PageID) {
	if e, ok := p.index[pid]; ok {
		p.order.Remove(e)
	}
	p.index[pid] = p.order.PushBack(pid)
}

func (p *lruPolicy) remove(pid pager.PageID) {
	if e, ok := p.index[pid]; ok {
		p.order.Remove(e)
		delete(p.index, pid)
	}
}

func (p *lruPolicy) victim() (pager.PageID, bool) {
	front := p.order.Front()
	if front == nil {
		return pager.InvalidPageID, false
	}
	pid := front.Value.(pager.PageID)
	p.order.Remove(front)
	delete(p.index, pid)
	return pid, true
}

// fifoPolicy evicts in pure arrival order, regardless of later touches.
type fifoPolicy struct {
	queue []pager.PageID
	inQ   map[pager.PageID]bool
}

func newFIFOPolicy() *fifoPolicy {
	return &fifoPolicy{inQ: make(map[pager.PageID]bool)}
}

func (p *fifoPolicy) touch(pid pager.PageID) {
	if !p.inQ[pid] {
		p.queue = append(p.queue, pid)
		p.inQ[pid] = true
	}
}

func (p *fifoPolicy) remove(pid pager.PageID) {
	delete(p.inQ, pid)
}

func (p *fifoPolicy) victim() (pager.PageID, bool) {
	for len(p.queue) > 0 {
		pid := p.queue[0]
		p.queue = p.queue[1:]
		if p.inQ[pid] {
			delete(p.inQ, pid)
			return pid, true
		}
	}
	return pager.InvalidPageID, false
}
