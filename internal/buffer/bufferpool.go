package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/minidb/engine/internal/dberrors"
	"github.com/minidb/engine/internal/pager"
)

// Policy selects the eviction discipline used by a BufferPool.
type Policy string

const (
	LRU  Policy = "LRU"
	FIFO Policy = "FIFO"
)

// BufferPool caches up to Capacity pages of one Pager in memory, evicting
// from the unpinned candidate set when full.
type BufferPool struct {
	mu       sync.Mutex
	pager    *pager.Pager
	capacity int
	policy   evictionPolicy

	frames map[pager.PageID]*Frame

	hit, miss, evict int64
	stats            Stats
}

// New creates a BufferPool of the given capacity (in pages) bound to p,
// using the named eviction policy.
func New(p *pager.Pager, capacity int, policy Policy) (*BufferPool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer pool capacity must be positive, got %d", capacity)
	}
	var ep evictionPolicy
	switch policy {
	case LRU, "":
		ep = newLRUPolicy()
	case FIFO:
		ep = newFIFOPolicy()
	default:
		return nil, fmt.Errorf("buffer pool policy must be LRU or FIFO, got %q", policy)
	}
	globalBumpCapacity(capacity)
	return &BufferPool{
		pager:    p,
		capacity: capacity,
		policy:   ep,
		frames:   make(map[pager.PageID]*Frame),
		stats:    Stats{Capacity: int64(capacity), StartTS: time.Now()},
	}, nil
}

// GetPage returns the live, writable backing buffer for page_id, pinning
// it. The caller must call Unpin exactly once per GetPage call.
func (bp *BufferPool) GetPage(pageID pager.PageID) ([]byte, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if fr, ok := bp.frames[pageID]; ok {
		bp.hit++
		bp.stats.Hits++
		bp.stats.Pins++
		globalAdd(Stats{Hits: 1, Pins: 1})
		fr.PinCount++
		return fr.Data, nil
	}

	bp.miss++
	bp.stats.Misses++
	globalAdd(Stats{Misses: 1})

	if len(bp.frames) >= bp.capacity {
		if err := bp.evictFor(pageID); err != nil {
			return nil, err
		}
	}

	raw, err := bp.pager.ReadPage(pageID)
	if err != nil {
		return nil, err
	}
	bp.stats.Reads++
	globalAdd(Stats{Reads: 1})

	fr := &Frame{PageID: pageID, Data: raw, PinCount: 1}
	bp.frames[pageID] = fr

	bp.stats.CurrentResident++
	if bp.stats.CurrentResident > bp.stats.MaxResident {
		bp.stats.MaxResident = bp.stats.CurrentResident
	}
	bp.stats.Pins++
	globalAdd(Stats{Pins: 1})

	return fr.Data, nil
}

// Unpin releases one pin on page_id. dirty marks the page as needing
// write-back. When the pin count reaches zero the page becomes eligible
// for eviction.
func (bp *BufferPool) Unpin(pageID pager.PageID, dirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fr, ok := bp.frames[pageID]
	if !ok {
		return fmt.Errorf("page %d not in buffer pool (did you forget GetPage?)", pageID)
	}
	if fr.PinCount == 0 {
		return nil
	}
	fr.PinCount--
	bp.stats.Unpins++
	globalAdd(Stats{Unpins: 1})
	if dirty {
		fr.Dirty = true
	}
	if fr.PinCount == 0 {
		bp.policy.touch(pageID)
	}
	return nil
}

// FlushPage writes page_id back to disk if it is dirty.
func (bp *BufferPool) FlushPage(pageID pager.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	fr, ok := bp.frames[pageID]
	if !ok || !fr.Dirty {
		return nil
	}
	if err := bp.pager.WritePage(pageID, fr.Data); err != nil {
		return err
	}
	fr.Dirty = false
	bp.stats.Writes++
	globalAdd(Stats{Writes: 1})
	return nil
}

// FlushAll writes back every dirty page and syncs the underlying pager.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid, fr := range bp.frames {
		if fr.Dirty {
			if err := bp.pager.WritePage(pid, fr.Data); err != nil {
				return err
			}
			fr.Dirty = false
			bp.stats.Writes++
			globalAdd(Stats{Writes: 1})
		}
	}
	return bp.pager.Sync()
}

// Stats returns the compact hit/miss/evict summary.
func (bp *BufferPool) Stats() BriefStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	total := bp.hit + bp.miss
	var rate float64
	if total > 0 {
		rate = float64(bp.hit) / float64(total)
	}
	return BriefStats{
		Capacity: bp.capacity,
		Cached:   len(bp.frames),
		Hit:      bp.hit,
		Miss:     bp.miss,
		Evict:    bp.evict,
		HitRate:  rate,
	}
}

// StatsSnapshot returns the full instance-level statistics.
func (bp *BufferPool) StatsSnapshot() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.stats
}

// ResetStats zeroes the compact hit/miss/evict counters.
func (bp *BufferPool) ResetStats() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.hit, bp.miss, bp.evict = 0, 0, 0
}

// evictFor makes room for incomingPID by evicting one unpinned page,
// writing it back first if dirty. The caller must hold bp.mu.
func (bp *BufferPool) evictFor(incomingPID pager.PageID) error {
	for {
		victimPID, ok := bp.policy.victim()
		if !ok {
			return fmt.Errorf("%w: all %d pages pinned, cannot evict for page %d", dberrors.ErrBufferPoolExhausted, bp.capacity, incomingPID)
		}
		fr, ok := bp.frames[victimPID]
		if !ok || fr.PinCount > 0 {
			continue
		}

		if fr.Dirty {
			logEviction("EVICT pid=%d dirty=true -> writeback; replace with pid=%d", victimPID, incomingPID)
			if err := bp.pager.WritePage(victimPID, fr.Data); err != nil {
				return err
			}
			bp.stats.EvictDirty++
			bp.stats.Writes++
			globalAdd(Stats{EvictDirty: 1, Writes: 1})
		} else {
			logEviction("EVICT pid=%d dirty=false", victimPID)
			bp.stats.EvictClean++
			globalAdd(Stats{EvictClean: 1})
		}

		delete(bp.frames, victimPID)
		bp.policy.remove(victimPID)
		bp.stats.CurrentResident--
		if bp.stats.CurrentResident < 0 {
			bp.stats.CurrentResident = 0
		}
		bp.evict++
		return nil
	}
}
