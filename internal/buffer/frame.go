// Package buffer implements a fixed-capacity page cache layered on top of
// a pager.Pager: get/unpin with pin counting, LRU or FIFO eviction of the
// unpinned candidate set, write-behind dirty tracking, and both
// per-instance and process-wide aggregated statistics.
package buffer

import "github.com/minidb/engine/internal/pager"

// Frame is one buffer pool slot: a cached page plus its control state.
type Frame struct {
	PageID   pager.PageID
	Data     []byte
	PinCount int
	Dirty    bool
}
