package buffer

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Stats mirrors the teacher's instance/global statistics shape: hit/miss
// counters, disk I/O counters, eviction counters, pin traffic, and
// resident-page watermarks.
type Stats struct {
	Hits            int64
	Misses          int64
	Reads           int64
	Writes          int64
	EvictClean      int64
	EvictDirty      int64
	Pins            int64
	Unpins          int64
	CurrentResident int64
	MaxResident     int64
	Capacity        int64
	StartTS         time.Time
}

// BriefStats is the compact hit/miss/evict summary kept for compatibility
// with callers that only want the headline numbers.
type BriefStats struct {
	Capacity int
	Cached   int
	Hit      int64
	Miss     int64
	Evict    int64
	HitRate  float64
}

var (
	globalMu     sync.Mutex
	global       = Stats{StartTS: time.Now()}
	evictLogger  *log.Logger
	evictLogFile *os.File
)

func globalAdd(delta Stats) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global.Hits += delta.Hits
	global.Misses += delta.Misses
	global.Reads += delta.Reads
	global.Writes += delta.Writes
	global.EvictClean += delta.EvictClean
	global.EvictDirty += delta.EvictDirty
	global.Pins += delta.Pins
	global.Unpins += delta.Unpins
}

func globalBumpCapacity(cap int) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if int64(cap) > global.Capacity {
		global.Capacity = int64(cap)
	}
}

// GlobalStats returns the process-wide aggregated statistics across every
// BufferPool instance created in this process. The hit/miss, read/write,
// eviction and pin/unpin counters are summed and Capacity is the largest
// pool capacity seen; CurrentResident and MaxResident are not aggregated
// and read zero here (they are tracked per instance only).
func GlobalStats() Stats {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// ResetGlobalStats zeroes every counter except the capacity watermark and
// restarts the measurement window.
func ResetGlobalStats() {
	globalMu.Lock()
	defer globalMu.Unlock()
	cap := global.Capacity
	global = Stats{Capacity: cap, StartTS: time.Now()}
}

// EnableGlobalEvictionLog turns on an eviction log file shared by every
// BufferPool in the process. Calling it again while already enabled is a
// no-op, matching the teacher's logging setup in cmd/server/main.go.
func EnableGlobalEvictionLog(path string) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if evictLogger != nil {
		return nil
	}
	if path == "" {
		if err := os.MkdirAll("__logs__", 0o755); err != nil {
			return fmt.Errorf("enable eviction log: %w", err)
		}
		path = "__logs__/buffer_pool.log"
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("enable eviction log: %w", err)
	}
	evictLogFile = f
	evictLogger = log.New(f, "", log.LstdFlags)
	return nil
}

// DisableGlobalEvictionLog turns the eviction log back off and closes its
// file handle.
func DisableGlobalEvictionLog() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if evictLogFile != nil {
		evictLogFile.Close()
	}
	evictLogFile = nil
	evictLogger = nil
}

func logEviction(format string, args ...any) {
	globalMu.Lock()
	l := evictLogger
	globalMu.Unlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
