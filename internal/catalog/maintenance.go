package catalog

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/minidb/engine/internal/buffer"
)

// Scheduler runs periodic maintenance ticks (checkpoint flush, stats
// log) against the engine's shared StorageAdapter outside of any single
// statement's execution. It generalizes tinySQL's own CRON-backed SQL
// job scheduler (internal/storage/scheduler.go) from "run scheduled SQL"
// to "run scheduled storage maintenance" — the core engine itself stays
// single-threaded per spec.md §5, but a maintenance tick firing between
// statements doesn't violate that: each tick runs to completion before
// the next can fire, just like a statement does.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler builds a maintenance scheduler using second-resolution
// CRON expressions, matching tinySQL's own parser configuration
// (cron.WithSeconds()).
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
	}
}

// AddCheckpoint registers a periodic flush+sync job at the given CRON
// schedule (e.g. "*/30 * * * * *" for every 30 seconds). flushAll is
// typically storageadapter.StorageAdapter.FlushAll, kept as a function
// value here to avoid this package importing storageadapter just for a
// checkpoint hook.
func (s *Scheduler) AddCheckpoint(schedule string, flushAll func() error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := flushAll(); err != nil {
			log.Printf("maintenance: checkpoint flush failed: %v", err)
			return
		}
		st := buffer.GlobalStats()
		log.Printf("maintenance: checkpoint ok (global resident watermark=%d capacity=%d)", st.MaxResident, st.Capacity)
	})
	if err != nil {
		return fmt.Errorf("maintenance: add checkpoint job: %w", err)
	}
	return nil
}

// AddStatsLog registers a periodic job that logs the process-wide
// buffer pool statistics aggregate (§4.3).
func (s *Scheduler) AddStatsLog(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		st := buffer.GlobalStats()
		log.Printf("maintenance: global stats hits=%d misses=%d evict_clean=%d evict_dirty=%d",
			st.Hits, st.Misses, st.EvictClean, st.EvictDirty)
	})
	if err != nil {
		return fmt.Errorf("maintenance: add stats-log job: %w", err)
	}
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("maintenance: scheduler started with %d job(s)", len(s.cron.Entries()))
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("maintenance: scheduler stopped")
}
