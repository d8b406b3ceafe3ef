package core

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically expires jobs left pending past the retention window
// and reclaims their artifacts. Nothing else drives the expired status.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
}

func NewSweeper(manager *Manager, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Sweeper{
		manager:  manager,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep runs one expiry pass. Exposed for manual triggering and tests.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	n, err := s.manager.ExpireStale(ctx, cutoff)
	if err != nil {
		log.Printf("[sweeper] expiry pass failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[sweeper] expired %d stale jobs", n)
	}
}
