/*
scheduler.go - Document retention janitor

PURPOSE:
  Periodically clears the stored document path on policies older than
  the retention window, so scanned policy documents are not referenced
  past the year they are legally needed.

DESIGN:
  - Background goroutine with a configurable check interval
  - Each pass asks the store for policies created before the cutoff
    that still carry a document path, and clears them one by one
  - Start/Stop are idempotent enough for server lifecycle use

CONFIGURATION:
  - CheckInterval: How often to check (default: 24 hours)
  - Retention:     Age after which documents are dropped (default: 1 year)

USAGE:
  janitor := NewDocumentJanitor(store)
  janitor.Start()
  // ... later
  janitor.Stop()

SEE ALSO:
  - insurance/store.go: ListPoliciesWithDocumentsBefore, ClearDocumentPath
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/isth3root/bz-exp/insurance"
)

// DocumentJanitor clears expired policy document references.
type DocumentJanitor struct {
	Store         insurance.Store
	CheckInterval time.Duration
	Retention     time.Duration

	now    func() time.Time
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDocumentJanitor creates a janitor with default intervals.
func NewDocumentJanitor(store insurance.Store) *DocumentJanitor {
	return &DocumentJanitor{
		Store:         store,
		CheckInterval: 24 * time.Hour,
		Retention:     365 * 24 * time.Hour,
		now:           time.Now,
		stop:          make(chan bool),
	}
}

// Start begins the background sweep.
func (dj *DocumentJanitor) Start() {
	dj.mu.Lock()
	defer dj.mu.Unlock()

	dj.ticker = time.NewTicker(dj.CheckInterval)
	dj.wg.Add(1)
	go dj.run()

	log.Printf("[Janitor] Started with check interval: %v", dj.CheckInterval)
}

// Stop stops the sweep and waits for the goroutine to exit.
func (dj *DocumentJanitor) Stop() {
	dj.mu.Lock()
	defer dj.mu.Unlock()

	if dj.ticker != nil {
		dj.ticker.Stop()
		close(dj.stop)
		dj.wg.Wait()
		log.Println("[Janitor] Stopped")
	}
}

func (dj *DocumentJanitor) run() {
	defer dj.wg.Done()

	// Run immediately on start
	dj.sweep()

	for {
		select {
		case <-dj.ticker.C:
			dj.sweep()
		case <-dj.stop:
			return
		}
	}
}

func (dj *DocumentJanitor) sweep() {
	ctx := context.Background()
	cutoff := dj.now().Add(-dj.Retention)

	stale, err := dj.Store.ListPoliciesWithDocumentsBefore(ctx, cutoff)
	if err != nil {
		log.Printf("[Janitor] Error listing stale documents: %v", err)
		return
	}

	cleared := 0
	for _, p := range stale {
		if err := dj.Store.ClearDocumentPath(ctx, p.ID); err != nil {
			log.Printf("[Janitor] Error clearing document for policy %d: %v", p.ID, err)
			continue
		}
		cleared++
	}

	if cleared > 0 {
		log.Printf("[Janitor] Cleared %d stale document references", cleared)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (dj *DocumentJanitor) RunNow() {
	dj.sweep()
}
