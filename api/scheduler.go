/*
scheduler.go - Periodic pool reconciliation

PURPOSE:
  Confirming a distribution writes the participant and then the session
  pools in two steps. If the second write is lost, the stored pools drift
  from what the participant records imply. The reconciler periodically
  recomputes the pools of every settling session and repairs any drift.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only SETTLING sessions are checked; accepting sessions have no payouts
    and closed sessions are immutable
  - Each repair is logged; sessions already in agreement are left untouched

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether reconciler is active (default: true)

USAGE:
  reconciler := NewPoolReconciler(engine)
  reconciler.Start()
  // ... later
  reconciler.Stop()

SEE ALSO:
  - handlers.go: ReconcilePools endpoint (manual repair)
  - bankroll/pools.go: DerivePools
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/bankroll/bankroll"
)

// PoolReconciler repairs pool drift in settling sessions.
type PoolReconciler struct {
	Engine        *bankroll.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPoolReconciler creates a new reconciler.
func NewPoolReconciler(engine *bankroll.Engine) *PoolReconciler {
	return &PoolReconciler{
		Engine:        engine,
		CheckInterval: 1 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the reconciler.
func (pr *PoolReconciler) Start() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if !pr.Enabled {
		log.Println("[Reconciler] Disabled, not starting")
		return
	}
	if pr.ticker != nil {
		return
	}

	pr.ticker = time.NewTicker(pr.CheckInterval)
	pr.stop = make(chan bool)
	pr.wg.Add(1)

	go pr.run()

	log.Printf("[Reconciler] Started with check interval: %v", pr.CheckInterval)
}

// Stop stops the reconciler.
func (pr *PoolReconciler) Stop() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.ticker != nil {
		pr.ticker.Stop()
		close(pr.stop)
		pr.wg.Wait()
		pr.ticker = nil
		log.Println("[Reconciler] Stopped")
	}
}

func (pr *PoolReconciler) run() {
	defer pr.wg.Done()

	// Run immediately on start
	pr.checkAndRepair(context.Background())

	for {
		select {
		case <-pr.ticker.C:
			pr.checkAndRepair(context.Background())
		case <-pr.stop:
			return
		}
	}
}

// checkAndRepair reconciles every settling session and returns how many
// were repaired.
func (pr *PoolReconciler) checkAndRepair(ctx context.Context) int {
	sessions, err := pr.Engine.ListSessions(ctx)
	if err != nil {
		log.Printf("[Reconciler] Error listing sessions: %v", err)
		return 0
	}

	repaired := 0
	for _, s := range sessions {
		if s.Status != bankroll.SessionSettling {
			continue
		}
		changed, err := pr.Engine.ReconcilePools(ctx, s.ID)
		if err != nil {
			log.Printf("[Reconciler] Error reconciling %s: %v", s.ID, err)
			continue
		}
		if changed {
			log.Printf("[Reconciler] Repaired pools for session %s", s.ID)
			repaired++
		}
	}
	return repaired
}
