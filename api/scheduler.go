/*
scheduler.go - Background reclassification sweep

PURPOSE:
  Periodically reruns classification for every member-year so flags left
  stale by a failed write-back (or edited by hand in the database) are
  repaired without anyone calling the reclassify endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Each sweep gets its own timeout so a hung store cannot pile up runs
  - Individual member-year failures are counted by the ledger, not fatal

CONFIGURATION:
  - CheckInterval: How often to sweep (RECLASSIFY_INTERVAL)
  - Enabled: Whether scheduler is active

USAGE:
  scheduler := NewReclassificationScheduler(ledger, 15*time.Minute)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave/ledger.go: ReclassifyAll
  - handlers.go: Reclassify endpoint (single member-year)
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-ledger/leave"
)

// Sweeper is the part of leave.Ledger the scheduler drives.
type Sweeper interface {
	ReclassifyAll(ctx context.Context) (leave.SweepReport, error)
}

// ReclassificationScheduler runs ReclassifyAll on a ticker.
type ReclassificationScheduler struct {
	Sweeper       Sweeper
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
	last    leave.SweepReport
}

// NewReclassificationScheduler creates a scheduler. A non-positive interval
// leaves it disabled.
func NewReclassificationScheduler(sweeper Sweeper, interval time.Duration) *ReclassificationScheduler {
	return &ReclassificationScheduler{
		Sweeper:       sweeper,
		CheckInterval: interval,
		Enabled:       interval > 0,
		Logger:        zap.L().Named("scheduler"),
	}
}

// Start begins the scheduler.
func (rs *ReclassificationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("reclassification scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("reclassification scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (rs *ReclassificationScheduler) Stop() {
	rs.mu.Lock()
	if rs.ticker == nil {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.ticker = nil
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.Logger.Info("reclassification scheduler stopped")
}

func (rs *ReclassificationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	rs.RunNow()
	for {
		select {
		case <-ticker.C:
			rs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep synchronously.
func (rs *ReclassificationScheduler) RunNow() leave.SweepReport {
	timeout := rs.CheckInterval
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	report, err := rs.Sweeper.ReclassifyAll(ctx)
	if err != nil {
		rs.Logger.Error("reclassification sweep failed", zap.Error(err))
	} else {
		rs.Logger.Info("reclassification sweep finished",
			zap.Int("member_years", report.MemberYears),
			zap.Int("flags_changed", report.Changed),
			zap.Int("failed", report.Failed),
			zap.Duration("took", time.Since(start)),
		)
	}

	rs.mu.Lock()
	rs.lastRun = start
	rs.last = report
	rs.mu.Unlock()

	if rs.Enabled {
		rs.Logger.Debug("next reclassification sweep", zap.Time("at", rs.GetNextRunTime()))
	}
	return report
}

// LastRun returns when the last sweep started and what it did.
func (rs *ReclassificationScheduler) LastRun() (time.Time, leave.SweepReport) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun, rs.last
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *ReclassificationScheduler) GetNextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Now().Add(rs.CheckInterval)
	}
	return rs.lastRun.Add(rs.CheckInterval)
}
