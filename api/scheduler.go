/*
scheduler.go - Nightly recompute scheduler

PURPOSE:
  Periodically recomputes the most recent closed workdays for every known
  employee, so anomalies exist even for days nobody punched (absences)
  and for days whose punches arrived late.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each tick recomputes [today-Lookback, today-1] in the service clock's
    zone; recompute is idempotent so overlapping runs are harmless
  - Days rejected for clock skew are counted, not retried
  - Keeps the last RecomputeSummary for RunNow callers and logs

CONFIGURATION:
  - Interval: How often to run (default: 24 hours)
  - Lookback: Number of closed days per run (default: 1)
  - Enabled:  Whether the scheduler starts at all

USAGE:
  scheduler := NewRecomputeScheduler(svc, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - attendance/service.go: RecomputeRange
  - handlers.go: POST /api/recompute (manual trigger)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/timekeeping"
)

// RecomputeScheduler runs the nightly recompute.
type RecomputeScheduler struct {
	Service  *attendance.Service
	Log      zerolog.Logger
	Interval time.Duration
	Lookback int
	Enabled  bool
	Now      func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   attendance.RecomputeSummary
}

// NewRecomputeScheduler creates a scheduler with the default cadence.
func NewRecomputeScheduler(svc *attendance.Service, log zerolog.Logger) *RecomputeScheduler {
	return &RecomputeScheduler{
		Service:  svc,
		Log:      log,
		Interval: 24 * time.Hour,
		Lookback: 1,
		Enabled:  true,
		Now:      time.Now,
	}
}

// Start begins the scheduler.
func (rs *RecomputeScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info().Msg("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)

	rs.Log.Info().Dur("interval", rs.Interval).Int("lookback", rs.Lookback).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (rs *RecomputeScheduler) Stop() {
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
	rs.Log.Info().Msg("scheduler stopped")
}

func (rs *RecomputeScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	rs.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// Window is the range of closed days the next pass covers.
func (rs *RecomputeScheduler) Window() timekeeping.Period {
	lookback := max(rs.Lookback, 1)
	today := rs.Service.Clock().DayOf(rs.Now())
	return timekeeping.Period{Start: today.AddDays(-lookback), End: today.AddDays(-1)}
}

// RunNow performs one recompute pass and returns its summary.
func (rs *RecomputeScheduler) RunNow(ctx context.Context) (attendance.RecomputeSummary, error) {
	period := rs.Window()
	started := time.Now()

	summary, err := rs.Service.RecomputeRange(ctx, nil, period)

	rs.mu.Lock()
	rs.last = summary
	rs.mu.Unlock()

	evt := rs.Log.Info()
	if err != nil {
		evt = rs.Log.Error().Err(err)
	}
	evt.Str("period", period.String()).
		Int("employees", summary.Employees).
		Int("days", summary.Days).
		Int("anomalies", summary.Anomalies).
		Int("skipped", summary.Skipped).
		Dur("elapsed", time.Since(started)).
		Msg("nightly recompute done")

	return summary, err
}

// LastSummary returns the outcome of the most recent pass.
func (rs *RecomputeScheduler) LastSummary() attendance.RecomputeSummary {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.last
}

// NextRunTime returns when the next scheduled pass will occur.
func (rs *RecomputeScheduler) NextRunTime() time.Time {
	return rs.Now().Add(rs.Interval)
}
