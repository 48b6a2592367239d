package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
)

// TicketProvider snapshots the current ticket set for a scheduled run.
type TicketProvider func() []domain.Ticket

// RefreshFunc pulls fresh tickets before a scheduled run; failures are
// logged and the run proceeds on the in-memory snapshot.
type RefreshFunc func(ctx context.Context) error

// Timer fires batch runs on a fixed interval and/or at configured
// wall-clock times. Enablement is process-wide state, flipped at runtime
// through Toggle without restarting the loop.
type Timer struct {
	runner     *BatchRunner
	provider   TicketProvider
	refresh    RefreshFunc
	phase      domain.BatchPhase
	interval   time.Duration
	fixedTimes []string
	logger     *zap.Logger

	mu        sync.Mutex
	enabled   bool
	lastFired string
	lastRunAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// TimerStatus is the schedule snapshot exposed to callers.
type TimerStatus struct {
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	Interval   string     `json:"interval,omitempty"`
	FixedTimes []string   `json:"fixed_times,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	Progress   *Progress  `json:"progress,omitempty"`
}

// NewTimer builds the schedule from configuration.
func NewTimer(runner *BatchRunner, provider TicketProvider, refresh RefreshFunc, cfg config.SchedulerConfig, logger *zap.Logger) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	phase := domain.BatchClassifyOnly
	if cfg.ClassifyAndDraft {
		phase = domain.BatchClassifyAndDraft
	}
	return &Timer{
		runner:     runner,
		provider:   provider,
		refresh:    refresh,
		phase:      phase,
		interval:   cfg.Interval(),
		fixedTimes: cfg.FixedTimes,
		logger:     logger,
		enabled:    cfg.Enabled,
		now:        time.Now,
	}
}

// Start launches the background loop. It returns immediately; Stop tears
// the loop down.
func (t *Timer) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel

	t.wg.Add(1)
	go t.loop(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (t *Timer) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

// Toggle enables or disables scheduled runs.
func (t *Timer) Toggle(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
	t.logger.Info("schedule toggled", zap.Bool("enabled", enabled))
}

// Status reports the current schedule state.
func (t *Timer) Status() TimerStatus {
	t.mu.Lock()
	enabled := t.enabled
	lastRunAt := t.lastRunAt
	t.mu.Unlock()

	running, progress := t.runner.Status()
	status := TimerStatus{
		Enabled:    enabled,
		Running:    running,
		FixedTimes: t.fixedTimes,
		Progress:   progress,
	}
	if t.interval > 0 {
		status.Interval = t.interval.String()
	}
	if !lastRunAt.IsZero() {
		at := lastRunAt
		status.LastRunAt = &at
	}
	return status
}

func (t *Timer) loop(ctx context.Context) {
	defer t.wg.Done()

	// Sub-minute resolution so a fixed wall-clock trigger cannot be
	// skipped; lastFired dedupes within the minute.
	clock := time.NewTicker(30 * time.Second)
	defer clock.Stop()

	var intervalCh <-chan time.Time
	if t.interval > 0 {
		intervalTicker := time.NewTicker(t.interval)
		defer intervalTicker.Stop()
		intervalCh = intervalTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-intervalCh:
			t.fire(ctx, "interval")
		case <-clock.C:
			if minute := t.dueFixedTime(); minute != "" {
				t.fire(ctx, "fixed time "+minute)
			}
		}
	}
}

func (t *Timer) dueFixedTime() string {
	now := t.now()
	minute := now.Format("2006-01-02 15:04")
	current := now.Format("15:04")
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastFired == minute {
		return ""
	}
	for _, fixed := range t.fixedTimes {
		if fixed == current {
			t.lastFired = minute
			return current
		}
	}
	return ""
}

func (t *Timer) fire(ctx context.Context, trigger string) {
	t.mu.Lock()
	enabled := t.enabled
	t.mu.Unlock()
	if !enabled {
		return
	}

	t.logger.Info("scheduled batch triggered", zap.String("trigger", trigger))
	if t.refresh != nil {
		if err := t.refresh(ctx); err != nil {
			t.logger.Warn("pre-batch ticket refresh failed", zap.Error(err))
		}
	}

	run, err := t.runner.RunBatch(ctx, t.provider(), t.phase, nil)
	if err != nil {
		// A manual run already holds the slot; the next trigger retries.
		t.logger.Warn("scheduled batch skipped", zap.Error(err))
		return
	}

	t.mu.Lock()
	t.lastRunAt = run.FinishedAt
	t.mu.Unlock()
}
