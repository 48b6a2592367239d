// Package scheduler drives classification and draft generation across
// ticket sets. Batches run strictly sequentially with a fixed pause between
// external calls: the pause is backpressure for a shared provider rate
// limit, not a throughput knob.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// Pipeline is the slice of the triage service a batch run drives.
type Pipeline interface {
	AnalyzeTicket(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error)
	GenerateDraft(ctx context.Context, ticketID int64) (domain.Draft, error)
	HasAnalysis(ticketID int64) bool
	HasDraft(ticketID int64) bool
}

// RunSink receives finished runs for durable append.
type RunSink interface {
	AppendScheduleRun(ctx context.Context, run domain.ScheduleRun)
}

// Progress reports where a running batch currently is.
type Progress struct {
	CurrentIndex int    `json:"current_index"`
	Total        int    `json:"total"`
	PhaseLabel   string `json:"phase_label"`
}

// ProgressFunc receives incremental progress callbacks.
type ProgressFunc func(Progress)

// BatchRunner executes batches. Manual and scheduled invocations share one
// slot: a second concurrent run is rejected rather than queued, so two
// batches can never double-consume the external rate limit or race on the
// same draft.
type BatchRunner struct {
	pipeline   Pipeline
	sink       RunSink
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	delay      time.Duration
	slot       *semaphore.Weighted

	mu       sync.Mutex
	runs     []domain.ScheduleRun
	progress *Progress
	running  bool

	now   func() time.Time
	newID func() string
	pause func(ctx context.Context, d time.Duration)
}

// NewBatchRunner constructs the runner.
func NewBatchRunner(pipeline Pipeline, sink RunSink, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger, interCallDelay time.Duration) *BatchRunner {
	if pipeline == nil {
		panic("scheduler: pipeline is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRunner{
		pipeline:   pipeline,
		sink:       sink,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		delay:      interCallDelay,
		slot:       semaphore.NewWeighted(1),
		now:        time.Now,
		newID:      uuid.NewString,
		pause:      sleepWithContext,
	}
}

// RunBatch processes the ticket set sequentially. Per-ticket failures are
// recorded on the run and never abort the batch; tickets that already carry
// an analysis (phase one) or a draft (phase two) are skipped, so a partially
// completed run can be re-invoked safely. Cancellation is honored between
// tickets, never mid-call.
func (r *BatchRunner) RunBatch(ctx context.Context, tickets []domain.Ticket, phase domain.BatchPhase, onProgress ProgressFunc) (domain.ScheduleRun, error) {
	if !r.slot.TryAcquire(1) {
		return domain.ScheduleRun{}, apperrors.NewBatchInProgress()
	}
	defer r.slot.Release(1)

	run := domain.ScheduleRun{
		ID:        r.newID(),
		Phase:     phase,
		StartedAt: r.now(),
	}
	r.setRunning(true)
	defer r.setRunning(false)

	processed := make(map[int64]bool)
	total := len(tickets)

	r.logger.Info("batch run started",
		zap.String("run_id", run.ID),
		zap.String("phase", string(phase)),
		zap.Int("tickets", total),
	)

	aborted := r.classifyPhase(ctx, tickets, &run, processed, onProgress)

	if !aborted && phase == domain.BatchClassifyAndDraft {
		aborted = r.draftPhase(ctx, tickets, &run, processed, onProgress)
	}

	run.FinishedAt = r.now()
	run.TicketsProcessed = len(processed)

	r.mu.Lock()
	r.runs = append(r.runs, run)
	r.progress = nil
	r.mu.Unlock()

	r.metrics.Incr(observability.CounterBatchRuns, 1)
	if r.sink != nil {
		r.sink.AppendScheduleRun(ctx, run)
	}
	r.publish(ctx, run)

	r.logger.Info("batch run finished",
		zap.String("run_id", run.ID),
		zap.Int("tickets_processed", run.TicketsProcessed),
		zap.Int("drafts_generated", run.DraftsGenerated),
		zap.Int("errors", len(run.Errors)),
		zap.Bool("aborted", aborted),
	)
	return run, nil
}

func (r *BatchRunner) classifyPhase(ctx context.Context, tickets []domain.Ticket, run *domain.ScheduleRun, processed map[int64]bool, onProgress ProgressFunc) (aborted bool) {
	for i, ticket := range tickets {
		if ctx.Err() != nil {
			return true
		}
		r.report(onProgress, Progress{CurrentIndex: i, Total: len(tickets), PhaseLabel: "classifying"})
		if r.pipeline.HasAnalysis(ticket.ID) {
			continue
		}
		if _, err := r.pipeline.AnalyzeTicket(ctx, ticket.ID); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("classify ticket %d: %v", ticket.ID, err))
		}
		processed[ticket.ID] = true
		r.pause(ctx, r.delay)
	}
	return false
}

func (r *BatchRunner) draftPhase(ctx context.Context, tickets []domain.Ticket, run *domain.ScheduleRun, processed map[int64]bool, onProgress ProgressFunc) (aborted bool) {
	for i, ticket := range tickets {
		if ctx.Err() != nil {
			return true
		}
		r.report(onProgress, Progress{CurrentIndex: i, Total: len(tickets), PhaseLabel: "drafting"})
		if r.pipeline.HasDraft(ticket.ID) {
			continue
		}
		if _, err := r.pipeline.GenerateDraft(ctx, ticket.ID); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("draft ticket %d: %v", ticket.ID, err))
		} else {
			run.DraftsGenerated++
		}
		processed[ticket.ID] = true
		r.pause(ctx, r.delay)
	}
	return false
}

// Runs returns finished runs, most recent first.
func (r *BatchRunner) Runs() []domain.ScheduleRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ScheduleRun, len(r.runs))
	for i, run := range r.runs {
		out[len(r.runs)-1-i] = run
	}
	return out
}

// Status reports whether a batch is running and its current progress.
func (r *BatchRunner) Status() (running bool, progress *Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		copied := *r.progress
		progress = &copied
	}
	return r.running, progress
}

func (r *BatchRunner) report(onProgress ProgressFunc, p Progress) {
	r.mu.Lock()
	copied := p
	r.progress = &copied
	r.mu.Unlock()
	if onProgress != nil {
		onProgress(p)
	}
}

func (r *BatchRunner) setRunning(running bool) {
	r.mu.Lock()
	r.running = running
	r.mu.Unlock()
}

func (r *BatchRunner) publish(ctx context.Context, run domain.ScheduleRun) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Publish(ctx, events.Event{
		ID:        r.newID(),
		Type:      events.EventBatchRunFinished,
		Timestamp: r.now(),
		Payload: events.BatchRunFinishedPayload{
			RunID:            run.ID,
			Phase:            run.Phase,
			TicketsProcessed: run.TicketsProcessed,
			DraftsGenerated:  run.DraftsGenerated,
			ErrorCount:       len(run.Errors),
		},
	})
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
