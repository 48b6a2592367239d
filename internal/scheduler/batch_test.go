package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

type mockPipeline struct {
	mu sync.Mutex

	AnalyzeFunc  func(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error)
	GenerateFunc func(ctx context.Context, ticketID int64) (domain.Draft, error)
	analyzed     map[int64]bool
	drafted      map[int64]bool
	analyzeCalls []int64
	draftCalls   []int64
}

func newMockPipeline() *mockPipeline {
	return &mockPipeline{analyzed: make(map[int64]bool), drafted: make(map[int64]bool)}
}

func (m *mockPipeline) AnalyzeTicket(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error) {
	m.mu.Lock()
	m.analyzeCalls = append(m.analyzeCalls, ticketID)
	m.mu.Unlock()
	if m.AnalyzeFunc != nil {
		result, err := m.AnalyzeFunc(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		m.setAnalyzed(ticketID)
		return result, nil
	}
	m.setAnalyzed(ticketID)
	return &domain.AnalysisResult{TicketID: ticketID}, nil
}

func (m *mockPipeline) GenerateDraft(ctx context.Context, ticketID int64) (domain.Draft, error) {
	m.mu.Lock()
	m.draftCalls = append(m.draftCalls, ticketID)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		draft, err := m.GenerateFunc(ctx, ticketID)
		if err != nil {
			return domain.Draft{}, err
		}
		m.setDrafted(ticketID)
		return draft, nil
	}
	m.setDrafted(ticketID)
	return domain.Draft{ID: fmt.Sprintf("draft-%d", ticketID), TicketID: ticketID}, nil
}

func (m *mockPipeline) HasAnalysis(ticketID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzed[ticketID]
}

func (m *mockPipeline) HasDraft(ticketID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drafted[ticketID]
}

func (m *mockPipeline) setAnalyzed(id int64) {
	m.mu.Lock()
	m.analyzed[id] = true
	m.mu.Unlock()
}

func (m *mockPipeline) setDrafted(id int64) {
	m.mu.Lock()
	m.drafted[id] = true
	m.mu.Unlock()
}

func batchTickets(n int) []domain.Ticket {
	tickets := make([]domain.Ticket, 0, n)
	for i := 1; i <= n; i++ {
		tickets = append(tickets, domain.Ticket{ID: int64(i), Subject: fmt.Sprintf("ticket %d", i)})
	}
	return tickets
}

func newTestRunner(pipeline Pipeline) *BatchRunner {
	r := NewBatchRunner(pipeline, nil, nil, observability.NewMetrics(), zap.NewNop(), 0)
	r.pause = func(ctx context.Context, d time.Duration) {}
	return r
}

// TestRunBatch tests the sequential two-phase run.
func TestRunBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("classify and draft covers every ticket", func(t *testing.T) {
		pipeline := newMockPipeline()
		runner := newTestRunner(pipeline)

		run, err := runner.RunBatch(ctx, batchTickets(5), domain.BatchClassifyAndDraft, nil)

		assert.NoError(t, err)
		assert.Equal(t, 5, run.TicketsProcessed)
		assert.Equal(t, 5, run.DraftsGenerated)
		assert.Empty(t, run.Errors)
		assert.Len(t, pipeline.analyzeCalls, 5)
		assert.Len(t, pipeline.draftCalls, 5)
	})

	t.Run("classify-only skips the draft phase", func(t *testing.T) {
		pipeline := newMockPipeline()
		runner := newTestRunner(pipeline)

		run, err := runner.RunBatch(ctx, batchTickets(3), domain.BatchClassifyOnly, nil)

		assert.NoError(t, err)
		assert.Equal(t, 3, run.TicketsProcessed)
		assert.Zero(t, run.DraftsGenerated)
		assert.Empty(t, pipeline.draftCalls)
	})

	t.Run("one failing ticket does not stop the rest", func(t *testing.T) {
		pipeline := newMockPipeline()
		pipeline.AnalyzeFunc = func(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error) {
			if ticketID == 6 {
				return nil, errors.New("model timeout")
			}
			return &domain.AnalysisResult{TicketID: ticketID}, nil
		}
		runner := newTestRunner(pipeline)

		run, err := runner.RunBatch(ctx, batchTickets(10), domain.BatchClassifyOnly, nil)

		assert.NoError(t, err)
		assert.Len(t, run.Errors, 1)
		assert.Contains(t, run.Errors[0], "classify ticket 6")
		// tickets after the failure were still attempted
		assert.Len(t, pipeline.analyzeCalls, 10)
		assert.Equal(t, 10, run.TicketsProcessed)
	})

	t.Run("already analyzed tickets are skipped on re-run", func(t *testing.T) {
		pipeline := newMockPipeline()
		for id := int64(1); id <= 4; id++ {
			pipeline.setAnalyzed(id)
		}
		runner := newTestRunner(pipeline)

		run, err := runner.RunBatch(ctx, batchTickets(10), domain.BatchClassifyOnly, nil)

		assert.NoError(t, err)
		assert.Equal(t, 6, run.TicketsProcessed)
		assert.Equal(t, []int64{5, 6, 7, 8, 9, 10}, pipeline.analyzeCalls)
	})

	t.Run("draft phase skips tickets that already have drafts", func(t *testing.T) {
		pipeline := newMockPipeline()
		pipeline.setDrafted(1)
		pipeline.setDrafted(2)
		runner := newTestRunner(pipeline)

		run, err := runner.RunBatch(ctx, batchTickets(4), domain.BatchClassifyAndDraft, nil)

		assert.NoError(t, err)
		assert.Equal(t, []int64{3, 4}, pipeline.draftCalls)
		assert.Equal(t, 2, run.DraftsGenerated)
	})

	t.Run("cancellation stops between tickets", func(t *testing.T) {
		pipeline := newMockPipeline()
		cancelCtx, cancel := context.WithCancel(ctx)
		pipeline.AnalyzeFunc = func(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error) {
			if ticketID == 3 {
				cancel()
			}
			return &domain.AnalysisResult{TicketID: ticketID}, nil
		}
		runner := newTestRunner(pipeline)

		run, err := runner.RunBatch(cancelCtx, batchTickets(10), domain.BatchClassifyAndDraft, nil)

		assert.NoError(t, err)
		// ticket 3's call completed, ticket 4 was never started
		assert.Equal(t, []int64{1, 2, 3}, pipeline.analyzeCalls)
		assert.Empty(t, pipeline.draftCalls)
		assert.Equal(t, 3, run.TicketsProcessed)
	})

	t.Run("concurrent run is rejected, not queued", func(t *testing.T) {
		pipeline := newMockPipeline()
		started := make(chan struct{})
		release := make(chan struct{})
		pipeline.AnalyzeFunc = func(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error) {
			if ticketID == 1 {
				close(started)
				<-release
			}
			return &domain.AnalysisResult{TicketID: ticketID}, nil
		}
		runner := newTestRunner(pipeline)

		done := make(chan domain.ScheduleRun, 1)
		go func() {
			run, _ := runner.RunBatch(ctx, batchTickets(2), domain.BatchClassifyOnly, nil)
			done <- run
		}()

		<-started
		_, err := runner.RunBatch(ctx, batchTickets(2), domain.BatchClassifyOnly, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeBatchInProgress))

		close(release)
		first := <-done
		assert.Equal(t, 2, first.TicketsProcessed)
	})

	t.Run("progress reports phase labels and positions", func(t *testing.T) {
		pipeline := newMockPipeline()
		runner := newTestRunner(pipeline)

		var seen []Progress
		_, err := runner.RunBatch(ctx, batchTickets(2), domain.BatchClassifyAndDraft, func(p Progress) {
			seen = append(seen, p)
		})

		assert.NoError(t, err)
		assert.Equal(t, []Progress{
			{CurrentIndex: 0, Total: 2, PhaseLabel: "classifying"},
			{CurrentIndex: 1, Total: 2, PhaseLabel: "classifying"},
			{CurrentIndex: 0, Total: 2, PhaseLabel: "drafting"},
			{CurrentIndex: 1, Total: 2, PhaseLabel: "drafting"},
		}, seen)
	})

	t.Run("progress clears when the run finishes", func(t *testing.T) {
		pipeline := newMockPipeline()
		runner := newTestRunner(pipeline)

		_, err := runner.RunBatch(ctx, batchTickets(1), domain.BatchClassifyOnly, nil)
		assert.NoError(t, err)

		running, progress := runner.Status()
		assert.False(t, running)
		assert.Nil(t, progress)
	})

	t.Run("runs are listed most recent first", func(t *testing.T) {
		pipeline := newMockPipeline()
		runner := newTestRunner(pipeline)

		first, _ := runner.RunBatch(ctx, batchTickets(1), domain.BatchClassifyOnly, nil)
		second, _ := runner.RunBatch(ctx, batchTickets(2), domain.BatchClassifyOnly, nil)

		runs := runner.Runs()
		assert.Len(t, runs, 2)
		assert.Equal(t, second.ID, runs[0].ID)
		assert.Equal(t, first.ID, runs[1].ID)
	})
}

// TestRunBatchDelay tests that the inter-call pause runs between tickets.
func TestRunBatchDelay(t *testing.T) {
	pipeline := newMockPipeline()
	runner := NewBatchRunner(pipeline, nil, nil, observability.NewMetrics(), zap.NewNop(), 250*time.Millisecond)

	pauses := 0
	runner.pause = func(ctx context.Context, d time.Duration) {
		assert.Equal(t, 250*time.Millisecond, d)
		pauses++
	}

	_, err := runner.RunBatch(context.Background(), batchTickets(3), domain.BatchClassifyOnly, nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, pauses)
}
