package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// RunBatchRequest payload for manual batch triggers.
type RunBatchRequest struct {
	Phase   string `json:"phase"`
	Refresh bool   `json:"refresh"`
}

// ScheduleToggleRequest payload.
type ScheduleToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleRunResponse mirrors a recorded batch run.
type ScheduleRunResponse struct {
	ID               string            `json:"id"`
	Phase            domain.BatchPhase `json:"phase"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	TicketsProcessed int               `json:"tickets_processed"`
	DraftsGenerated  int               `json:"drafts_generated"`
	Errors           []string          `json:"errors"`
}

// BatchStatusResponse reports whether a batch is running and how far along it is.
type BatchStatusResponse struct {
	Running  bool                   `json:"running"`
	Progress *BatchProgressResponse `json:"progress,omitempty"`
	Timer    *TimerStatusResponse   `json:"timer,omitempty"`
}

// BatchProgressResponse mirrors in-flight progress.
type BatchProgressResponse struct {
	CurrentIndex int    `json:"current_index"`
	Total        int    `json:"total"`
	PhaseLabel   string `json:"phase_label"`
}

// TimerStatusResponse mirrors the periodic trigger state.
type TimerStatusResponse struct {
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	Interval   string     `json:"interval"`
	FixedTimes []string   `json:"fixed_times"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
}
