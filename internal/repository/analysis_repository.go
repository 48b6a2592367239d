package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// AnalysisRepository persists the latest classification per ticket.
type AnalysisRepository interface {
	Upsert(ctx context.Context, result domain.AnalysisResult) error
	GetByTicket(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error)
}

type analysisRepository struct {
	pool *pgxpool.Pool
}

// NewAnalysisRepository instantiates repository.
func NewAnalysisRepository(pool *pgxpool.Pool) AnalysisRepository {
	return &analysisRepository{pool: pool}
}

func (r *analysisRepository) Upsert(ctx context.Context, result domain.AnalysisResult) error {
	const query = `
        INSERT INTO analyses (ticket_id, escalation_type, urgency_score, summary, action_items, computed_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (ticket_id) DO UPDATE SET
            escalation_type = EXCLUDED.escalation_type,
            urgency_score = EXCLUDED.urgency_score,
            summary = EXCLUDED.summary,
            action_items = EXCLUDED.action_items,
            computed_at = EXCLUDED.computed_at`
	_, err := r.pool.Exec(ctx, query,
		result.TicketID,
		result.EscalationType,
		result.UrgencyScore,
		result.Summary,
		result.ActionItems,
		result.ComputedAt,
	)
	return err
}

func (r *analysisRepository) GetByTicket(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error) {
	const query = `
        SELECT ticket_id, escalation_type, urgency_score, summary, action_items, computed_at
        FROM analyses WHERE ticket_id=$1`
	var result domain.AnalysisResult
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&result.TicketID,
		&result.EscalationType,
		&result.UrgencyScore,
		&result.Summary,
		&result.ActionItems,
		&result.ComputedAt,
	); err != nil {
		return nil, err
	}
	return &result, nil
}
