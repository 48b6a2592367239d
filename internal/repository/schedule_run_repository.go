package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// ScheduleRunRepository is the append-only audit log of batch executions.
type ScheduleRunRepository interface {
	Append(ctx context.Context, run domain.ScheduleRun) error
	ListRecent(ctx context.Context, limit int) ([]domain.ScheduleRun, error)
}

type scheduleRunRepository struct {
	pool *pgxpool.Pool
}

// NewScheduleRunRepository instantiates repository.
func NewScheduleRunRepository(pool *pgxpool.Pool) ScheduleRunRepository {
	return &scheduleRunRepository{pool: pool}
}

func (r *scheduleRunRepository) Append(ctx context.Context, run domain.ScheduleRun) error {
	const query = `
        INSERT INTO schedule_runs (id, phase, started_at, finished_at, tickets_processed, drafts_generated, errors)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Phase,
		run.StartedAt,
		run.FinishedAt,
		run.TicketsProcessed,
		run.DraftsGenerated,
		run.Errors,
	)
	return err
}

func (r *scheduleRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.ScheduleRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, phase, started_at, finished_at, tickets_processed, drafts_generated, errors
        FROM schedule_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ScheduleRun
	for rows.Next() {
		var run domain.ScheduleRun
		if err := rows.Scan(
			&run.ID,
			&run.Phase,
			&run.StartedAt,
			&run.FinishedAt,
			&run.TicketsProcessed,
			&run.DraftsGenerated,
			&run.Errors,
		); err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	return result, rows.Err()
}
