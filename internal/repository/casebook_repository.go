package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// CasebookRepository encapsulates durable casebook persistence.
type CasebookRepository interface {
	Insert(ctx context.Context, entry domain.CasebookEntry) error
	Delete(ctx context.Context, entryID string) error
	ListAll(ctx context.Context) ([]domain.CasebookEntry, error)
}

type casebookRepository struct {
	pool *pgxpool.Pool
}

// NewCasebookRepository instantiates repository.
func NewCasebookRepository(pool *pgxpool.Pool) CasebookRepository {
	return &casebookRepository{pool: pool}
}

func (r *casebookRepository) Insert(ctx context.Context, entry domain.CasebookEntry) error {
	const query = `
        INSERT INTO casebook_entries (id, draft_id, ticket_id, subject, approved_response_text, keywords, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.DraftID,
		entry.TicketID,
		entry.Subject,
		entry.ApprovedResponseText,
		entry.Keywords,
		entry.CreatedAt,
	)
	return err
}

func (r *casebookRepository) Delete(ctx context.Context, entryID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM casebook_entries WHERE id=$1`, entryID)
	return err
}

func (r *casebookRepository) ListAll(ctx context.Context) ([]domain.CasebookEntry, error) {
	const query = `
        SELECT id, draft_id, ticket_id, subject, approved_response_text, keywords, created_at
        FROM casebook_entries ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CasebookEntry
	for rows.Next() {
		var entry domain.CasebookEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.DraftID,
			&entry.TicketID,
			&entry.Subject,
			&entry.ApprovedResponseText,
			&entry.Keywords,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
