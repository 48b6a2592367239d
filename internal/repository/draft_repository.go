package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// DraftRepository encapsulates durable draft persistence with a secondary
// index by ticket id.
type DraftRepository interface {
	Upsert(ctx context.Context, draft domain.Draft) error
	Delete(ctx context.Context, draftID string) error
	GetByID(ctx context.Context, draftID string) (*domain.Draft, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Draft, error)
}

type draftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository instantiates repository.
func NewDraftRepository(pool *pgxpool.Pool) DraftRepository {
	return &draftRepository{pool: pool}
}

func (r *draftRepository) Upsert(ctx context.Context, draft domain.Draft) error {
	var qa []byte
	if draft.QAResult != nil {
		encoded, err := json.Marshal(draft.QAResult)
		if err != nil {
			return err
		}
		qa = encoded
	}
	const query = `
        INSERT INTO drafts (id, ticket_id, body, status, qa_result, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            qa_result = EXCLUDED.qa_result,
            updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		draft.ID,
		draft.TicketID,
		draft.Text,
		draft.Status,
		qa,
		draft.CreatedAt,
		draft.UpdatedAt,
	)
	return err
}

func (r *draftRepository) Delete(ctx context.Context, draftID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM drafts WHERE id=$1`, draftID)
	return err
}

func (r *draftRepository) GetByID(ctx context.Context, draftID string) (*domain.Draft, error) {
	const query = `
        SELECT id, ticket_id, body, status, qa_result, created_at, updated_at
        FROM drafts WHERE id=$1`
	return scanDraft(r.pool.QueryRow(ctx, query, draftID))
}

func (r *draftRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Draft, error) {
	const query = `
        SELECT id, ticket_id, body, status, qa_result, created_at, updated_at
        FROM drafts WHERE ticket_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *draft)
	}
	return result, rows.Err()
}

func scanDraft(row pgx.Row) (*domain.Draft, error) {
	var draft domain.Draft
	var qa []byte
	if err := row.Scan(
		&draft.ID,
		&draft.TicketID,
		&draft.Text,
		&draft.Status,
		&qa,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(qa) > 0 {
		var result domain.QAResult
		if err := json.Unmarshal(qa, &result); err != nil {
			return nil, err
		}
		draft.QAResult = &result
	}
	return &draft, nil
}
