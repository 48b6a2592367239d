package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// TicketRepository encapsulates durable ticket persistence. Writes are
// idempotent upserts keyed by the helpdesk id.
type TicketRepository interface {
	Upsert(ctx context.Context, tickets []domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Upsert(ctx context.Context, tickets []domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, subject, body_text, requester_name, requester_email, status, priority, tags, created_at, synced_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            priority = EXCLUDED.priority,
            synced_at = NOW()`
	for _, ticket := range tickets {
		if _, err := r.pool.Exec(ctx, query,
			ticket.ID,
			ticket.Subject,
			ticket.BodyText,
			ticket.Requester.Name,
			ticket.Requester.Email,
			ticket.Status,
			ticket.Priority,
			ticket.Tags,
			ticket.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `
        SELECT id, subject, body_text, requester_name, requester_email, status, priority, tags, created_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.BodyText,
		&ticket.Requester.Name,
		&ticket.Requester.Email,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Tags,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, subject, body_text, requester_name, requester_email, status, priority, tags, created_at
        FROM tickets ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Subject,
			&ticket.BodyText,
			&ticket.Requester.Name,
			&ticket.Requester.Email,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Tags,
			&ticket.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
