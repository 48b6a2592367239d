// Package helpdesk fetches raw tickets from the external helpdesk API. The
// feed is paged and may contain duplicated or stale rows; the ticket store's
// dedup/merge step absorbs that, so this client only normalizes.
package helpdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// Filter narrows a ticket fetch.
type Filter struct {
	Status string
}

// TicketSource is the injectable boundary to the helpdesk system.
type TicketSource interface {
	FetchTickets(ctx context.Context, filter Filter) ([]domain.Ticket, error)
}

// Client is an HTTP TicketSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authHeader string
	pageSize   int
}

// NewClient creates a helpdesk API client.
func NewClient(cfg config.HelpdeskConfig) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageSize:   cfg.PageSize,
	}
	if cfg.APIToken != "" {
		c.authHeader = "Bearer " + cfg.APIToken
	}
	if c.pageSize <= 0 {
		c.pageSize = 100
	}
	return c
}

// rawTicket mirrors the helpdesk wire format.
type rawTicket struct {
	ID        int64    `json:"id"`
	Subject   string   `json:"subject"`
	BodyText  string   `json:"description"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags"`
	Requester struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"requester"`
}

type ticketsPage struct {
	Tickets []rawTicket `json:"tickets"`
	HasMore bool        `json:"has_more"`
}

// FetchTickets walks every page of the ticket listing and returns normalized
// tickets. Duplicates across pages are returned as-is.
func (c *Client) FetchTickets(ctx context.Context, filter Filter) ([]domain.Ticket, error) {
	if c.baseURL == "" {
		return nil, apperrors.NewValidationError("helpdesk base URL not configured", nil)
	}

	var all []domain.Ticket
	for page := 1; ; page++ {
		batch, hasMore, err := c.fetchPage(ctx, filter, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if !hasMore {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, filter Filter, page int) ([]domain.Ticket, bool, error) {
	url := fmt.Sprintf("%s/api/v2/tickets?page=%d&per_page=%d", c.baseURL, page, c.pageSize)
	if filter.Status != "" {
		url += "&status=" + strings.ToLower(filter.Status)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, apperrors.NewTransientFailure("helpdesk request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, false, apperrors.NewRateLimited("helpdesk rate limit exceeded", nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, apperrors.NewTransientFailure(
			fmt.Sprintf("helpdesk returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed ticketsPage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, apperrors.NewMalformedResponse("helpdesk returned unparseable ticket page", err)
	}

	tickets := make([]domain.Ticket, 0, len(parsed.Tickets))
	for _, raw := range parsed.Tickets {
		tickets = append(tickets, normalize(raw))
	}
	return tickets, parsed.HasMore, nil
}

func normalize(raw rawTicket) domain.Ticket {
	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return domain.Ticket{
		ID:       raw.ID,
		Subject:  strings.TrimSpace(raw.Subject),
		BodyText: raw.BodyText,
		Requester: domain.Requester{
			Name:  raw.Requester.Name,
			Email: raw.Requester.Email,
		},
		Status:    normalizeStatus(raw.Status),
		Priority:  normalizePriority(raw.Priority),
		CreatedAt: createdAt,
		Tags:      raw.Tags,
	}
}

func normalizeStatus(s string) domain.TicketStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "new":
		return domain.TicketStatusOpen
	case "pending":
		return domain.TicketStatusPending
	case "waiting_on_customer", "waiting-on-customer":
		return domain.TicketStatusWaitingOnCustomer
	case "on_hold", "hold":
		return domain.TicketStatusOnHold
	case "resolved", "solved":
		return domain.TicketStatusResolved
	case "closed":
		return domain.TicketStatusClosed
	default:
		return domain.TicketStatusOpen
	}
}

func normalizePriority(p string) domain.TicketPriority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "urgent":
		return domain.TicketPriorityUrgent
	case "high":
		return domain.TicketPriorityHigh
	case "low":
		return domain.TicketPriorityLow
	default:
		return domain.TicketPriorityMedium
	}
}

// FormatTicketRef renders the conventional external reference for logs.
func FormatTicketRef(id int64) string {
	return "#" + strconv.FormatInt(id, 10)
}
