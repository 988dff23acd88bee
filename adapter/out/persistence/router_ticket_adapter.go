package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"query_router/core/domain"
	"query_router/core/port/out"
	"query_router/pkg/logger"
)

// TicketAdapter implements out.TicketRepository.
type TicketAdapter struct {
	db *sqlx.DB
}

var _ out.TicketRepository = (*TicketAdapter)(nil)

// NewTicketAdapter creates a new TicketAdapter.
func NewTicketAdapter(db *sqlx.DB) *TicketAdapter {
	return &TicketAdapter{db: db}
}

// ticketRow represents the database row for tickets.
type ticketRow struct {
	TicketID     string         `db:"ticket_id"`
	Channel      string         `db:"channel"`
	Sender       sql.NullString `db:"sender"`
	Subject      sql.NullString `db:"subject"`
	Message      string         `db:"message"`
	Intent       string         `db:"intent"`
	Urgency      string         `db:"urgency"`
	AssignedTeam string         `db:"assigned_team"`
	Status       string         `db:"status"`
	Response     sql.NullString `db:"response"`
	Metadata     []byte         `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

const ticketColumns = `ticket_id, channel, sender, subject, message, intent, urgency,
	assigned_team, status, response, metadata, created_at, updated_at`

func (r *ticketRow) toEntity() *domain.Ticket {
	t := &domain.Ticket{
		TicketID:     r.TicketID,
		Channel:      domain.Channel(r.Channel),
		Message:      r.Message,
		Intent:       domain.Intent(r.Intent),
		Urgency:      domain.Urgency(r.Urgency),
		AssignedTeam: r.AssignedTeam,
		Status:       domain.TicketStatus(r.Status),
		Metadata:     decodeMap(r.Metadata),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.Sender.Valid {
		s := r.Sender.String
		t.Sender = &s
	}
	if r.Subject.Valid {
		s := r.Subject.String
		t.Subject = &s
	}
	if r.Response.Valid {
		s := r.Response.String
		t.Response = &s
	}
	return t
}

// Create inserts a new ticket.
func (a *TicketAdapter) Create(ctx context.Context, t *domain.Ticket) error {
	return insertTicket(ctx, a.db, t)
}

// CreateWithEvents inserts the ticket and its initial routing events in one
// transaction. Event IDs are set on success.
func (a *TicketAdapter) CreateWithEvents(ctx context.Context, t *domain.Ticket, events []*domain.RoutingEvent) error {
	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertTicket(ctx, tx, t); err != nil {
			return err
		}
		for _, event := range events {
			if err := insertEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTicket(ctx context.Context, db sqlx.ExtContext, t *domain.Ticket) error {
	metadata, err := encodeMap(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode ticket metadata: %w", err)
	}

	query := db.Rebind(`
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = db.ExecContext(ctx, query,
		t.TicketID, string(t.Channel), nullString(t.Sender), nullString(t.Subject), t.Message,
		string(t.Intent), string(t.Urgency), t.AssignedTeam, string(t.Status),
		nullString(t.Response), metadata, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ticket %s: %w", t.TicketID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// GetByID returns (nil, nil) when the ticket does not exist.
func (a *TicketAdapter) GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var row ticketRow
	query := a.db.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = ?`)

	if err := a.db.GetContext(ctx, &row, query, ticketID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return row.toEntity(), nil
}

// List returns tickets matching the filter, newest first.
func (a *TicketAdapter) List(ctx context.Context, filter *domain.TicketFilter) ([]*domain.Ticket, error) {
	var (
		conds []string
		args  []any
	)
	if filter != nil {
		if filter.Status != "" {
			conds = append(conds, "status = ?")
			args = append(args, string(filter.Status))
		}
		if filter.Urgency != "" {
			conds = append(conds, "urgency = ?")
			args = append(args, string(filter.Urgency))
		}
		if filter.AssignedTeam != "" {
			conds = append(conds, "assigned_team = ?")
			args = append(args, filter.AssignedTeam)
		}
		if filter.Channel != "" {
			conds = append(conds, "channel = ?")
			args = append(args, string(filter.Channel))
		}
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, ticket_id DESC`
	if filter != nil && filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return a.selectTickets(ctx, a.db.Rebind(query), args...)
}

// ListAll returns every ticket, oldest first.
func (a *TicketAdapter) ListAll(ctx context.Context) ([]*domain.Ticket, error) {
	return a.selectTickets(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at ASC, ticket_id ASC`)
}

func (a *TicketAdapter) selectTickets(ctx context.Context, query string, args ...any) ([]*domain.Ticket, error) {
	var rows []ticketRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	tickets := make([]*domain.Ticket, len(rows))
	for i := range rows {
		tickets[i] = rows[i].toEntity()
	}
	return tickets, nil
}

// UpdateStatus sets the ticket status.
func (a *TicketAdapter) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus, at time.Time) error {
	return a.update(ctx, "status", ticketID, string(status), at)
}

// UpdateAssignedTeam sets the assigned team.
func (a *TicketAdapter) UpdateAssignedTeam(ctx context.Context, ticketID, team string, at time.Time) error {
	return a.update(ctx, "assigned_team", ticketID, team, at)
}

// UpdateResponse sets the response text.
func (a *TicketAdapter) UpdateResponse(ctx context.Context, ticketID, response string, at time.Time) error {
	return a.update(ctx, "response", ticketID, response, at)
}

// update writes one column; column is always a constant from this file.
func (a *TicketAdapter) update(ctx context.Context, column, ticketID string, value any, at time.Time) error {
	query := a.db.Rebind(`UPDATE tickets SET ` + column + ` = ?, updated_at = ? WHERE ticket_id = ?`)

	result, err := a.db.ExecContext(ctx, query, value, at.UTC(), ticketID)
	if err != nil {
		return fmt.Errorf("failed to update ticket %s: %w", column, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update ticket %s: %w", column, err)
	}
	if n == 0 {
		return fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
	}
	return nil
}

type countRow struct {
	Key   string `db:"k"`
	Count int    `db:"n"`
}

// Stats aggregates ticket counts per dimension.
func (a *TicketAdapter) Stats(ctx context.Context) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{}

	if err := a.db.GetContext(ctx, &stats.TotalTickets, `SELECT COUNT(*) FROM tickets`); err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	if err := a.db.GetContext(ctx, &stats.AutoResponses,
		`SELECT COUNT(*) FROM tickets WHERE response IS NOT NULL AND response <> ''`); err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}

	groups := []struct {
		column string
		dst    *map[string]int
	}{
		{"status", &stats.ByStatus},
		{"urgency", &stats.ByUrgency},
		{"assigned_team", &stats.ByTeam},
		{"channel", &stats.ByChannel},
		{"intent", &stats.ByIntent},
	}
	for _, g := range groups {
		var rows []countRow
		query := `SELECT ` + g.column + ` AS k, COUNT(*) AS n FROM tickets GROUP BY ` + g.column
		if err := a.db.SelectContext(ctx, &rows, query); err != nil {
			return nil, fmt.Errorf("failed to group tickets by %s: %w", g.column, err)
		}
		m := make(map[string]int, len(rows))
		for _, r := range rows {
			m[r.Key] = r.Count
		}
		*g.dst = m
	}
	return stats, nil
}

// Delete removes a ticket with its events and feedback in one transaction.
func (a *TicketAdapter) Delete(ctx context.Context, ticketID string) error {
	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, q := range []string{
			`DELETE FROM learning_feedback WHERE ticket_id = ?`,
			`DELETE FROM routing_log WHERE ticket_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), ticketID); err != nil {
				return fmt.Errorf("failed to delete ticket children: %w", err)
			}
		}
		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tickets WHERE ticket_id = ?`), ticketID)
		if err != nil {
			return fmt.Errorf("failed to delete ticket: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
		}
		return nil
	})
}

// DeleteOlderThan cascades like Delete for every ticket created before cutoff.
func (a *TicketAdapter) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := a.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, q := range []string{
			`DELETE FROM learning_feedback WHERE ticket_id IN (SELECT ticket_id FROM tickets WHERE created_at < ?)`,
			`DELETE FROM routing_log WHERE ticket_id IN (SELECT ticket_id FROM tickets WHERE created_at < ?)`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), cutoff.UTC()); err != nil {
				return fmt.Errorf("failed to purge ticket children: %w", err)
			}
		}
		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tickets WHERE created_at < ?`), cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to purge tickets: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

func (a *TicketAdapter) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func encodeMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeMap never fails the read: corrupt JSON is logged and yields an
// empty map.
func decodeMap(b []byte) map[string]any {
	m := map[string]any{}
	if len(b) == 0 {
		return m
	}
	if err := json.Unmarshal(b, &m); err != nil {
		logger.WithError(err).WithField("bytes", len(b)).Warn("[Persistence] corrupt JSON column, returning empty map")
		return map[string]any{}
	}
	return m
}
