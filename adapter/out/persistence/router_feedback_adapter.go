package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"query_router/core/domain"
	"query_router/core/port/out"
)

// FeedbackAdapter implements out.FeedbackRepository.
type FeedbackAdapter struct {
	db *sqlx.DB
}

var _ out.FeedbackRepository = (*FeedbackAdapter)(nil)

// NewFeedbackAdapter creates a new FeedbackAdapter.
func NewFeedbackAdapter(db *sqlx.DB) *FeedbackAdapter {
	return &FeedbackAdapter{db: db}
}

type feedbackRow struct {
	ID              int64          `db:"id"`
	TicketID        string         `db:"ticket_id"`
	OriginalIntent  sql.NullString `db:"original_intent"`
	CorrectedIntent sql.NullString `db:"corrected_intent"`
	OriginalTeam    sql.NullString `db:"original_team"`
	CorrectedTeam   sql.NullString `db:"corrected_team"`
	FeedbackType    string         `db:"feedback_type"`
	FeedbackData    []byte         `db:"feedback_data"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r *feedbackRow) toEntity() *domain.FeedbackRecord {
	return &domain.FeedbackRecord{
		ID:              r.ID,
		TicketID:        r.TicketID,
		OriginalIntent:  r.OriginalIntent.String,
		CorrectedIntent: r.CorrectedIntent.String,
		OriginalTeam:    r.OriginalTeam.String,
		CorrectedTeam:   r.CorrectedTeam.String,
		FeedbackType:    domain.FeedbackType(r.FeedbackType),
		FeedbackData:    decodeMap(r.FeedbackData),
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func optional(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Append writes the record and sets its ID.
func (a *FeedbackAdapter) Append(ctx context.Context, record *domain.FeedbackRecord) error {
	data, err := encodeMap(record.FeedbackData)
	if err != nil {
		return fmt.Errorf("failed to encode feedback data: %w", err)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := a.db.Rebind(`
		INSERT INTO learning_feedback (ticket_id, original_intent, corrected_intent, original_team,
			corrected_team, feedback_type, feedback_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	if err := a.db.QueryRowxContext(ctx, query,
		record.TicketID, optional(record.OriginalIntent), optional(record.CorrectedIntent),
		optional(record.OriginalTeam), optional(record.CorrectedTeam),
		string(record.FeedbackType), data, record.CreatedAt.UTC(),
	).Scan(&record.ID); err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}
	return nil
}

// List returns the newest records first.
func (a *FeedbackAdapter) List(ctx context.Context, limit int) ([]*domain.FeedbackRecord, error) {
	query := `SELECT id, ticket_id, original_intent, corrected_intent, original_team, corrected_team,
		feedback_type, feedback_data, created_at
		FROM learning_feedback ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []feedbackRow
	if err := a.db.SelectContext(ctx, &rows, a.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	records := make([]*domain.FeedbackRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].toEntity()
	}
	return records, nil
}

// CountByType returns the number of records per feedback type.
func (a *FeedbackAdapter) CountByType(ctx context.Context) (map[domain.FeedbackType]int, error) {
	var rows []struct {
		FeedbackType string `db:"feedback_type"`
		Count        int    `db:"count"`
	}
	query := `SELECT feedback_type, COUNT(*) AS count FROM learning_feedback GROUP BY feedback_type`
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}

	counts := make(map[domain.FeedbackType]int, len(rows))
	for _, r := range rows {
		counts[domain.FeedbackType(r.FeedbackType)] = r.Count
	}
	return counts, nil
}
