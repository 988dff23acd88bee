package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"query_router/core/domain"
	"query_router/core/port/out"
)

// PatternAdapter implements out.PatternRepository.
type PatternAdapter struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ out.PatternRepository = (*PatternAdapter)(nil)

// NewPatternAdapter creates a new PatternAdapter.
func NewPatternAdapter(db *sqlx.DB) *PatternAdapter {
	return &PatternAdapter{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type patternRow struct {
	ID           int64     `db:"id"`
	PatternType  string    `db:"pattern_type"`
	PatternKey   string    `db:"pattern_key"`
	PatternValue string    `db:"pattern_value"`
	Confidence   float64   `db:"confidence"`
	UsageCount   int       `db:"usage_count"`
	LastUsed     time.Time `db:"last_used"`
	CreatedAt    time.Time `db:"created_at"`
}

const patternColumns = `id, pattern_type, pattern_key, pattern_value, confidence, usage_count, last_used, created_at`

func (r *patternRow) toEntity() *domain.LearningPattern {
	return &domain.LearningPattern{
		ID:           r.ID,
		PatternType:  domain.PatternType(r.PatternType),
		PatternKey:   r.PatternKey,
		PatternValue: r.PatternValue,
		Confidence:   r.Confidence,
		UsageCount:   r.UsageCount,
		LastUsed:     r.LastUsed.UTC(),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

// Reinforce bumps usage_count on an existing pattern or inserts it at 1.
func (a *PatternAdapter) Reinforce(ctx context.Context, patternType domain.PatternType, key, value string, confidence float64) error {
	now := a.now()
	query := a.db.Rebind(`
		INSERT INTO learning_patterns (pattern_type, pattern_key, pattern_value, confidence, usage_count, last_used, created_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (pattern_type, pattern_key, pattern_value) DO UPDATE SET
			usage_count = learning_patterns.usage_count + 1,
			confidence = excluded.confidence,
			last_used = excluded.last_used`)

	if _, err := a.db.ExecContext(ctx, query, string(patternType), key, value, confidence, now, now); err != nil {
		return fmt.Errorf("failed to reinforce pattern: %w", err)
	}
	return nil
}

// Set upserts the pattern with absolute values.
func (a *PatternAdapter) Set(ctx context.Context, patternType domain.PatternType, key, value string, confidence float64, usageCount int) error {
	now := a.now()
	query := a.db.Rebind(`
		INSERT INTO learning_patterns (pattern_type, pattern_key, pattern_value, confidence, usage_count, last_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pattern_type, pattern_key, pattern_value) DO UPDATE SET
			usage_count = excluded.usage_count,
			confidence = excluded.confidence,
			last_used = excluded.last_used`)

	if _, err := a.db.ExecContext(ctx, query, string(patternType), key, value, confidence, usageCount, now, now); err != nil {
		return fmt.Errorf("failed to set pattern: %w", err)
	}
	return nil
}

// List returns all patterns of a type, or every pattern when patternType is empty.
func (a *PatternAdapter) List(ctx context.Context, patternType domain.PatternType) ([]*domain.LearningPattern, error) {
	if patternType == "" {
		return a.selectPatterns(ctx, `SELECT `+patternColumns+` FROM learning_patterns ORDER BY id`)
	}
	return a.selectPatterns(ctx,
		a.db.Rebind(`SELECT `+patternColumns+` FROM learning_patterns WHERE pattern_type = ? ORDER BY id`),
		string(patternType))
}

// ListByKey returns the patterns for a key, most used first.
func (a *PatternAdapter) ListByKey(ctx context.Context, patternType domain.PatternType, key string, minConfidence float64, limit int) ([]*domain.LearningPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM learning_patterns
		WHERE pattern_type = ? AND pattern_key = ? AND confidence >= ?
		ORDER BY usage_count DESC, id ASC`
	args := []any{string(patternType), key, minConfidence}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return a.selectPatterns(ctx, a.db.Rebind(query), args...)
}

// ListByValue returns the patterns for a value, most confident first.
func (a *PatternAdapter) ListByValue(ctx context.Context, patternType domain.PatternType, value string, minConfidence float64) ([]*domain.LearningPattern, error) {
	query := a.db.Rebind(`SELECT ` + patternColumns + ` FROM learning_patterns
		WHERE pattern_type = ? AND pattern_value = ? AND confidence >= ?
		ORDER BY confidence DESC, usage_count DESC, id ASC`)
	return a.selectPatterns(ctx, query, string(patternType), value, minConfidence)
}

func (a *PatternAdapter) selectPatterns(ctx context.Context, query string, args ...any) ([]*domain.LearningPattern, error) {
	var rows []patternRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	patterns := make([]*domain.LearningPattern, len(rows))
	for i := range rows {
		patterns[i] = rows[i].toEntity()
	}
	return patterns, nil
}
