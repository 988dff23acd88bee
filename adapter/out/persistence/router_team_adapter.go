package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"query_router/core/domain"
	"query_router/core/port/out"
)

// TeamAdapter implements out.TeamRepository.
type TeamAdapter struct {
	db *sqlx.DB
}

var _ out.TeamRepository = (*TeamAdapter)(nil)

// NewTeamAdapter creates a new TeamAdapter.
func NewTeamAdapter(db *sqlx.DB) *TeamAdapter {
	return &TeamAdapter{db: db}
}

type teamRow struct {
	Name        string `db:"name"`
	Email       string `db:"email"`
	Description string `db:"description"`
}

func (r *teamRow) toEntity() *domain.Team {
	return &domain.Team{Name: r.Name, Email: r.Email, Description: r.Description}
}

// List returns the directory ordered by name.
func (a *TeamAdapter) List(ctx context.Context) ([]*domain.Team, error) {
	var rows []teamRow
	if err := a.db.SelectContext(ctx, &rows, `SELECT name, email, description FROM teams ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	teams := make([]*domain.Team, len(rows))
	for i := range rows {
		teams[i] = rows[i].toEntity()
	}
	return teams, nil
}

// GetByName returns (nil, nil) when the team is unknown.
func (a *TeamAdapter) GetByName(ctx context.Context, name string) (*domain.Team, error) {
	var row teamRow
	query := a.db.Rebind(`SELECT name, email, description FROM teams WHERE name = ?`)
	if err := a.db.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return row.toEntity(), nil
}

// Upsert inserts the team or replaces its contact fields.
func (a *TeamAdapter) Upsert(ctx context.Context, team *domain.Team) error {
	query := a.db.Rebind(`
		INSERT INTO teams (name, email, description) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET email = excluded.email, description = excluded.description`)
	if _, err := a.db.ExecContext(ctx, query, team.Name, team.Email, team.Description); err != nil {
		return fmt.Errorf("failed to upsert team: %w", err)
	}
	return nil
}
