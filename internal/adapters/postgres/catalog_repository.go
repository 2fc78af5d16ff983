package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// CatalogRepository implements ports.CatalogProvider against the synced
// offices/teams/agents tables. Wrap it in catalog.CachedProvider before
// handing it to services.
type CatalogRepository struct {
	db ports.DBPort
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db ports.DBPort) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetOffice(ctx context.Context, id string) (*domain.Office, error) {
	var o domain.Office
	err := r.db.GetDB().QueryRow(ctx,
		`SELECT id, name FROM offices WHERE id = $1`, id).Scan(&o.ID, &o.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("office", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get office: %w", err)
	}
	return &o, nil
}

func (r *CatalogRepository) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	var t domain.Team
	err := r.db.GetDB().QueryRow(ctx,
		`SELECT id, office_id, name FROM teams WHERE id = $1`, id).Scan(&t.ID, &t.OfficeID, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("team", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

func (r *CatalogRepository) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	var a domain.Agent
	var teamID, email pgtype.Text
	err := r.db.GetDB().QueryRow(ctx,
		`SELECT id, team_id, office_id, name, email FROM agents WHERE id = $1`, id).
		Scan(&a.ID, &teamID, &a.OfficeID, &a.Name, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("agent", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	a.TeamID = teamID.String
	a.Email = email.String
	return &a, nil
}
