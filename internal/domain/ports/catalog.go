package ports

import (
	"context"

	"github.com/realtyflow/settlement-engine/internal/domain"
)

// CatalogProvider supplies the office/team/agent hierarchy. It is read-only
// to the engine; lookups are used for scoping and display names.
type CatalogProvider interface {
	GetOffice(ctx context.Context, id string) (*domain.Office, error)
	GetTeam(ctx context.Context, id string) (*domain.Team, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
}
