package authz

import (
	"context"

	"github.com/realtyflow/settlement-engine/internal/domain"
)

// AllowlistAuthorizer authorizes reopen requests for a fixed set of actors.
// An empty allowlist denies everyone.
type AllowlistAuthorizer struct {
	actors map[string]struct{}
}

// NewAllowlistAuthorizer builds an authorizer from the configured actor list
func NewAllowlistAuthorizer(actors []string) *AllowlistAuthorizer {
	set := make(map[string]struct{}, len(actors))
	for _, a := range actors {
		set[a] = struct{}{}
	}
	return &AllowlistAuthorizer{actors: set}
}

// AuthorizeReopen allows the reopen when the actor is on the allowlist
func (a *AllowlistAuthorizer) AuthorizeReopen(ctx context.Context, actor, settlementID string) error {
	if _, ok := a.actors[actor]; ok {
		return nil
	}
	return domain.NewStateViolation("actor is not authorized to reopen settlements").
		WithDetail("actor", actor).
		WithDetail("settlement_id", settlementID)
}
