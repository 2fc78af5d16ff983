package selector

import (
	"context"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// Service implements the commission selector: read-only filtering of
// eligible commission items for the settlement wizard
type Service struct {
	commissions ports.CommissionItemRepository
	logger      ports.Logger
}

// NewService creates a new commission selector
func NewService(commissions ports.CommissionItemRepository, logger ports.Logger) *Service {
	return &Service{commissions: commissions, logger: logger}
}

// Request carries wizard stage-1 filters plus the caller's request epoch.
// Epochs implement stale-response suppression on the client side: a caller
// issues monotonically increasing epochs, and because every Result echoes
// the epoch it was requested with, a slow response arriving after a newer
// request can be discarded by comparing epochs.
type Request struct {
	Period       string
	ScopeKind    domain.ScopeKind
	ScopeID      string
	Origin       domain.Origin
	OnlyApproved bool
	Epoch        int64
}

// Result echoes the request epoch so callers can discard superseded
// responses
type Result struct {
	Epoch int64
	Items []*domain.CommissionItem
}

// ListEligible returns commission items matching the filters that have not
// been settled or referenced by an existing settlement line
func (s *Service) ListEligible(ctx context.Context, req Request) (*Result, error) {
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	if req.ScopeKind != "" && !domain.ValidScopeKind(req.ScopeKind) {
		return nil, domain.NewValidationError("scope_kind", "scope kind must be office, team or agent")
	}
	if req.ScopeKind != "" && req.ScopeID == "" {
		return nil, domain.NewValidationError("scope_id", "scope id is required when a scope kind is set")
	}
	if req.Origin != "" && !domain.ValidOrigin(req.Origin) {
		return nil, domain.NewValidationError("origin", "origin must be sale, rental or mixed")
	}

	items, err := s.commissions.ListEligible(ctx, nil, ports.CommissionFilter{
		Period:       period,
		ScopeKind:    req.ScopeKind,
		ScopeID:      req.ScopeID,
		Origin:       req.Origin,
		OnlyApproved: req.OnlyApproved,
	})
	if err != nil {
		s.logger.Error("failed to list eligible commissions",
			ports.String("period", req.Period),
			ports.Err(err))
		return nil, err
	}

	s.logger.Debug("listed eligible commissions",
		ports.String("period", req.Period),
		ports.Int("count", len(items)))

	return &Result{Epoch: req.Epoch, Items: items}, nil
}
