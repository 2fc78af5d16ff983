package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/pkg/observability"
	"github.com/realtyflow/settlement-engine/pkg/timeutil"
)

// BuildRequest carries everything the four-stage wizard collected: the
// scope/period selection, the chosen commission item ids and the finalize
// fields.
type BuildRequest struct {
	Period    string
	ScopeKind domain.ScopeKind
	ScopeID   string
	Origin    domain.Origin

	CommissionItemIDs []string

	Name      string
	Notes     string
	CreatedBy string
}

// Preview is the computed result of a build before persistence
type Preview struct {
	Period       domain.Period
	ScopeKind    domain.ScopeKind
	ScopeID      string
	ScopeName    string
	Origin       domain.Origin
	Lines        []*domain.SettlementLine
	Gross        string
	Withholdings string
	Net          string
	PerAgent     []AgentTotals
}

// validateScope checks the stage-1 selection fields
func (s *Service) validateScope(req BuildRequest) (domain.Period, error) {
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return "", err
	}
	if !domain.ValidScopeKind(req.ScopeKind) {
		return "", domain.NewValidationError("scope_kind", fmt.Sprintf("unknown scope kind %q", req.ScopeKind))
	}
	if req.ScopeID == "" {
		return "", domain.NewValidationError("scope_id", "scope id is required")
	}
	if !domain.ValidOrigin(req.Origin) {
		return "", domain.NewValidationError("origin", fmt.Sprintf("unknown origin %q", req.Origin))
	}
	return period, nil
}

// resolveScopeName looks the scope entity up in the catalog so the settlement
// carries a display name frozen at build time
func (s *Service) resolveScopeName(ctx context.Context, kind domain.ScopeKind, id string) (string, error) {
	switch kind {
	case domain.ScopeOffice:
		office, err := s.catalog.GetOffice(ctx, id)
		if err != nil {
			return "", err
		}
		return office.Name, nil
	case domain.ScopeTeam:
		team, err := s.catalog.GetTeam(ctx, id)
		if err != nil {
			return "", err
		}
		return team.Name, nil
	case domain.ScopeAgent:
		agent, err := s.catalog.GetAgent(ctx, id)
		if err != nil {
			return "", err
		}
		return agent.Name, nil
	}
	return "", domain.NewValidationError("scope_kind", fmt.Sprintf("unknown scope kind %q", kind))
}

// loadSelection fetches the chosen commission items and re-verifies their
// eligibility. Selection made in an earlier wizard stage can go stale, so
// every item is checked again here.
func (s *Service) loadSelection(ctx context.Context, period domain.Period, req BuildRequest) ([]*domain.CommissionItem, error) {
	if len(req.CommissionItemIDs) == 0 {
		return nil, domain.NewValidationError("commission_item_ids", "at least one commission item must be selected")
	}

	items, err := s.commissions.GetByIDs(ctx, nil, req.CommissionItemIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.CommissionItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	selected := make([]*domain.CommissionItem, 0, len(req.CommissionItemIDs))
	for _, id := range req.CommissionItemIDs {
		item, ok := byID[id]
		if !ok {
			return nil, domain.NewNotFound("commission item", id)
		}
		if item.Status == domain.CommissionSettled {
			return nil, domain.NewStateViolation("commission item is already settled").
				WithDetail("commission_item_id", id)
		}
		// Closing flips items with an approved-only predicate, so anything
		// short of approved must be rejected here or the settlement could
		// never close.
		if item.Status != domain.CommissionApproved {
			return nil, domain.NewStateViolation("commission item is not approved for settlement").
				WithDetail("commission_item_id", id)
		}
		if !period.Contains(item.Date) {
			return nil, domain.NewValidationError("commission_item_ids",
				fmt.Sprintf("commission item %s falls outside period %s", id, period))
		}
		if req.Origin != domain.OriginMixed && item.Origin != req.Origin {
			return nil, domain.NewValidationError("commission_item_ids",
				fmt.Sprintf("commission item %s has origin %s, expected %s", id, item.Origin, req.Origin))
		}
		selected = append(selected, item)
	}
	return selected, nil
}

// PreviewBuild runs stages 1-3 of the wizard without persisting anything
func (s *Service) PreviewBuild(ctx context.Context, req BuildRequest) (*Preview, error) {
	period, err := s.validateScope(req)
	if err != nil {
		return nil, err
	}
	scopeName, err := s.resolveScopeName(ctx, req.ScopeKind, req.ScopeID)
	if err != nil {
		return nil, err
	}
	items, err := s.loadSelection(ctx, period, req)
	if err != nil {
		return nil, err
	}

	calc := Calculate(items, s.policy)
	return &Preview{
		Period:       period,
		ScopeKind:    req.ScopeKind,
		ScopeID:      req.ScopeID,
		ScopeName:    scopeName,
		Origin:       req.Origin,
		Lines:        calc.Lines,
		Gross:        calc.Gross.String(),
		Withholdings: calc.Withholdings.String(),
		Net:          calc.Net.String(),
		PerAgent:     calc.PerAgent,
	}, nil
}

// Build runs the full wizard and persists the settlement with its lines and
// a CREATED audit entry in one transaction. The referenced commission items
// stay unsettled until closing; the unique line index keeps any item from
// being captured by two settlements at once.
func (s *Service) Build(ctx context.Context, req BuildRequest) (*domain.Settlement, error) {
	period, err := s.validateScope(req)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, domain.NewValidationError("name", "settlement name is required")
	}
	if len(req.Name) > domain.MaxSettlementNameLength {
		return nil, domain.NewValidationError("name",
			fmt.Sprintf("settlement name exceeds %d characters", domain.MaxSettlementNameLength))
	}
	if req.CreatedBy == "" {
		return nil, domain.NewValidationError("created_by", "creator is required")
	}

	scopeName, err := s.resolveScopeName(ctx, req.ScopeKind, req.ScopeID)
	if err != nil {
		return nil, err
	}
	items, err := s.loadSelection(ctx, period, req)
	if err != nil {
		return nil, err
	}

	calc := Calculate(items, s.policy)
	now := timeutil.Now()

	settlement := &domain.Settlement{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Period:       period,
		ScopeKind:    req.ScopeKind,
		ScopeID:      req.ScopeID,
		ScopeName:    scopeName,
		Origin:       req.Origin,
		Status:       domain.SettlementDraft,
		Gross:        calc.Gross,
		Withholdings: calc.Withholdings,
		Net:          calc.Net,
		LineCount:    int32(len(calc.Lines)),
		Version:      1,
		CreatedBy:    req.CreatedBy,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, line := range calc.Lines {
		line.ID = uuid.New().String()
		line.SettlementID = settlement.ID
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.settlements.Create(ctx, tx, settlement, calc.Lines); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, settlement.ID, domain.AuditCreated, req.CreatedBy, map[string]interface{}{
			"period":     string(period),
			"scope_kind": string(req.ScopeKind),
			"scope_id":   req.ScopeID,
			"lines":      len(calc.Lines),
			"net":        calc.Net.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	observability.RecordSettlementCreated(string(req.ScopeKind))
	s.logger.Info("settlement created",
		ports.String("settlement_id", settlement.ID),
		ports.String("period", string(period)),
		ports.String("scope", fmt.Sprintf("%s/%s", req.ScopeKind, req.ScopeID)),
		ports.Int("lines", len(calc.Lines)),
		ports.String("created_by", req.CreatedBy))
	return settlement, nil
}
