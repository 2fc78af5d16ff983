package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	settlementsvc "github.com/realtyflow/settlement-engine/internal/services/settlement"
	"github.com/realtyflow/settlement-engine/pkg/observability"
	"github.com/realtyflow/settlement-engine/pkg/timeutil"
)

// Service derives per-agent payouts from a settlement and tracks their
// reconciliation lifecycle
type Service struct {
	db          ports.DBPort
	settlements ports.SettlementRepository
	payouts     ports.PayoutRepository
	audit       ports.AuditRepository
	policy      settlementsvc.Policy
	logger      ports.Logger
}

// NewService creates a new payout service
func NewService(
	db ports.DBPort,
	settlements ports.SettlementRepository,
	payouts ports.PayoutRepository,
	audit ports.AuditRepository,
	policy settlementsvc.Policy,
	logger ports.Logger,
) *Service {
	return &Service{
		db:          db,
		settlements: settlements,
		payouts:     payouts,
		audit:       audit,
		policy:      policy,
		logger:      logger,
	}
}

// GenerateRequest asks for payout generation against one settlement
type GenerateRequest struct {
	SettlementID string
	Method       domain.PayoutMethod
	Actor        string
}

// GenerateResult reports what a generation run did
type GenerateResult struct {
	Created    []*domain.Payout
	Kept       []*domain.Payout
	Superseded []string
}

// Generate groups the settlement's lines by agent and produces one payout per
// agent. Re-running against changed lines supersedes stale pending payouts and
// recreates them; payouts already sent or reconciled block regeneration.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if !domain.ValidPayoutMethod(req.Method) {
		return nil, domain.NewValidationError("method", "unknown payout method")
	}

	settlement, err := s.settlements.GetByID(ctx, nil, req.SettlementID)
	if err != nil {
		return nil, err
	}
	if settlement.Status == domain.SettlementDraft {
		return nil, domain.NewStateViolation("payouts can only be generated for APPROVED or CLOSED settlements").
			WithDetail("settlement_id", req.SettlementID)
	}

	lines, err := s.settlements.ListLines(ctx, nil, req.SettlementID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.NewStateViolation("settlement has no lines to pay out").
			WithDetail("settlement_id", req.SettlementID)
	}
	wanted := s.computeTargets(settlement, lines, req.Method)

	existing, err := s.payouts.ListBySettlement(ctx, nil, req.SettlementID)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{}
	toSupersede := make([]string, 0)
	byAgent := make(map[string]*domain.Payout)
	for _, p := range existing {
		if p.Status == domain.PayoutSuperseded {
			continue
		}
		byAgent[p.AgentID] = p
	}

	for _, target := range wanted {
		current, ok := byAgent[target.AgentID]
		if !ok {
			result.Created = append(result.Created, target)
			continue
		}
		delete(byAgent, target.AgentID)
		if current.Net.Equal(target.Net) && current.Method == target.Method {
			result.Kept = append(result.Kept, current)
			continue
		}
		if current.Settled() {
			return nil, domain.NewStateViolation("payout already disbursed, regeneration would change its amount").
				WithDetail("payout_id", current.ID).
				WithDetail("agent_id", current.AgentID)
		}
		toSupersede = append(toSupersede, current.ID)
		result.Created = append(result.Created, target)
	}
	// payouts for agents no longer on the settlement
	for _, orphan := range byAgent {
		if orphan.Settled() {
			return nil, domain.NewStateViolation("payout already disbursed for an agent no longer on the settlement").
				WithDetail("payout_id", orphan.ID).
				WithDetail("agent_id", orphan.AgentID)
		}
		toSupersede = append(toSupersede, orphan.ID)
	}
	result.Superseded = toSupersede

	if len(result.Created) == 0 && len(toSupersede) == 0 {
		return result, nil
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if len(toSupersede) > 0 {
			if err := s.payouts.MarkSuperseded(ctx, tx, toSupersede); err != nil {
				return err
			}
		}
		for _, p := range result.Created {
			if err := s.payouts.Create(ctx, tx, p); err != nil {
				return err
			}
		}
		entry := domain.NewAuditEntry(req.SettlementID, domain.AuditPayoutsGenerated, req.Actor, map[string]interface{}{
			"created":    len(result.Created),
			"kept":       len(result.Kept),
			"superseded": len(toSupersede),
			"method":     string(req.Method),
		})
		entry.ID = uuid.New().String()
		return s.audit.Append(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	for range result.Created {
		observability.RecordPayoutGenerated(string(req.Method))
	}
	s.logger.Info("payouts generated",
		ports.String("settlement_id", req.SettlementID),
		ports.Int("created", len(result.Created)),
		ports.Int("kept", len(result.Kept)),
		ports.Int("superseded", len(toSupersede)),
		ports.String("actor", req.Actor))
	return result, nil
}

// computeTargets derives the desired payout per agent from current lines
func (s *Service) computeTargets(settlement *domain.Settlement, lines []*domain.SettlementLine, method domain.PayoutMethod) []*domain.Payout {
	now := timeutil.Now()

	order := make([]string, 0)
	byAgent := make(map[string]*domain.Payout)
	for _, line := range lines {
		p, ok := byAgent[line.AgentID]
		if !ok {
			p = &domain.Payout{
				ID:           uuid.New().String(),
				SettlementID: settlement.ID,
				AgentID:      line.AgentID,
				AgentName:    line.AgentName,
				Method:       method,
				Status:       domain.PayoutPending,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			byAgent[line.AgentID] = p
			order = append(order, line.AgentID)
		}
		p.Gross = p.Gross.Add(line.CommissionAmount)
		p.Net = p.Net.Add(line.CurrentNet())
	}

	targets := make([]*domain.Payout, 0, len(order))
	for _, agentID := range order {
		p := byAgent[agentID]
		p.Gross = domain.RoundMoney(p.Gross)
		withholding := domain.RoundMoney(p.Gross.Mul(s.policy.WithholdingRate))
		p.Withholdings = withholding
		p.Net = domain.RoundMoney(p.Net.Sub(withholding))
		targets = append(targets, p)
	}
	return targets
}

// List returns a settlement's payouts, superseded ones included
func (s *Service) List(ctx context.Context, settlementID string) ([]*domain.Payout, error) {
	if _, err := s.settlements.GetByID(ctx, nil, settlementID); err != nil {
		return nil, err
	}
	return s.payouts.ListBySettlement(ctx, nil, settlementID)
}

// StatusRequest advances one payout along its reconciliation lifecycle
type StatusRequest struct {
	PayoutID   string
	Status     domain.PayoutStatus
	PaidAt     *time.Time
	BankRef    string
	ReceiptRef string
	Actor      string
}

// UpdateStatus applies pending→sent or sent→reconciled
func (s *Service) UpdateStatus(ctx context.Context, req StatusRequest) (*domain.Payout, error) {
	payout, err := s.payouts.GetByID(ctx, nil, req.PayoutID)
	if err != nil {
		return nil, err
	}
	from := payout.Status
	if err := payout.AdvanceStatus(req.Status, req.PaidAt); err != nil {
		return nil, err
	}
	if req.BankRef != "" {
		payout.BankRef = req.BankRef
	}
	if req.ReceiptRef != "" {
		payout.ReceiptRef = req.ReceiptRef
	}
	payout.UpdatedAt = timeutil.Now()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.payouts.UpdateStatus(ctx, tx, payout)
	})
	if err != nil {
		return nil, err
	}

	observability.RecordPayoutTransition(string(from), string(payout.Status))
	s.logger.Info("payout status updated",
		ports.String("payout_id", payout.ID),
		ports.String("from", string(from)),
		ports.String("to", string(payout.Status)),
		ports.String("actor", req.Actor))
	return payout, nil
}
