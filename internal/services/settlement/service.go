package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/pkg/observability"
	"github.com/realtyflow/settlement-engine/pkg/timeutil"
)

// Service owns the settlement lifecycle: construction, mutation while in
// DRAFT, approval, closing and the authorized reopen path
type Service struct {
	db          ports.DBPort
	settlements ports.SettlementRepository
	commissions ports.CommissionItemRepository
	audit       ports.AuditRepository
	catalog     ports.CatalogProvider
	accounting  ports.AccountingGateway
	authorizer  ports.ReopenAuthorizer
	policy      Policy
	logger      ports.Logger
}

// NewService creates a new settlement service
func NewService(
	db ports.DBPort,
	settlements ports.SettlementRepository,
	commissions ports.CommissionItemRepository,
	audit ports.AuditRepository,
	catalog ports.CatalogProvider,
	accounting ports.AccountingGateway,
	authorizer ports.ReopenAuthorizer,
	policy Policy,
	logger ports.Logger,
) *Service {
	return &Service{
		db:          db,
		settlements: settlements,
		commissions: commissions,
		audit:       audit,
		catalog:     catalog,
		accounting:  accounting,
		authorizer:  authorizer,
		policy:      policy,
		logger:      logger,
	}
}

// Get retrieves a settlement by id
func (s *Service) Get(ctx context.Context, id string) (*domain.Settlement, error) {
	return s.settlements.GetByID(ctx, nil, id)
}

// List returns a paginated, filtered settlement listing
func (s *Service) List(ctx context.Context, filter ports.SettlementFilter, page ports.PageRequest) (*ports.SettlementPage, error) {
	return s.settlements.List(ctx, nil, filter, page)
}

// Lines returns a settlement's lines with adjustment histories
func (s *Service) Lines(ctx context.Context, settlementID string) ([]*domain.SettlementLine, error) {
	if _, err := s.settlements.GetByID(ctx, nil, settlementID); err != nil {
		return nil, err
	}
	return s.settlements.ListLines(ctx, nil, settlementID)
}

// AuditTrail returns the settlement's full audit history
func (s *Service) AuditTrail(ctx context.Context, settlementID string) ([]*domain.AuditEntry, error) {
	if _, err := s.settlements.GetByID(ctx, nil, settlementID); err != nil {
		return nil, err
	}
	return s.audit.ListBySettlement(ctx, nil, settlementID)
}

// UpdateRequest carries the mutable header fields of a DRAFT settlement
type UpdateRequest struct {
	Name  *string
	Notes *string
	Actor string
}

// Update edits a settlement's name and notes. Only legal while DRAFT.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*domain.Settlement, error) {
	settlement, err := s.settlements.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := settlement.RequireEditable(); err != nil {
		return nil, err
	}

	changed := make(map[string]interface{})
	if req.Name != nil {
		if *req.Name == "" {
			return nil, domain.NewValidationError("name", "settlement name cannot be empty")
		}
		if len(*req.Name) > domain.MaxSettlementNameLength {
			return nil, domain.NewValidationError("name",
				fmt.Sprintf("settlement name exceeds %d characters", domain.MaxSettlementNameLength))
		}
		changed["name"] = map[string]string{"from": settlement.Name, "to": *req.Name}
		settlement.Name = *req.Name
	}
	if req.Notes != nil {
		changed["notes"] = "updated"
		settlement.Notes = *req.Notes
	}
	if len(changed) == 0 {
		return settlement, nil
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.settlements.Update(ctx, tx, settlement, settlement.Version); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, settlement.ID, domain.AuditUpdated, req.Actor, changed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("settlement updated",
		ports.String("settlement_id", settlement.ID),
		ports.String("actor", req.Actor))
	return settlement, nil
}

// Recalculate recomputes every line from its base amount and applied rate and
// rebuilds the settlement aggregates. Calling it twice without an intervening
// adjustment yields identical totals.
func (s *Service) Recalculate(ctx context.Context, id, actor string) (*domain.Settlement, error) {
	settlement, err := s.settlements.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := settlement.RequireEditable(); err != nil {
		return nil, err
	}

	lines, err := s.settlements.ListLines(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, line := range lines {
			line.CommissionAmount = domain.RoundMoney(line.BaseAmount.Mul(line.AppliedRate))
			line.NetAmount = line.CurrentNet()
			if err := s.settlements.UpdateLineTotals(ctx, tx, line); err != nil {
				return err
			}
		}
		settlement.RecomputeAggregates(lines, s.policy.WithholdingRate)
		if err := s.settlements.Update(ctx, tx, settlement, settlement.Version); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, settlement.ID, domain.AuditRecalculated, actor, map[string]interface{}{
			"gross": settlement.Gross.String(),
			"net":   settlement.Net.String(),
			"lines": len(lines),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("settlement recalculated",
		ports.String("settlement_id", settlement.ID),
		ports.String("net", settlement.Net.String()))
	return settlement, nil
}

// Approve transitions DRAFT -> APPROVED, freezing the settlement for closure
func (s *Service) Approve(ctx context.Context, id, actor string) (*domain.Settlement, error) {
	return s.transition(ctx, id, domain.SettlementApproved, actor, nil)
}

// CloseOptions controls settlement closing. CreateAccountingEntry must be an
// explicit boolean; a nil value fails validation.
type CloseOptions struct {
	CreateAccountingEntry *bool
	Notes                 string
	Actor                 string
}

// Close transitions one APPROVED settlement to CLOSED, marks every referenced
// commission item settled and optionally emits an accounting entry, all in
// one transaction.
func (s *Service) Close(ctx context.Context, id string, opts CloseOptions) (*domain.Settlement, error) {
	if opts.CreateAccountingEntry == nil {
		return nil, domain.NewValidationError("create_accounting_entry", "create_accounting_entry must be set explicitly")
	}

	settlement, err := s.settlements.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !settlement.CanTransitionTo(domain.SettlementClosed) {
		return nil, domain.NewStateViolation(
			fmt.Sprintf("only APPROVED settlements can be closed, settlement is %s", settlement.Status)).
			WithDetail("settlement_id", id)
	}

	lines, err := s.settlements.ListLines(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	itemIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		itemIDs = append(itemIDs, line.CommissionItemID)
	}

	now := timeutil.Now()
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.settlements.UpdateStatus(ctx, tx, id, domain.SettlementClosed, &now, settlement.Version); err != nil {
			return err
		}

		settled, err := s.commissions.MarkSettled(ctx, tx, itemIDs)
		if err != nil {
			return err
		}
		if settled != int64(len(itemIDs)) {
			return domain.NewStateViolation("some commission items were already allocated elsewhere").
				WithDetail("settlement_id", id).
				WithDetail("expected", len(itemIDs)).
				WithDetail("settled", settled)
		}

		if *opts.CreateAccountingEntry {
			entry := ports.AccountingEntry{
				SettlementID:   settlement.ID,
				SettlementName: settlement.Name,
				Period:         settlement.Period,
				Description:    fmt.Sprintf("commission settlement %s (%s)", settlement.Name, settlement.Period),
				Amount:         settlement.Net,
				PostedAt:       now,
			}
			if err := s.accounting.CreateEntry(ctx, entry); err != nil {
				return domain.NewTransientFailure("accounting entry creation failed", err)
			}
		}

		detail := map[string]interface{}{
			"from": string(domain.SettlementApproved),
			"to":   string(domain.SettlementClosed),
		}
		if opts.Notes != "" {
			detail["notes"] = opts.Notes
		}
		return s.appendAudit(ctx, tx, id, domain.AuditStatusChanged, opts.Actor, detail)
	})
	if err != nil {
		return nil, err
	}

	settlement.Status = domain.SettlementClosed
	settlement.ClosedAt = &now
	settlement.Version++
	observability.RecordSettlementClosed(string(settlement.ScopeKind))

	s.logger.Info("settlement closed",
		ports.String("settlement_id", id),
		ports.Int("items_settled", len(itemIDs)),
		ports.String("actor", opts.Actor))
	return settlement, nil
}

// Reopen transitions CLOSED -> DRAFT after an authorization check. Lines and
// adjustments are left untouched; the transition itself is audited.
func (s *Service) Reopen(ctx context.Context, id, actor string) (*domain.Settlement, error) {
	if err := s.authorizer.AuthorizeReopen(ctx, actor, id); err != nil {
		return nil, err
	}
	settlement, err := s.transition(ctx, id, domain.SettlementDraft, actor, map[string]interface{}{"reopened": true})
	if err != nil {
		return nil, err
	}
	observability.RecordSettlementReopened()
	return settlement, nil
}

// transition performs a generic audited lifecycle transition
func (s *Service) transition(ctx context.Context, id string, next domain.SettlementStatus, actor string, extra map[string]interface{}) (*domain.Settlement, error) {
	settlement, err := s.settlements.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	from := settlement.Status
	if err := settlement.Transition(next); err != nil {
		return nil, err
	}

	action := domain.AuditStatusChanged
	var closedAt *time.Time
	if from == domain.SettlementClosed && next == domain.SettlementDraft {
		action = domain.AuditReopened
	} else {
		closedAt = settlement.ClosedAt
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.settlements.UpdateStatus(ctx, tx, id, next, closedAt, settlement.Version); err != nil {
			return err
		}
		detail := map[string]interface{}{"from": string(from), "to": string(next)}
		for k, v := range extra {
			detail[k] = v
		}
		return s.appendAudit(ctx, tx, id, action, actor, detail)
	})
	if err != nil {
		return nil, err
	}

	settlement.Version++
	if next == domain.SettlementDraft {
		settlement.ClosedAt = nil
	}

	s.logger.Info("settlement status changed",
		ports.String("settlement_id", id),
		ports.String("from", string(from)),
		ports.String("to", string(next)),
		ports.String("actor", actor))
	return settlement, nil
}

func (s *Service) appendAudit(ctx context.Context, tx ports.DBTX, settlementID string, action domain.AuditAction, actor string, detail map[string]interface{}) error {
	entry := domain.NewAuditEntry(settlementID, action, actor, detail)
	entry.ID = uuid.New().String()
	return s.audit.Append(ctx, tx, entry)
}
