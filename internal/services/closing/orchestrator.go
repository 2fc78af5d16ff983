package closing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/pkg/observability"
	"github.com/realtyflow/settlement-engine/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// Orchestrator closes every approved settlement of a period in one atomic
// run. Validation happens in a first pass over all candidates; nothing is
// committed unless every approved settlement passes.
type Orchestrator struct {
	db          ports.DBPort
	settlements ports.SettlementRepository
	commissions ports.CommissionItemRepository
	audit       ports.AuditRepository
	accounting  ports.AccountingGateway
	logger      ports.Logger
}

// NewOrchestrator creates a new period closure orchestrator
func NewOrchestrator(
	db ports.DBPort,
	settlements ports.SettlementRepository,
	commissions ports.CommissionItemRepository,
	audit ports.AuditRepository,
	accounting ports.AccountingGateway,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		db:          db,
		settlements: settlements,
		commissions: commissions,
		audit:       audit,
		accounting:  accounting,
		logger:      logger,
	}
}

// Request asks for closure of a whole period, optionally narrowed to one
// scope. Confirm must be true and CreateAccountingEntry explicitly set before
// anything is committed.
type Request struct {
	Period                string
	ScopeKind             domain.ScopeKind
	ScopeID               string
	Confirm               bool
	CreateAccountingEntry *bool
	Actor                 string
}

// SkippedSettlement reports a candidate the run did not close
type SkippedSettlement struct {
	ID     string
	Name   string
	Status domain.SettlementStatus
	Reason string
}

// Result reports what a closure run (or dry run) would do or did
type Result struct {
	Period    domain.Period
	Committed bool
	Closed    []*domain.Settlement
	Skipped   []SkippedSettlement
	TotalNet  decimal.Decimal
}

type candidate struct {
	settlement *domain.Settlement
	itemIDs    []string
}

// ClosePeriod validates every settlement in the period and, when Confirm is
// set, closes all approved ones in a single transaction. Drafts are never
// closed implicitly; they are reported as skipped. A validation failure on
// any approved settlement rejects the whole run.
func (o *Orchestrator) ClosePeriod(ctx context.Context, req Request) (*Result, error) {
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	if req.ScopeKind != "" && !domain.ValidScopeKind(req.ScopeKind) {
		return nil, domain.NewValidationError("scope_kind", fmt.Sprintf("unknown scope kind %q", req.ScopeKind))
	}
	if req.Confirm && req.CreateAccountingEntry == nil {
		return nil, domain.NewValidationError("create_accounting_entry", "create_accounting_entry must be set explicitly")
	}

	all, err := o.settlements.ListForClosure(ctx, nil, period, req.ScopeKind, req.ScopeID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, domain.NewNotFound("settlements for period", string(period))
	}

	result := &Result{Period: period, TotalNet: decimal.Zero}
	candidates := make([]candidate, 0, len(all))

	// first pass: validate everything before touching anything
	for _, s := range all {
		switch s.Status {
		case domain.SettlementClosed:
			result.Skipped = append(result.Skipped, SkippedSettlement{
				ID: s.ID, Name: s.Name, Status: s.Status, Reason: "already closed",
			})
		case domain.SettlementDraft:
			result.Skipped = append(result.Skipped, SkippedSettlement{
				ID: s.ID, Name: s.Name, Status: s.Status, Reason: "still in draft, approve it first",
			})
		case domain.SettlementApproved:
			lines, err := o.settlements.ListLines(ctx, nil, s.ID)
			if err != nil {
				return nil, err
			}
			if err := s.CheckTotals(lines); err != nil {
				observability.RecordPeriodClosure(string(req.ScopeKind), 0, true)
				return nil, err
			}
			itemIDs := make([]string, 0, len(lines))
			for _, line := range lines {
				itemIDs = append(itemIDs, line.CommissionItemID)
			}
			candidates = append(candidates, candidate{settlement: s, itemIDs: itemIDs})
		}
	}

	if len(candidates) == 0 {
		return nil, domain.NewStateViolation("no approved settlements to close in period").
			WithDetail("period", string(period))
	}
	for _, c := range candidates {
		result.Closed = append(result.Closed, c.settlement)
		result.TotalNet = result.TotalNet.Add(c.settlement.Net)
	}

	if !req.Confirm {
		return result, nil
	}

	// second pass: commit everything in one transaction
	now := timeutil.Now()
	err = o.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, c := range candidates {
			s := c.settlement
			if err := o.settlements.UpdateStatus(ctx, tx, s.ID, domain.SettlementClosed, &now, s.Version); err != nil {
				return err
			}
			settled, err := o.commissions.MarkSettled(ctx, tx, c.itemIDs)
			if err != nil {
				return err
			}
			if settled != int64(len(c.itemIDs)) {
				return domain.NewStateViolation("commission items were allocated elsewhere during closure").
					WithDetail("settlement_id", s.ID).
					WithDetail("expected", len(c.itemIDs)).
					WithDetail("settled", settled)
			}
			entry := domain.NewAuditEntry(s.ID, domain.AuditStatusChanged, req.Actor, map[string]interface{}{
				"from":           string(domain.SettlementApproved),
				"to":             string(domain.SettlementClosed),
				"period_closure": string(period),
			})
			entry.ID = uuid.New().String()
			if err := o.audit.Append(ctx, tx, entry); err != nil {
				return err
			}
		}

		if *req.CreateAccountingEntry {
			entry := ports.AccountingEntry{
				Period:      period,
				Description: fmt.Sprintf("period closure %s (%d settlements)", period, len(candidates)),
				Amount:      result.TotalNet,
				PostedAt:    now,
			}
			if err := o.accounting.CreateEntry(ctx, entry); err != nil {
				return domain.NewTransientFailure("accounting entry creation failed", err)
			}
		}
		return nil
	})
	if err != nil {
		observability.RecordPeriodClosure(string(req.ScopeKind), 0, true)
		return nil, err
	}

	result.Committed = true
	for _, c := range candidates {
		c.settlement.Status = domain.SettlementClosed
		c.settlement.ClosedAt = &now
		c.settlement.Version++
		observability.RecordSettlementClosed(string(c.settlement.ScopeKind))
	}
	observability.RecordPeriodClosure(string(req.ScopeKind), len(candidates), false)

	o.logger.Info("period closed",
		ports.String("period", string(period)),
		ports.Int("closed", len(candidates)),
		ports.Int("skipped", len(result.Skipped)),
		ports.String("total_net", result.TotalNet.String()),
		ports.String("actor", req.Actor))
	return result, nil
}
