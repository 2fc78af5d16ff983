package ports

import (
	"context"
	"time"

	"github.com/realtyflow/settlement-engine/internal/domain"
)

// SettlementFilter narrows settlement listings
type SettlementFilter struct {
	Period    string
	ScopeKind domain.ScopeKind
	ScopeID   string
	Status    domain.SettlementStatus
	Origin    domain.Origin
	Query     string
	From      *time.Time
	To        *time.Time
}

// PageRequest carries pagination and sorting for list operations
type PageRequest struct {
	Page int32
	Size int32
	Sort string
}

// SettlementPage is one page of a settlement listing
type SettlementPage struct {
	Items      []*domain.Settlement
	Total      int64
	Page       int32
	TotalPages int32
}

// SettlementRepository persists settlements, their lines and adjustments.
// Mutating methods taking an expectedVersion perform a compare-and-swap on
// the settlement's version column and report a lost race as a
// CONCURRENT_MODIFICATION domain error.
type SettlementRepository interface {
	Create(ctx context.Context, tx DBTX, settlement *domain.Settlement, lines []*domain.SettlementLine) error
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Settlement, error)
	List(ctx context.Context, db DBTX, filter SettlementFilter, page PageRequest) (*SettlementPage, error)
	ListForClosure(ctx context.Context, db DBTX, period domain.Period, scopeKind domain.ScopeKind, scopeID string) ([]*domain.Settlement, error)

	Update(ctx context.Context, tx DBTX, settlement *domain.Settlement, expectedVersion int64) error
	UpdateStatus(ctx context.Context, tx DBTX, id string, status domain.SettlementStatus, closedAt *time.Time, expectedVersion int64) error

	ListLines(ctx context.Context, db DBTX, settlementID string) ([]*domain.SettlementLine, error)
	GetLine(ctx context.Context, db DBTX, lineID string) (*domain.SettlementLine, error)
	UpdateLineTotals(ctx context.Context, tx DBTX, line *domain.SettlementLine) error

	AppendAdjustment(ctx context.Context, tx DBTX, adjustment *domain.Adjustment) error
}

// CommissionFilter narrows eligible commission item queries
type CommissionFilter struct {
	Period       domain.Period
	ScopeKind    domain.ScopeKind
	ScopeID      string
	Origin       domain.Origin
	OnlyApproved bool
}

// CommissionItemRepository reads eligible commission items and flips them to
// settled exactly once at period closure
type CommissionItemRepository interface {
	ListEligible(ctx context.Context, db DBTX, filter CommissionFilter) ([]*domain.CommissionItem, error)
	GetByIDs(ctx context.Context, db DBTX, ids []string) ([]*domain.CommissionItem, error)

	// MarkSettled transitions the given approved items to settled and returns
	// the number of rows actually updated, allowing the caller to detect
	// double allocation.
	MarkSettled(ctx context.Context, tx DBTX, ids []string) (int64, error)
}

// PayoutRepository persists per-agent payouts
type PayoutRepository interface {
	Create(ctx context.Context, tx DBTX, payout *domain.Payout) error
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Payout, error)
	ListBySettlement(ctx context.Context, db DBTX, settlementID string) ([]*domain.Payout, error)
	UpdateStatus(ctx context.Context, tx DBTX, payout *domain.Payout) error
	MarkSuperseded(ctx context.Context, tx DBTX, ids []string) error
}

// AuditRepository is the append-only audit sink. Entries are never mutated
// or deleted.
type AuditRepository interface {
	Append(ctx context.Context, tx DBTX, entry *domain.AuditEntry) error
	ListBySettlement(ctx context.Context, db DBTX, settlementID string) ([]*domain.AuditEntry, error)
}
