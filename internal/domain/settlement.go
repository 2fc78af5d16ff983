package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus represents the lifecycle state of a settlement
type SettlementStatus string

const (
	SettlementDraft    SettlementStatus = "DRAFT"
	SettlementApproved SettlementStatus = "APPROVED"
	SettlementClosed   SettlementStatus = "CLOSED"
)

// ScopeKind identifies the hierarchy level a settlement is scoped to
type ScopeKind string

const (
	ScopeOffice ScopeKind = "office"
	ScopeTeam   ScopeKind = "team"
	ScopeAgent  ScopeKind = "agent"
)

// ValidScopeKind reports whether k is a known scope kind
func ValidScopeKind(k ScopeKind) bool {
	switch k {
	case ScopeOffice, ScopeTeam, ScopeAgent:
		return true
	}
	return false
}

// MaxSettlementNameLength bounds the settlement name accepted at finalize
const MaxSettlementNameLength = 100

// Settlement is a batch of commission allocations for a period and scope
type Settlement struct {
	ID        string
	Name      string
	Period    Period
	ScopeKind ScopeKind
	ScopeID   string
	ScopeName string
	Origin    Origin
	Status    SettlementStatus

	Gross        decimal.Decimal
	Withholdings decimal.Decimal
	Net          decimal.Decimal
	LineCount    int32

	// Version guards concurrent mutation via compare-and-swap
	Version int64

	CreatedBy string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// CanTransitionTo reports whether moving to next is a legal lifecycle step.
// The only legal transitions are DRAFT→APPROVED, APPROVED→CLOSED and the
// explicit CLOSED→DRAFT reopen.
func (s *Settlement) CanTransitionTo(next SettlementStatus) bool {
	switch s.Status {
	case SettlementDraft:
		return next == SettlementApproved
	case SettlementApproved:
		return next == SettlementClosed
	case SettlementClosed:
		return next == SettlementDraft
	}
	return false
}

// Transition applies a lifecycle transition or returns a StateViolation
func (s *Settlement) Transition(next SettlementStatus) error {
	if !s.CanTransitionTo(next) {
		return NewStateViolation(fmt.Sprintf("illegal transition %s -> %s", s.Status, next)).
			WithDetail("settlement_id", s.ID)
	}
	s.Status = next
	return nil
}

// IsEditable reports whether lines may be recalculated or adjusted
func (s *Settlement) IsEditable() bool {
	return s.Status == SettlementDraft
}

// RequireEditable returns a StateViolation unless the settlement is in DRAFT
func (s *Settlement) RequireEditable() error {
	if s.IsEditable() {
		return nil
	}
	return NewStateViolation(fmt.Sprintf("settlement is %s and read-only", s.Status)).
		WithDetail("settlement_id", s.ID)
}

// RecomputeAggregates recalculates gross, withholdings and net from lines.
// withholdingRate is a fraction applied to the gross commission.
func (s *Settlement) RecomputeAggregates(lines []*SettlementLine, withholdingRate decimal.Decimal) {
	gross := decimal.Zero
	adjustments := decimal.Zero
	for _, line := range lines {
		gross = gross.Add(line.CommissionAmount)
		adjustments = adjustments.Add(line.AdjustmentTotal)
	}
	s.Gross = RoundMoney(gross)
	s.Withholdings = RoundMoney(gross.Mul(withholdingRate))
	s.Net = RoundMoney(s.Gross.Sub(s.Withholdings).Add(adjustments))
	s.LineCount = int32(len(lines))
}

// CheckTotals verifies net == gross - withholdings + sum(line adjustments)
// within one minor currency unit
func (s *Settlement) CheckTotals(lines []*SettlementLine) error {
	adjustments := decimal.Zero
	for _, line := range lines {
		adjustments = adjustments.Add(line.AdjustmentTotal)
	}
	expected := s.Gross.Sub(s.Withholdings).Add(adjustments)
	if !WithinTolerance(s.Net, expected) {
		return NewStateViolation("settlement totals do not reconcile").
			WithDetail("settlement_id", s.ID).
			WithDetail("net", s.Net.String()).
			WithDetail("expected", expected.String())
	}
	return nil
}

// SettlementLine is one allocation of a commission item into a settlement.
// Created once at build time, mutated only by adjustment ledger entries.
type SettlementLine struct {
	ID               string
	SettlementID     string
	CommissionItemID string
	Date             time.Time
	SourceKind       SourceKind
	Reference        string
	AgentID          string
	AgentName        string

	BaseAmount       decimal.Decimal
	AppliedRate      decimal.Decimal
	CommissionAmount decimal.Decimal
	AdjustmentTotal  decimal.Decimal
	NetAmount        decimal.Decimal

	// Adjustments is the ordered, append-only history for the line
	Adjustments []Adjustment
}

// CurrentNet is the line's commission amount plus its accumulated adjustments
func (l *SettlementLine) CurrentNet() decimal.Decimal {
	return RoundMoney(l.CommissionAmount.Add(l.AdjustmentTotal))
}

// Apply records an adjustment's impact on the line totals
func (l *SettlementLine) Apply(adj Adjustment) {
	l.Adjustments = append(l.Adjustments, adj)
	l.AdjustmentTotal = RoundMoney(l.AdjustmentTotal.Add(adj.Impact))
	l.NetAmount = l.CurrentNet()
}
