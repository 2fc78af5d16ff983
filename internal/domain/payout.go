package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus represents the reconciliation state of a payout
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutSent       PayoutStatus = "sent"
	PayoutReconciled PayoutStatus = "reconciled"
	// PayoutSuperseded marks a pending payout invalidated by regeneration
	// after the underlying lines changed
	PayoutSuperseded PayoutStatus = "superseded"
)

// PayoutMethod represents how a payout is disbursed
type PayoutMethod string

const (
	PayoutTransfer PayoutMethod = "transfer"
	PayoutCash     PayoutMethod = "cash"
	PayoutOther    PayoutMethod = "other"
)

// ValidPayoutMethod reports whether m is a known payout method
func ValidPayoutMethod(m PayoutMethod) bool {
	switch m {
	case PayoutTransfer, PayoutCash, PayoutOther:
		return true
	}
	return false
}

// Payout is the money owed to one agent from one settlement
type Payout struct {
	ID           string
	SettlementID string
	AgentID      string
	AgentName    string

	Gross        decimal.Decimal
	Withholdings decimal.Decimal
	Net          decimal.Decimal

	Method     PayoutMethod
	Status     PayoutStatus
	BankRef    string
	ReceiptRef string
	PaidAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AdvanceStatus validates and applies a reconciliation status change.
// pending→sent requires a paid-at timestamp; sent→reconciled is the only
// other legal advance.
func (p *Payout) AdvanceStatus(next PayoutStatus, paidAt *time.Time) error {
	switch {
	case p.Status == PayoutPending && next == PayoutSent:
		if paidAt == nil {
			return NewValidationError("paid_at", "paid_at is required when marking a payout sent")
		}
		p.Status = PayoutSent
		p.PaidAt = paidAt
	case p.Status == PayoutSent && next == PayoutReconciled:
		p.Status = PayoutReconciled
	default:
		return NewStateViolation(fmt.Sprintf("illegal payout transition %s -> %s", p.Status, next)).
			WithDetail("payout_id", p.ID)
	}
	return nil
}

// Settled reports whether money has already moved for this payout
func (p *Payout) Settled() bool {
	return p.Status == PayoutSent || p.Status == PayoutReconciled
}
