package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus represents the allocation state of a commission item
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionApproved CommissionStatus = "approved"
	CommissionSettled  CommissionStatus = "settled"
)

// Origin represents the business origin of a commission
type Origin string

const (
	OriginSale   Origin = "sale"
	OriginRental Origin = "rental"
	OriginMixed  Origin = "mixed"
)

// ValidOrigin reports whether o is a known origin value
func ValidOrigin(o Origin) bool {
	switch o {
	case OriginSale, OriginRental, OriginMixed:
		return true
	}
	return false
}

// SourceKind represents the transaction stage a commission item was earned at
type SourceKind string

const (
	SourceOffer       SourceKind = "offer"
	SourceReservation SourceKind = "reservation"
	SourceContract    SourceKind = "contract"
	SourceCollection  SourceKind = "collection"
)

// CommissionItem is an eligible commission record supplied by the catalog.
// The engine reads items and flips approved items to settled exactly once,
// inside the transaction that closes the owning settlement.
type CommissionItem struct {
	ID         string
	OfficeID   string
	TeamID     string
	AgentID    string
	AgentName  string
	Origin     Origin
	SourceKind SourceKind
	Reference  string
	Date       time.Time
	BaseAmount decimal.Decimal
	Rate       decimal.Decimal // fraction, e.g. 0.03 for 3%
	Status     CommissionStatus
}

// Eligible reports whether the item can still be allocated into a settlement
func (c *CommissionItem) Eligible(onlyApproved bool) bool {
	if c.Status == CommissionSettled {
		return false
	}
	if onlyApproved {
		return c.Status == CommissionApproved
	}
	return true
}
