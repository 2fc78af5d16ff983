package domain

import (
	"time"

	"github.com/realtyflow/settlement-engine/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// AdjustmentKind is the tagged discriminator for an adjustment's magnitude
type AdjustmentKind string

const (
	// AdjustmentAbsolute applies a fixed monetary delta
	AdjustmentAbsolute AdjustmentKind = "absolute"
	// AdjustmentPercent applies a percentage of the line's current net amount
	AdjustmentPercent AdjustmentKind = "percent"
)

// Adjustment is an immutable ledger entry attached to a settlement line.
// Entries are never edited or removed; reversing one requires appending an
// offsetting entry.
type Adjustment struct {
	ID            string
	LineID        string
	Kind          AdjustmentKind
	Value         decimal.Decimal
	Impact        decimal.Decimal
	Reason        string
	AttachmentRef string
	Actor         string
	CreatedAt     time.Time
}

var (
	percentFloor   = decimal.NewFromInt(-100)
	percentCeiling = decimal.NewFromInt(100)
	oneHundred     = decimal.NewFromInt(100)
)

// NewAdjustment validates the entry and computes its monetary impact against
// the line's current net amount. Percent magnitudes must lie in [-100, 100]
// and the justification text is mandatory.
func NewAdjustment(lineID string, kind AdjustmentKind, value decimal.Decimal, currentNet decimal.Decimal, reason, actor, attachmentRef string) (Adjustment, error) {
	if reason == "" {
		return Adjustment{}, NewValidationError("reason", "adjustment reason is required")
	}

	var impact decimal.Decimal
	switch kind {
	case AdjustmentAbsolute:
		impact = RoundMoney(value)
	case AdjustmentPercent:
		if value.LessThan(percentFloor) || value.GreaterThan(percentCeiling) {
			return Adjustment{}, NewValidationError("value", "percent adjustment must be within [-100, 100]")
		}
		impact = RoundMoney(currentNet.Mul(value).Div(oneHundred))
	default:
		return Adjustment{}, NewValidationError("kind", "adjustment kind must be absolute or percent")
	}

	return Adjustment{
		LineID:        lineID,
		Kind:          kind,
		Value:         value,
		Impact:        impact,
		Reason:        reason,
		AttachmentRef: attachmentRef,
		Actor:         actor,
		CreatedAt:     timeutil.Now(),
	}, nil
}
