package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timeNowUTC() time.Time {
	return time.Now().UTC()
}

func TestNewAdjustment_Percent(t *testing.T) {
	tests := []struct {
		name       string
		value      decimal.Decimal
		currentNet decimal.Decimal
		impact     decimal.Decimal
	}{
		{name: "minus_ten_percent_of_100", value: decimal.NewFromInt(-10), currentNet: decimal.NewFromInt(100), impact: decimal.NewFromInt(-10)},
		{name: "five_percent_of_333_33", value: decimal.NewFromInt(5), currentNet: decimal.NewFromFloat(333.33), impact: decimal.NewFromFloat(16.67)},
		{name: "full_clawback", value: decimal.NewFromInt(-100), currentNet: decimal.NewFromFloat(76.50), impact: decimal.NewFromFloat(-76.50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := NewAdjustment("l-1", AdjustmentPercent, tt.value, tt.currentNet, "per commercial agreement", "ops", "")
			require.NoError(t, err)
			assert.True(t, tt.impact.Equal(adj.Impact), "impact = %s, want %s", adj.Impact, tt.impact)
		})
	}
}

func TestNewAdjustment_Absolute(t *testing.T) {
	adj, err := NewAdjustment("l-1", AdjustmentAbsolute, decimal.NewFromFloat(-25.005), decimal.NewFromInt(100), "duplicate fee refund", "ops", "receipt-44")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(-25.0).Equal(adj.Impact), "absolute impact rounds to minor unit, got %s", adj.Impact)
	assert.Equal(t, "receipt-44", adj.AttachmentRef)
}

func TestNewAdjustment_Validation(t *testing.T) {
	tests := []struct {
		name   string
		kind   AdjustmentKind
		value  decimal.Decimal
		reason string
	}{
		{name: "empty_reason", kind: AdjustmentAbsolute, value: decimal.NewFromInt(5), reason: ""},
		{name: "percent_above_ceiling", kind: AdjustmentPercent, value: decimal.NewFromInt(101), reason: "r"},
		{name: "percent_below_floor", kind: AdjustmentPercent, value: decimal.NewFromInt(-101), reason: "r"},
		{name: "unknown_kind", kind: AdjustmentKind("ratio"), value: decimal.NewFromInt(5), reason: "r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdjustment("l-1", tt.kind, tt.value, decimal.NewFromInt(100), tt.reason, "ops", "")
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01", p.String())
	assert.True(t, p.Contains(p.Start()))
	assert.False(t, p.Contains(p.End()))

	for _, bad := range []string{"", "2024", "2024-13", "2024-1", "01-2024", "2024-01-15"} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, "period %q should be rejected", bad)
	}
}

func TestPayout_AdvanceStatus(t *testing.T) {
	now := timeNowUTC()

	p := &Payout{ID: "p-1", Status: PayoutPending}
	err := p.AdvanceStatus(PayoutSent, nil)
	require.Error(t, err, "sent requires paid_at")
	assert.True(t, IsValidationError(err))
	assert.Equal(t, PayoutPending, p.Status)

	require.NoError(t, p.AdvanceStatus(PayoutSent, &now))
	assert.Equal(t, PayoutSent, p.Status)
	require.NotNil(t, p.PaidAt)

	require.NoError(t, p.AdvanceStatus(PayoutReconciled, nil))
	assert.Equal(t, PayoutReconciled, p.Status)

	err = p.AdvanceStatus(PayoutPending, nil)
	require.Error(t, err)
	assert.True(t, IsStateViolation(err))
}
