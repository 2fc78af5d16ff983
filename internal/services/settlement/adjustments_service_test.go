package settlement_test

import (
	"context"
	"testing"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/services/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func adjustableLine() *domain.SettlementLine {
	return &domain.SettlementLine{
		ID:               "l-1",
		SettlementID:     "s-1",
		CommissionItemID: "c-1",
		BaseAmount:       decimal.RequireFromString("1000"),
		AppliedRate:      decimal.RequireFromString("0.1"),
		CommissionAmount: decimal.RequireFromString("100"),
		AdjustmentTotal:  decimal.Zero,
		NetAmount:        decimal.RequireFromString("100"),
	}
}

func TestApplyAdjustment_PercentOfCurrentNet(t *testing.T) {
	f := newFixture()
	s := draftSettlement("s-1")
	line := adjustableLine()
	f.settlements.On("GetByID", mock.Anything, nil, "s-1").Return(s, nil)
	f.settlements.On("GetLine", mock.Anything, nil, "l-1").Return(line, nil)
	f.settlements.On("ListLines", mock.Anything, nil, "s-1").Return([]*domain.SettlementLine{line}, nil)
	f.settlements.On("AppendAdjustment", mock.Anything, mock.Anything, mock.MatchedBy(func(a *domain.Adjustment) bool {
		return a.LineID == "l-1" && a.Impact.Equal(decimal.RequireFromString("-10"))
	})).Return(nil)
	f.settlements.On("UpdateLineTotals", mock.Anything, mock.Anything, line).Return(nil)
	f.settlements.On("Update", mock.Anything, mock.Anything, s, int64(3)).Return(nil)
	f.audit.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *domain.AuditEntry) bool {
		return e.Action == domain.AuditLineAdjusted && e.Detail["line_id"] == "l-1"
	})).Return(nil)

	got, err := f.svc.ApplyAdjustment(context.Background(), "s-1", "l-1", settlement.AdjustmentRequest{
		Kind:   domain.AdjustmentPercent,
		Value:  "-10",
		Reason: "shared referral fee",
		Actor:  "ops",
	})

	require.NoError(t, err)
	assert.True(t, got.NetAmount.Equal(decimal.RequireFromString("90")))
	require.Len(t, got.Adjustments, 1)
	f.settlements.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestApplyAdjustment_RequiresReason(t *testing.T) {
	f := newFixture()
	s := draftSettlement("s-1")
	f.settlements.On("GetByID", mock.Anything, nil, "s-1").Return(s, nil)
	f.settlements.On("GetLine", mock.Anything, nil, "l-1").Return(adjustableLine(), nil)

	_, err := f.svc.ApplyAdjustment(context.Background(), "s-1", "l-1", settlement.AdjustmentRequest{
		Kind:  domain.AdjustmentAbsolute,
		Value: "-25",
		Actor: "ops",
	})

	assert.True(t, domain.IsValidationError(err))
	f.settlements.AssertNotCalled(t, "AppendAdjustment", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyAdjustment_RejectsNonDraft(t *testing.T) {
	f := newFixture()
	s := draftSettlement("s-1")
	s.Status = domain.SettlementClosed
	f.settlements.On("GetByID", mock.Anything, nil, "s-1").Return(s, nil)

	_, err := f.svc.ApplyAdjustment(context.Background(), "s-1", "l-1", settlement.AdjustmentRequest{
		Kind:   domain.AdjustmentAbsolute,
		Value:  "-25",
		Reason: "clawback",
		Actor:  "ops",
	})

	assert.True(t, domain.IsStateViolation(err))
}

func TestApplyAdjustment_RejectsForeignLine(t *testing.T) {
	f := newFixture()
	s := draftSettlement("s-1")
	line := adjustableLine()
	line.SettlementID = "s-2"
	f.settlements.On("GetByID", mock.Anything, nil, "s-1").Return(s, nil)
	f.settlements.On("GetLine", mock.Anything, nil, "l-1").Return(line, nil)

	_, err := f.svc.ApplyAdjustment(context.Background(), "s-1", "l-1", settlement.AdjustmentRequest{
		Kind:   domain.AdjustmentAbsolute,
		Value:  "-25",
		Reason: "clawback",
		Actor:  "ops",
	})

	assert.True(t, domain.IsNotFoundError(err))
}

func TestApplyAdjustment_RejectsBadValue(t *testing.T) {
	f := newFixture()
	s := draftSettlement("s-1")
	f.settlements.On("GetByID", mock.Anything, nil, "s-1").Return(s, nil)
	f.settlements.On("GetLine", mock.Anything, nil, "l-1").Return(adjustableLine(), nil)

	for _, value := range []string{"", "abc", "--5"} {
		_, err := f.svc.ApplyAdjustment(context.Background(), "s-1", "l-1", settlement.AdjustmentRequest{
			Kind:   domain.AdjustmentAbsolute,
			Value:  value,
			Reason: "clawback",
			Actor:  "ops",
		})
		assert.True(t, domain.IsValidationError(err), "value %q", value)
	}
}

func TestApplyAdjustment_PercentBounds(t *testing.T) {
	f := newFixture()
	s := draftSettlement("s-1")
	f.settlements.On("GetByID", mock.Anything, nil, "s-1").Return(s, nil)
	f.settlements.On("GetLine", mock.Anything, nil, "l-1").Return(adjustableLine(), nil)

	_, err := f.svc.ApplyAdjustment(context.Background(), "s-1", "l-1", settlement.AdjustmentRequest{
		Kind:   domain.AdjustmentPercent,
		Value:  "150",
		Reason: "bonus",
		Actor:  "ops",
	})

	assert.True(t, domain.IsValidationError(err))
}
