package settlement

import (
	"sort"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// Policy holds the withholding policy applied when aggregating commissions
type Policy struct {
	WithholdingRate decimal.Decimal
}

// DefaultPolicy applies the brokerage's standard 15% withholding
func DefaultPolicy() Policy {
	return Policy{WithholdingRate: decimal.NewFromFloat(0.15)}
}

// AgentTotals is the per-agent preview produced by the calculation stage
type AgentTotals struct {
	AgentID      string
	AgentName    string
	LineCount    int
	Gross        decimal.Decimal
	Withholdings decimal.Decimal
	Net          decimal.Decimal
}

// Calculation is the derivational output of wizard stage 3. It mutates
// nothing; lines are not persisted until finalize.
type Calculation struct {
	Lines        []*domain.SettlementLine
	Gross        decimal.Decimal
	Withholdings decimal.Decimal
	Net          decimal.Decimal
	PerAgent     []AgentTotals
}

// Calculate derives settlement lines and aggregates from the selected
// commission items: commission = base x rate, withholding = gross x policy
// rate, everything rounded to the minor currency unit.
func Calculate(items []*domain.CommissionItem, policy Policy) *Calculation {
	calc := &Calculation{
		Gross:        decimal.Zero,
		Withholdings: decimal.Zero,
		Net:          decimal.Zero,
	}

	byAgent := make(map[string]*AgentTotals)
	for _, item := range items {
		commission := domain.RoundMoney(item.BaseAmount.Mul(item.Rate))
		line := &domain.SettlementLine{
			CommissionItemID: item.ID,
			Date:             item.Date,
			SourceKind:       item.SourceKind,
			Reference:        item.Reference,
			AgentID:          item.AgentID,
			AgentName:        item.AgentName,
			BaseAmount:       item.BaseAmount,
			AppliedRate:      item.Rate,
			CommissionAmount: commission,
			AdjustmentTotal:  decimal.Zero,
			NetAmount:        commission,
		}
		calc.Lines = append(calc.Lines, line)
		calc.Gross = calc.Gross.Add(commission)

		totals, ok := byAgent[item.AgentID]
		if !ok {
			totals = &AgentTotals{
				AgentID:      item.AgentID,
				AgentName:    item.AgentName,
				Gross:        decimal.Zero,
				Withholdings: decimal.Zero,
				Net:          decimal.Zero,
			}
			byAgent[item.AgentID] = totals
		}
		totals.LineCount++
		totals.Gross = totals.Gross.Add(commission)
	}

	calc.Gross = domain.RoundMoney(calc.Gross)
	calc.Withholdings = domain.RoundMoney(calc.Gross.Mul(policy.WithholdingRate))
	calc.Net = domain.RoundMoney(calc.Gross.Sub(calc.Withholdings))

	for _, totals := range byAgent {
		totals.Withholdings = domain.RoundMoney(totals.Gross.Mul(policy.WithholdingRate))
		totals.Net = domain.RoundMoney(totals.Gross.Sub(totals.Withholdings))
		calc.PerAgent = append(calc.PerAgent, *totals)
	}
	sort.Slice(calc.PerAgent, func(i, j int) bool {
		return calc.PerAgent[i].AgentID < calc.PerAgent[j].AgentID
	})

	return calc
}
