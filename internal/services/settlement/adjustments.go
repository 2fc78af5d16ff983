package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/pkg/observability"
	"github.com/shopspring/decimal"
)

func decimalFromString(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, domain.NewValidationError(field, field+" is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, "not a valid decimal number")
	}
	return d, nil
}

// AdjustmentRequest is one manual correction against a settlement line
type AdjustmentRequest struct {
	Kind          domain.AdjustmentKind
	Value         string
	Reason        string
	Actor         string
	AttachmentRef string
}

// ApplyAdjustment appends an adjustment to a line's ledger and cascades the
// new totals up to the settlement, guarded by the settlement version.
// Adjustments are never edited or deleted; a correction is a new entry.
func (s *Service) ApplyAdjustment(ctx context.Context, settlementID, lineID string, req AdjustmentRequest) (*domain.SettlementLine, error) {
	settlement, err := s.settlements.GetByID(ctx, nil, settlementID)
	if err != nil {
		return nil, err
	}
	if err := settlement.RequireEditable(); err != nil {
		return nil, err
	}

	line, err := s.settlements.GetLine(ctx, nil, lineID)
	if err != nil {
		return nil, err
	}
	if line.SettlementID != settlementID {
		return nil, domain.NewNotFound("settlement line", lineID)
	}

	value, err := decimalFromString("value", req.Value)
	if err != nil {
		return nil, err
	}

	adj, err := domain.NewAdjustment(lineID, req.Kind, value, line.CurrentNet(), req.Reason, req.Actor, req.AttachmentRef)
	if err != nil {
		return nil, err
	}
	adj.ID = uuid.New().String()
	line.Apply(adj)

	lines, err := s.settlements.ListLines(ctx, nil, settlementID)
	if err != nil {
		return nil, err
	}
	for i, l := range lines {
		if l.ID == lineID {
			lines[i] = line
		}
	}
	settlement.RecomputeAggregates(lines, s.policy.WithholdingRate)

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.settlements.AppendAdjustment(ctx, tx, &adj); err != nil {
			return err
		}
		if err := s.settlements.UpdateLineTotals(ctx, tx, line); err != nil {
			return err
		}
		if err := s.settlements.Update(ctx, tx, settlement, settlement.Version); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, settlementID, domain.AuditLineAdjusted, req.Actor, map[string]interface{}{
			"line_id": lineID,
			"kind":    string(req.Kind),
			"value":   value.String(),
			"impact":  adj.Impact.String(),
			"reason":  req.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	observability.RecordAdjustmentApplied(string(req.Kind))
	s.logger.Info("adjustment applied",
		ports.String("settlement_id", settlementID),
		ports.String("line_id", lineID),
		ports.String("impact", adj.Impact.String()),
		ports.String("actor", req.Actor))
	return line, nil
}
