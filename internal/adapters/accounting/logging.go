package accounting

import (
	"context"

	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// LoggingGateway is a stand-in accounting gateway that records entries to the
// structured log. Deployments with a real ledger replace it behind the same
// port.
type LoggingGateway struct {
	logger ports.Logger
}

// NewLoggingGateway creates a logging accounting gateway
func NewLoggingGateway(logger ports.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger}
}

// CreateEntry logs the accounting entry
func (g *LoggingGateway) CreateEntry(ctx context.Context, entry ports.AccountingEntry) error {
	g.logger.Info("accounting entry emitted",
		ports.String("settlement_id", entry.SettlementID),
		ports.String("period", entry.Period.String()),
		ports.String("amount", entry.Amount.String()),
		ports.String("description", entry.Description))
	return nil
}
