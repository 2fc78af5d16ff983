package ports

import (
	"context"
	"time"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountingEntry is the journal record emitted when a settlement closes
// with createAccountingEntry enabled
type AccountingEntry struct {
	SettlementID   string
	SettlementName string
	Period         domain.Period
	Description    string
	Amount         decimal.Decimal
	PostedAt       time.Time
}

// AccountingGateway delivers accounting entries to the downstream ledger.
// Failures are transient from the engine's point of view and abort closure.
type AccountingGateway interface {
	CreateEntry(ctx context.Context, entry AccountingEntry) error
}

// ReopenAuthorizer gates the CLOSED -> DRAFT reopen transition
type ReopenAuthorizer interface {
	AuthorizeReopen(ctx context.Context, actor, settlementID string) error
}
