package domain

import (
	"time"

	"github.com/realtyflow/settlement-engine/pkg/timeutil"
)

// AuditAction identifies the structural mutation an audit entry records
type AuditAction string

const (
	AuditCreated          AuditAction = "CREATED"
	AuditUpdated          AuditAction = "UPDATED"
	AuditRecalculated     AuditAction = "RECALCULATED"
	AuditLineAdjusted     AuditAction = "LINE_ADJUSTED"
	AuditStatusChanged    AuditAction = "STATUS_CHANGED"
	AuditReopened         AuditAction = "REOPENED"
	AuditPayoutsGenerated AuditAction = "PAYOUTS_GENERATED"
	AuditExported         AuditAction = "EXPORTED"
)

// AuditEntry is an immutable, time-ordered record of one settlement mutation.
// Entries are append-only and the sole mechanism for reconstructing why a
// settlement's totals changed.
type AuditEntry struct {
	ID           string
	SettlementID string
	Action       AuditAction
	Actor        string
	Detail       map[string]interface{}
	CreatedAt    time.Time
}

// NewAuditEntry builds an entry stamped with the current time
func NewAuditEntry(settlementID string, action AuditAction, actor string, detail map[string]interface{}) *AuditEntry {
	if detail == nil {
		detail = make(map[string]interface{})
	}
	return &AuditEntry{
		SettlementID: settlementID,
		Action:       action,
		Actor:        actor,
		Detail:       detail,
		CreatedAt:    timeutil.Now(),
	}
}
