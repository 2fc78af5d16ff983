package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// AuditRepository implements the append-only ports.AuditRepository
type AuditRepository struct {
	db ports.DBPort
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db ports.DBPort) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) q(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Append inserts an immutable audit entry
func (r *AuditRepository) Append(ctx context.Context, tx ports.DBTX, entry *domain.AuditEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}

	_, err = r.q(tx).Exec(ctx, `
		INSERT INTO audit_entries (id, settlement_id, action, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.SettlementID, string(entry.Action), entry.Actor, detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListBySettlement returns a settlement's audit trail in time order
func (r *AuditRepository) ListBySettlement(ctx context.Context, db ports.DBTX, settlementID string) ([]*domain.AuditEntry, error) {
	rows, err := r.q(db).Query(ctx, `
		SELECT id, settlement_id, action, actor, detail, created_at
		FROM audit_entries WHERE settlement_id = $1 ORDER BY created_at, id`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			entry  domain.AuditEntry
			action string
			detail []byte
		)
		if err := rows.Scan(&entry.ID, &entry.SettlementID, &action, &entry.Actor, &detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = domain.AuditAction(action)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
