package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// PayoutRepository implements ports.PayoutRepository
type PayoutRepository struct {
	db ports.DBPort
}

// NewPayoutRepository creates a new payout repository
func NewPayoutRepository(db ports.DBPort) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) q(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const payoutColumns = `id, settlement_id, agent_id, agent_name, gross, withholdings, net,
	method, status, bank_ref, receipt_ref, paid_at, created_at, updated_at`

// Create inserts a new payout
func (r *PayoutRepository) Create(ctx context.Context, tx ports.DBTX, p *domain.Payout) error {
	gross, err := numericFromDecimal(p.Gross)
	if err != nil {
		return err
	}
	withholdings, err := numericFromDecimal(p.Withholdings)
	if err != nil {
		return err
	}
	net, err := numericFromDecimal(p.Net)
	if err != nil {
		return err
	}

	_, err = r.q(tx).Exec(ctx, `
		INSERT INTO payouts (id, settlement_id, agent_id, agent_name, gross, withholdings, net,
			method, status, bank_ref, receipt_ref, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.SettlementID, p.AgentID, nullText(p.AgentName), gross, withholdings, net,
		string(p.Method), string(p.Status), nullText(p.BankRef), nullText(p.ReceiptRef),
		nullTime(p.PaidAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID retrieves a payout by id
func (r *PayoutRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Payout, error) {
	row := r.q(db).QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("payout", id)
		}
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return p, nil
}

// ListBySettlement returns all payouts for a settlement, oldest first
func (r *PayoutRepository) ListBySettlement(ctx context.Context, db ports.DBTX, settlementID string) ([]*domain.Payout, error) {
	rows, err := r.q(db).Query(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE settlement_id = $1 ORDER BY created_at, agent_id`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// UpdateStatus persists a payout's reconciliation state
func (r *PayoutRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, p *domain.Payout) error {
	tag, err := r.q(tx).Exec(ctx, `
		UPDATE payouts
		SET status = $1, paid_at = $2, bank_ref = $3, receipt_ref = $4, updated_at = now()
		WHERE id = $5`,
		string(p.Status), nullTime(p.PaidAt), nullText(p.BankRef), nullText(p.ReceiptRef), p.ID)
	if err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("payout", p.ID)
	}
	return nil
}

// MarkSuperseded invalidates pending payouts replaced by regeneration
func (r *PayoutRepository) MarkSuperseded(ctx context.Context, tx ports.DBTX, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q(tx).Exec(ctx,
		`UPDATE payouts SET status = 'superseded', updated_at = now() WHERE id = ANY($1) AND status = 'pending'`, ids)
	if err != nil {
		return fmt.Errorf("mark payouts superseded: %w", err)
	}
	return nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var (
		p            domain.Payout
		agentName    pgtype.Text
		gross        pgtype.Numeric
		withholdings pgtype.Numeric
		net          pgtype.Numeric
		method       string
		status       string
		bankRef      pgtype.Text
		receiptRef   pgtype.Text
		paidAt       pgtype.Timestamptz
	)
	if err := row.Scan(&p.ID, &p.SettlementID, &p.AgentID, &agentName, &gross, &withholdings, &net,
		&method, &status, &bankRef, &receiptRef, &paidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.AgentName = agentName.String
	p.Method = domain.PayoutMethod(method)
	p.Status = domain.PayoutStatus(status)
	p.BankRef = bankRef.String
	p.ReceiptRef = receiptRef.String
	p.PaidAt = timePtr(paidAt)

	var err error
	if p.Gross, err = decimalFromNumeric(gross); err != nil {
		return nil, err
	}
	if p.Withholdings, err = decimalFromNumeric(withholdings); err != nil {
		return nil, err
	}
	if p.Net, err = decimalFromNumeric(net); err != nil {
		return nil, err
	}
	return &p, nil
}
