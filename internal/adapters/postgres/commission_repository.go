package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// CommissionItemRepository implements ports.CommissionItemRepository
type CommissionItemRepository struct {
	db ports.DBPort
}

// NewCommissionItemRepository creates a new commission item repository
func NewCommissionItemRepository(db ports.DBPort) *CommissionItemRepository {
	return &CommissionItemRepository{db: db}
}

func (r *CommissionItemRepository) q(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const commissionColumns = `id, office_id, team_id, agent_id, agent_name, origin, source_kind,
	reference, item_date, base_amount, rate, status`

// ListEligible returns items matching the filter that are still allocatable:
// never settled and never already referenced by a settlement line.
func (r *CommissionItemRepository) ListEligible(ctx context.Context, db ports.DBTX, filter ports.CommissionFilter) ([]*domain.CommissionItem, error) {
	sql := `SELECT ` + commissionColumns + ` FROM commission_items c
		WHERE c.status <> 'settled'
		AND NOT EXISTS (SELECT 1 FROM settlement_lines l WHERE l.commission_item_id = c.id)`
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		sql += fmt.Sprintf(" AND "+cond, len(args))
	}

	if filter.Period != "" {
		add("c.item_date >= $%d", filter.Period.Start())
		add("c.item_date < $%d", filter.Period.End())
	}
	switch filter.ScopeKind {
	case domain.ScopeOffice:
		add("c.office_id = $%d", filter.ScopeID)
	case domain.ScopeTeam:
		add("c.team_id = $%d", filter.ScopeID)
	case domain.ScopeAgent:
		add("c.agent_id = $%d", filter.ScopeID)
	}
	// mixed means both origins are in scope
	if filter.Origin != "" && filter.Origin != domain.OriginMixed {
		add("c.origin = $%d", string(filter.Origin))
	}
	if filter.OnlyApproved {
		add("c.status = $%d", string(domain.CommissionApproved))
	}
	sql += " ORDER BY c.item_date, c.id"

	rows, err := r.q(db).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list eligible commissions: %w", err)
	}
	defer rows.Close()

	return scanCommissionItems(rows)
}

// GetByIDs loads the given items in input-independent (date) order
func (r *CommissionItemRepository) GetByIDs(ctx context.Context, db ports.DBTX, ids []string) ([]*domain.CommissionItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q(db).Query(ctx,
		`SELECT `+commissionColumns+` FROM commission_items WHERE id = ANY($1) ORDER BY item_date, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("get commission items: %w", err)
	}
	defer rows.Close()

	return scanCommissionItems(rows)
}

// MarkSettled flips approved items to settled and reports how many rows were
// actually updated. A count below len(ids) means some item was already
// allocated and the caller must abort.
func (r *CommissionItemRepository) MarkSettled(ctx context.Context, tx ports.DBTX, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q(tx).Exec(ctx,
		`UPDATE commission_items SET status = 'settled' WHERE id = ANY($1) AND status = 'approved'`, ids)
	if err != nil {
		return 0, fmt.Errorf("mark commissions settled: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCommissionItems(rows pgx.Rows) ([]*domain.CommissionItem, error) {
	var items []*domain.CommissionItem
	for rows.Next() {
		var (
			item       domain.CommissionItem
			teamID     pgtype.Text
			agentName  pgtype.Text
			origin     string
			sourceKind string
			reference  pgtype.Text
			base       pgtype.Numeric
			rate       pgtype.Numeric
			status     string
		)
		if err := rows.Scan(&item.ID, &item.OfficeID, &teamID, &item.AgentID, &agentName,
			&origin, &sourceKind, &reference, &item.Date, &base, &rate, &status); err != nil {
			return nil, fmt.Errorf("scan commission item: %w", err)
		}
		item.TeamID = teamID.String
		item.AgentName = agentName.String
		item.Origin = domain.Origin(origin)
		item.SourceKind = domain.SourceKind(sourceKind)
		item.Reference = reference.String
		item.Status = domain.CommissionStatus(status)

		var err error
		if item.BaseAmount, err = decimalFromNumeric(base); err != nil {
			return nil, err
		}
		if item.Rate, err = decimalFromNumeric(rate); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
