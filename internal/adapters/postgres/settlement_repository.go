package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/pkg/observability"
)

// SettlementRepository implements ports.SettlementRepository over pgx
type SettlementRepository struct {
	db ports.DBPort
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db ports.DBPort) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) q(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const settlementColumns = `id, name, period, scope_kind, scope_id, scope_name, origin, status,
	gross, withholdings, net, line_count, version, created_by, notes, created_at, updated_at, closed_at`

// Create persists a settlement and its lines in one shot. Caller is expected
// to run it inside a transaction so a failed line insert leaves nothing.
func (r *SettlementRepository) Create(ctx context.Context, tx ports.DBTX, s *domain.Settlement, lines []*domain.SettlementLine) error {
	q := r.q(tx)

	gross, err := numericFromDecimal(s.Gross)
	if err != nil {
		return err
	}
	withholdings, err := numericFromDecimal(s.Withholdings)
	if err != nil {
		return err
	}
	net, err := numericFromDecimal(s.Net)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO settlements (id, name, period, scope_kind, scope_id, scope_name, origin, status,
			gross, withholdings, net, line_count, version, created_by, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.Name, string(s.Period), string(s.ScopeKind), s.ScopeID, nullText(s.ScopeName),
		string(s.Origin), string(s.Status), gross, withholdings, net, s.LineCount, s.Version,
		s.CreatedBy, nullText(s.Notes), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}

	for _, line := range lines {
		if err := r.insertLine(ctx, q, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *SettlementRepository) insertLine(ctx context.Context, q ports.DBTX, line *domain.SettlementLine) error {
	base, err := numericFromDecimal(line.BaseAmount)
	if err != nil {
		return err
	}
	rate, err := numericFromDecimal(line.AppliedRate)
	if err != nil {
		return err
	}
	commission, err := numericFromDecimal(line.CommissionAmount)
	if err != nil {
		return err
	}
	adjTotal, err := numericFromDecimal(line.AdjustmentTotal)
	if err != nil {
		return err
	}
	net, err := numericFromDecimal(line.NetAmount)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO settlement_lines (id, settlement_id, commission_item_id, line_date, source_kind,
			reference, agent_id, agent_name, base_amount, applied_rate, commission_amount,
			adjustment_total, net_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		line.ID, line.SettlementID, line.CommissionItemID, line.Date, string(line.SourceKind),
		nullText(line.Reference), line.AgentID, nullText(line.AgentName),
		base, rate, commission, adjTotal, net)
	if err != nil {
		return fmt.Errorf("insert settlement line: %w", err)
	}
	return nil
}

// GetByID retrieves a settlement by its id
func (r *SettlementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Settlement, error) {
	row := r.q(db).QueryRow(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id = $1`, id)
	s, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("settlement", id)
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return s, nil
}

func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	var (
		s            domain.Settlement
		period       string
		scopeKind    string
		scopeName    pgtype.Text
		origin       string
		status       string
		gross        pgtype.Numeric
		withholdings pgtype.Numeric
		net          pgtype.Numeric
		notes        pgtype.Text
		closedAt     pgtype.Timestamptz
	)
	if err := row.Scan(&s.ID, &s.Name, &period, &scopeKind, &s.ScopeID, &scopeName, &origin, &status,
		&gross, &withholdings, &net, &s.LineCount, &s.Version, &s.CreatedBy, &notes,
		&s.CreatedAt, &s.UpdatedAt, &closedAt); err != nil {
		return nil, err
	}

	s.Period = domain.Period(period)
	s.ScopeKind = domain.ScopeKind(scopeKind)
	s.ScopeName = scopeName.String
	s.Origin = domain.Origin(origin)
	s.Status = domain.SettlementStatus(status)
	s.Notes = notes.String
	s.ClosedAt = timePtr(closedAt)

	var err error
	if s.Gross, err = decimalFromNumeric(gross); err != nil {
		return nil, err
	}
	if s.Withholdings, err = decimalFromNumeric(withholdings); err != nil {
		return nil, err
	}
	if s.Net, err = decimalFromNumeric(net); err != nil {
		return nil, err
	}
	return &s, nil
}

// sortColumns whitelists sortable columns for List
var sortColumns = map[string]string{
	"created_at": "created_at",
	"period":     "period",
	"name":       "name",
	"net":        "net",
	"status":     "status",
}

// List returns a paginated, filtered settlement listing
func (r *SettlementRepository) List(ctx context.Context, db ports.DBTX, filter ports.SettlementFilter, page ports.PageRequest) (*ports.SettlementPage, error) {
	where, args := buildSettlementFilter(filter)

	q := r.q(db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM settlements`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count settlements: %w", err)
	}

	size := page.Size
	if size <= 0 {
		size = 25
	}
	if size > 200 {
		size = 200
	}
	pageNum := page.Page
	if pageNum < 1 {
		pageNum = 1
	}

	orderBy := "created_at DESC"
	if page.Sort != "" {
		field := page.Sort
		dir := "ASC"
		if strings.HasPrefix(field, "-") {
			field = field[1:]
			dir = "DESC"
		}
		if col, ok := sortColumns[field]; ok {
			orderBy = col + " " + dir
		}
	}

	args = append(args, size, (pageNum-1)*size)
	sql := fmt.Sprintf(`SELECT %s FROM settlements%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		settlementColumns, where, orderBy, len(args)-1, len(args))

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var items []*domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}

	totalPages := int32((total + int64(size) - 1) / int64(size))
	return &ports.SettlementPage{Items: items, Total: total, Page: pageNum, TotalPages: totalPages}, nil
}

func buildSettlementFilter(filter ports.SettlementFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Period != "" {
		add("period = $%d", filter.Period)
	}
	if filter.ScopeKind != "" {
		add("scope_kind = $%d", string(filter.ScopeKind))
	}
	if filter.ScopeID != "" {
		add("scope_id = $%d", filter.ScopeID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Origin != "" {
		add("origin = $%d", string(filter.Origin))
	}
	if filter.Query != "" {
		args = append(args, filter.Query)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE '%%' || $%d || '%%' OR notes ILIKE '%%' || $%d || '%%')", n, n))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListForClosure returns every settlement in the period/scope regardless of
// status so the orchestrator can validate and report each one
func (r *SettlementRepository) ListForClosure(ctx context.Context, db ports.DBTX, period domain.Period, scopeKind domain.ScopeKind, scopeID string) ([]*domain.Settlement, error) {
	sql := `SELECT ` + settlementColumns + ` FROM settlements WHERE period = $1`
	args := []interface{}{string(period)}
	if scopeKind != "" {
		args = append(args, string(scopeKind), scopeID)
		sql += ` AND scope_kind = $2 AND scope_id = $3`
	}
	sql += ` ORDER BY created_at`

	rows, err := r.q(db).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list settlements for closure: %w", err)
	}
	defer rows.Close()

	var items []*domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// Update writes mutable settlement fields with a version compare-and-swap
func (r *SettlementRepository) Update(ctx context.Context, tx ports.DBTX, s *domain.Settlement, expectedVersion int64) error {
	gross, err := numericFromDecimal(s.Gross)
	if err != nil {
		return err
	}
	withholdings, err := numericFromDecimal(s.Withholdings)
	if err != nil {
		return err
	}
	net, err := numericFromDecimal(s.Net)
	if err != nil {
		return err
	}

	tag, err := r.q(tx).Exec(ctx, `
		UPDATE settlements
		SET name = $1, notes = $2, gross = $3, withholdings = $4, net = $5,
			line_count = $6, updated_at = now(), version = version + 1
		WHERE id = $7 AND version = $8`,
		s.Name, nullText(s.Notes), gross, withholdings, net, s.LineCount, s.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, tx, s.ID)
	}
	s.Version = expectedVersion + 1
	return nil
}

// UpdateStatus transitions a settlement's lifecycle state with a version
// compare-and-swap
func (r *SettlementRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id string, status domain.SettlementStatus, closedAt *time.Time, expectedVersion int64) error {
	tag, err := r.q(tx).Exec(ctx, `
		UPDATE settlements
		SET status = $1, closed_at = $2, updated_at = now(), version = version + 1
		WHERE id = $3 AND version = $4`,
		string(status), nullTime(closedAt), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update settlement status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, tx, id)
	}
	return nil
}

// casFailure distinguishes a missing row from a lost version race
func (r *SettlementRepository) casFailure(ctx context.Context, tx ports.DBTX, id string) error {
	var exists bool
	if err := r.q(tx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM settlements WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check settlement existence: %w", err)
	}
	if !exists {
		return domain.NewNotFound("settlement", id)
	}
	observability.RecordVersionConflict()
	return domain.NewConcurrentModification("settlement", id)
}

const lineColumns = `id, settlement_id, commission_item_id, line_date, source_kind, reference,
	agent_id, agent_name, base_amount, applied_rate, commission_amount, adjustment_total, net_amount`

// ListLines returns a settlement's lines with their adjustment histories
func (r *SettlementRepository) ListLines(ctx context.Context, db ports.DBTX, settlementID string) ([]*domain.SettlementLine, error) {
	q := r.q(db)

	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM settlement_lines WHERE settlement_id = $1 ORDER BY line_date, id`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	var lines []*domain.SettlementLine
	byID := make(map[string]*domain.SettlementLine)
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, line)
		byID[line.ID] = line
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	if len(lines) == 0 {
		return lines, nil
	}

	adjRows, err := q.Query(ctx, `
		SELECT a.id, a.line_id, a.kind, a.value, a.impact, a.reason, a.attachment_ref, a.actor, a.created_at
		FROM adjustments a
		JOIN settlement_lines l ON l.id = a.line_id
		WHERE l.settlement_id = $1
		ORDER BY a.created_at, a.id`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer adjRows.Close()

	for adjRows.Next() {
		adj, err := scanAdjustment(adjRows)
		if err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		if line, ok := byID[adj.LineID]; ok {
			line.Adjustments = append(line.Adjustments, adj)
		}
	}
	return lines, adjRows.Err()
}

// GetLine retrieves a single line with its adjustment history
func (r *SettlementRepository) GetLine(ctx context.Context, db ports.DBTX, lineID string) (*domain.SettlementLine, error) {
	q := r.q(db)

	row := q.QueryRow(ctx, `SELECT `+lineColumns+` FROM settlement_lines WHERE id = $1`, lineID)
	line, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("settlement line", lineID)
		}
		return nil, fmt.Errorf("get line: %w", err)
	}

	adjRows, err := q.Query(ctx, `
		SELECT id, line_id, kind, value, impact, reason, attachment_ref, actor, created_at
		FROM adjustments WHERE line_id = $1 ORDER BY created_at, id`, lineID)
	if err != nil {
		return nil, fmt.Errorf("list line adjustments: %w", err)
	}
	defer adjRows.Close()

	for adjRows.Next() {
		adj, err := scanAdjustment(adjRows)
		if err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		line.Adjustments = append(line.Adjustments, adj)
	}
	return line, adjRows.Err()
}

func scanLine(row pgx.Row) (*domain.SettlementLine, error) {
	var (
		line       domain.SettlementLine
		sourceKind string
		reference  pgtype.Text
		agentName  pgtype.Text
		base       pgtype.Numeric
		rate       pgtype.Numeric
		commission pgtype.Numeric
		adjTotal   pgtype.Numeric
		net        pgtype.Numeric
	)
	if err := row.Scan(&line.ID, &line.SettlementID, &line.CommissionItemID, &line.Date, &sourceKind,
		&reference, &line.AgentID, &agentName, &base, &rate, &commission, &adjTotal, &net); err != nil {
		return nil, err
	}
	line.SourceKind = domain.SourceKind(sourceKind)
	line.Reference = reference.String
	line.AgentName = agentName.String

	var err error
	if line.BaseAmount, err = decimalFromNumeric(base); err != nil {
		return nil, err
	}
	if line.AppliedRate, err = decimalFromNumeric(rate); err != nil {
		return nil, err
	}
	if line.CommissionAmount, err = decimalFromNumeric(commission); err != nil {
		return nil, err
	}
	if line.AdjustmentTotal, err = decimalFromNumeric(adjTotal); err != nil {
		return nil, err
	}
	if line.NetAmount, err = decimalFromNumeric(net); err != nil {
		return nil, err
	}
	return &line, nil
}

func scanAdjustment(row pgx.Row) (domain.Adjustment, error) {
	var (
		adj           domain.Adjustment
		kind          string
		value         pgtype.Numeric
		impact        pgtype.Numeric
		attachmentRef pgtype.Text
	)
	if err := row.Scan(&adj.ID, &adj.LineID, &kind, &value, &impact, &adj.Reason, &attachmentRef, &adj.Actor, &adj.CreatedAt); err != nil {
		return adj, err
	}
	adj.Kind = domain.AdjustmentKind(kind)
	adj.AttachmentRef = attachmentRef.String

	var err error
	if adj.Value, err = decimalFromNumeric(value); err != nil {
		return adj, err
	}
	if adj.Impact, err = decimalFromNumeric(impact); err != nil {
		return adj, err
	}
	return adj, nil
}

// UpdateLineTotals writes a line's recomputed amounts
func (r *SettlementRepository) UpdateLineTotals(ctx context.Context, tx ports.DBTX, line *domain.SettlementLine) error {
	commission, err := numericFromDecimal(line.CommissionAmount)
	if err != nil {
		return err
	}
	adjTotal, err := numericFromDecimal(line.AdjustmentTotal)
	if err != nil {
		return err
	}
	net, err := numericFromDecimal(line.NetAmount)
	if err != nil {
		return err
	}

	tag, err := r.q(tx).Exec(ctx, `
		UPDATE settlement_lines
		SET commission_amount = $1, adjustment_total = $2, net_amount = $3
		WHERE id = $4`,
		commission, adjTotal, net, line.ID)
	if err != nil {
		return fmt.Errorf("update line totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("settlement line", line.ID)
	}
	return nil
}

// AppendAdjustment inserts an immutable adjustment ledger entry
func (r *SettlementRepository) AppendAdjustment(ctx context.Context, tx ports.DBTX, adj *domain.Adjustment) error {
	value, err := numericFromDecimal(adj.Value)
	if err != nil {
		return err
	}
	impact, err := numericFromDecimal(adj.Impact)
	if err != nil {
		return err
	}

	_, err = r.q(tx).Exec(ctx, `
		INSERT INTO adjustments (id, line_id, kind, value, impact, reason, attachment_ref, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		adj.ID, adj.LineID, string(adj.Kind), value, impact, adj.Reason,
		nullText(adj.AttachmentRef), adj.Actor, adj.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}
