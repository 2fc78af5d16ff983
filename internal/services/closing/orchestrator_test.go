package closing_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/internal/services/closing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubDB struct{}

func (stubDB) GetDB() *pgxpool.Pool { return nil }

func (stubDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (stubDB) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...ports.Field)  {}
func (nopLogger) Error(string, ...ports.Field) {}
func (nopLogger) Warn(string, ...ports.Field)  {}
func (nopLogger) Debug(string, ...ports.Field) {}

type MockSettlementRepo struct {
	mock.Mock
}

func (m *MockSettlementRepo) Create(ctx context.Context, tx ports.DBTX, s *domain.Settlement, lines []*domain.SettlementLine) error {
	args := m.Called(ctx, tx, s, lines)
	return args.Error(0)
}

func (m *MockSettlementRepo) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Settlement, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}

func (m *MockSettlementRepo) List(ctx context.Context, db ports.DBTX, filter ports.SettlementFilter, page ports.PageRequest) (*ports.SettlementPage, error) {
	args := m.Called(ctx, db, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.SettlementPage), args.Error(1)
}

func (m *MockSettlementRepo) ListForClosure(ctx context.Context, db ports.DBTX, period domain.Period, scopeKind domain.ScopeKind, scopeID string) ([]*domain.Settlement, error) {
	args := m.Called(ctx, db, period, scopeKind, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Settlement), args.Error(1)
}

func (m *MockSettlementRepo) Update(ctx context.Context, tx ports.DBTX, s *domain.Settlement, expectedVersion int64) error {
	args := m.Called(ctx, tx, s, expectedVersion)
	return args.Error(0)
}

func (m *MockSettlementRepo) UpdateStatus(ctx context.Context, tx ports.DBTX, id string, status domain.SettlementStatus, closedAt *time.Time, expectedVersion int64) error {
	args := m.Called(ctx, tx, id, status, closedAt, expectedVersion)
	return args.Error(0)
}

func (m *MockSettlementRepo) ListLines(ctx context.Context, db ports.DBTX, settlementID string) ([]*domain.SettlementLine, error) {
	args := m.Called(ctx, db, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SettlementLine), args.Error(1)
}

func (m *MockSettlementRepo) GetLine(ctx context.Context, db ports.DBTX, lineID string) (*domain.SettlementLine, error) {
	args := m.Called(ctx, db, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementLine), args.Error(1)
}

func (m *MockSettlementRepo) UpdateLineTotals(ctx context.Context, tx ports.DBTX, line *domain.SettlementLine) error {
	args := m.Called(ctx, tx, line)
	return args.Error(0)
}

func (m *MockSettlementRepo) AppendAdjustment(ctx context.Context, tx ports.DBTX, adj *domain.Adjustment) error {
	args := m.Called(ctx, tx, adj)
	return args.Error(0)
}

type MockCommissionRepo struct {
	mock.Mock
}

func (m *MockCommissionRepo) ListEligible(ctx context.Context, db ports.DBTX, filter ports.CommissionFilter) ([]*domain.CommissionItem, error) {
	args := m.Called(ctx, db, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CommissionItem), args.Error(1)
}

func (m *MockCommissionRepo) GetByIDs(ctx context.Context, db ports.DBTX, ids []string) ([]*domain.CommissionItem, error) {
	args := m.Called(ctx, db, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CommissionItem), args.Error(1)
}

func (m *MockCommissionRepo) MarkSettled(ctx context.Context, tx ports.DBTX, ids []string) (int64, error) {
	args := m.Called(ctx, tx, ids)
	return args.Get(0).(int64), args.Error(1)
}

type MockAuditRepo struct {
	mock.Mock
}

func (m *MockAuditRepo) Append(ctx context.Context, tx ports.DBTX, entry *domain.AuditEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

func (m *MockAuditRepo) ListBySettlement(ctx context.Context, db ports.DBTX, settlementID string) ([]*domain.AuditEntry, error) {
	args := m.Called(ctx, db, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AuditEntry), args.Error(1)
}

type MockAccounting struct {
	mock.Mock
}

func (m *MockAccounting) CreateEntry(ctx context.Context, entry ports.AccountingEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type fixture struct {
	settlements *MockSettlementRepo
	commissions *MockCommissionRepo
	audit       *MockAuditRepo
	accounting  *MockAccounting
	orch        *closing.Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		settlements: new(MockSettlementRepo),
		commissions: new(MockCommissionRepo),
		audit:       new(MockAuditRepo),
		accounting:  new(MockAccounting),
	}
	f.orch = closing.NewOrchestrator(stubDB{}, f.settlements, f.commissions, f.audit, f.accounting, nopLogger{})
	return f
}

func approved(id string, net string) *domain.Settlement {
	n := decimal.RequireFromString(net)
	return &domain.Settlement{
		ID:        id,
		Name:      "settlement " + id,
		Period:    domain.Period("2024-01"),
		ScopeKind: domain.ScopeOffice,
		ScopeID:   "office-1",
		Status:    domain.SettlementApproved,
		Gross:     n,
		Net:       n,
		Version:   2,
	}
}

func consistentLines(settlementID string, itemID string, amount string) []*domain.SettlementLine {
	a := decimal.RequireFromString(amount)
	return []*domain.SettlementLine{{
		ID: "l-" + itemID, SettlementID: settlementID, CommissionItemID: itemID,
		CommissionAmount: a, AdjustmentTotal: decimal.Zero, NetAmount: a,
	}}
}

func boolPtr(b bool) *bool { return &b }

func TestClosePeriod_DryRunReportsWithoutCommitting(t *testing.T) {
	f := newFixture()
	s1 := approved("s-1", "100")
	draft := approved("s-2", "50")
	draft.Status = domain.SettlementDraft
	f.settlements.On("ListForClosure", mock.Anything, nil, domain.Period("2024-01"), domain.ScopeKind(""), "").
		Return([]*domain.Settlement{s1, draft}, nil)
	f.settlements.On("ListLines", mock.Anything, nil, "s-1").Return(consistentLines("s-1", "c-1", "100"), nil)

	result, err := f.orch.ClosePeriod(context.Background(), closing.Request{
		Period: "2024-01",
		Actor:  "ops",
	})

	require.NoError(t, err)
	assert.False(t, result.Committed)
	assert.Len(t, result.Closed, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "s-2", result.Skipped[0].ID)
	f.settlements.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClosePeriod_CommitsAllApproved(t *testing.T) {
	f := newFixture()
	s1 := approved("s-1", "100")
	s2 := approved("s-2", "200")
	f.settlements.On("ListForClosure", mock.Anything, nil, domain.Period("2024-01"), domain.ScopeKind(""), "").
		Return([]*domain.Settlement{s1, s2}, nil)
	f.settlements.On("ListLines", mock.Anything, nil, "s-1").Return(consistentLines("s-1", "c-1", "100"), nil)
	f.settlements.On("ListLines", mock.Anything, nil, "s-2").Return(consistentLines("s-2", "c-2", "200"), nil)
	f.settlements.On("UpdateStatus", mock.Anything, mock.Anything, "s-1", domain.SettlementClosed, mock.Anything, int64(2)).Return(nil)
	f.settlements.On("UpdateStatus", mock.Anything, mock.Anything, "s-2", domain.SettlementClosed, mock.Anything, int64(2)).Return(nil)
	f.commissions.On("MarkSettled", mock.Anything, mock.Anything, []string{"c-1"}).Return(int64(1), nil)
	f.commissions.On("MarkSettled", mock.Anything, mock.Anything, []string{"c-2"}).Return(int64(1), nil)
	f.audit.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *domain.AuditEntry) bool {
		return e.Action == domain.AuditStatusChanged
	})).Return(nil)
	f.accounting.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e ports.AccountingEntry) bool {
		return e.Amount.Equal(decimal.RequireFromString("300"))
	})).Return(nil)

	result, err := f.orch.ClosePeriod(context.Background(), closing.Request{
		Period:                "2024-01",
		Confirm:               true,
		CreateAccountingEntry: boolPtr(true),
		Actor:                 "ops",
	})

	require.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Len(t, result.Closed, 2)
	assert.Equal(t, domain.SettlementClosed, s1.Status)
	assert.Equal(t, domain.SettlementClosed, s2.Status)
	f.settlements.AssertExpectations(t)
	f.commissions.AssertExpectations(t)
	f.accounting.AssertExpectations(t)
}

func TestClosePeriod_ConfirmRequiresExplicitAccountingChoice(t *testing.T) {
	f := newFixture()

	_, err := f.orch.ClosePeriod(context.Background(), closing.Request{
		Period:  "2024-01",
		Confirm: true,
		Actor:   "ops",
	})

	assert.True(t, domain.IsValidationError(err))
}

func TestClosePeriod_RejectsInconsistentTotals(t *testing.T) {
	f := newFixture()
	s1 := approved("s-1", "100")
	s1.Net = decimal.RequireFromString("95") // does not reconcile with lines
	f.settlements.On("ListForClosure", mock.Anything, nil, domain.Period("2024-01"), domain.ScopeKind(""), "").
		Return([]*domain.Settlement{s1}, nil)
	f.settlements.On("ListLines", mock.Anything, nil, "s-1").Return(consistentLines("s-1", "c-1", "100"), nil)

	_, err := f.orch.ClosePeriod(context.Background(), closing.Request{
		Period:                "2024-01",
		Confirm:               true,
		CreateAccountingEntry: boolPtr(false),
		Actor:                 "ops",
	})

	assert.True(t, domain.IsStateViolation(err))
	f.settlements.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClosePeriod_RejectsDoubleAllocation(t *testing.T) {
	f := newFixture()
	s1 := approved("s-1", "100")
	f.settlements.On("ListForClosure", mock.Anything, nil, domain.Period("2024-01"), domain.ScopeKind(""), "").
		Return([]*domain.Settlement{s1}, nil)
	f.settlements.On("ListLines", mock.Anything, nil, "s-1").Return(consistentLines("s-1", "c-1", "100"), nil)
	f.settlements.On("UpdateStatus", mock.Anything, mock.Anything, "s-1", domain.SettlementClosed, mock.Anything, int64(2)).Return(nil)
	f.commissions.On("MarkSettled", mock.Anything, mock.Anything, []string{"c-1"}).Return(int64(0), nil)

	_, err := f.orch.ClosePeriod(context.Background(), closing.Request{
		Period:                "2024-01",
		Confirm:               true,
		CreateAccountingEntry: boolPtr(false),
		Actor:                 "ops",
	})

	assert.True(t, domain.IsStateViolation(err))
	f.accounting.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)
}

func TestClosePeriod_NoApprovedSettlements(t *testing.T) {
	f := newFixture()
	draft := approved("s-1", "100")
	draft.Status = domain.SettlementDraft
	f.settlements.On("ListForClosure", mock.Anything, nil, domain.Period("2024-01"), domain.ScopeKind(""), "").
		Return([]*domain.Settlement{draft}, nil)

	_, err := f.orch.ClosePeriod(context.Background(), closing.Request{
		Period: "2024-01",
		Actor:  "ops",
	})

	assert.True(t, domain.IsStateViolation(err))
}

func TestClosePeriod_UnknownPeriod(t *testing.T) {
	f := newFixture()
	f.settlements.On("ListForClosure", mock.Anything, nil, domain.Period("2030-12"), domain.ScopeKind(""), "").
		Return([]*domain.Settlement{}, nil)

	_, err := f.orch.ClosePeriod(context.Background(), closing.Request{
		Period: "2030-12",
		Actor:  "ops",
	})

	assert.True(t, domain.IsNotFoundError(err))
}
