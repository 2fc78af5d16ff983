package settlement_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// stubDB runs transaction callbacks inline with a nil tx; the repositories
// underneath are mocks and never touch it
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

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetOffice(ctx context.Context, id string) (*domain.Office, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Office), args.Error(1)
}

func (m *MockCatalog) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Team), args.Error(1)
}

func (m *MockCatalog) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

type MockAccounting struct {
	mock.Mock
}

func (m *MockAccounting) CreateEntry(ctx context.Context, entry ports.AccountingEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) AuthorizeReopen(ctx context.Context, actor, settlementID string) error {
	args := m.Called(ctx, actor, settlementID)
	return args.Error(0)
}
