package export_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/internal/services/export"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

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

func exportFixture() (*MockSettlementRepo, *MockAuditRepo, *export.Service) {
	settlements := new(MockSettlementRepo)
	audit := new(MockAuditRepo)
	svc := export.NewService(settlements, audit, nopLogger{})

	s := &domain.Settlement{
		ID:           "s-1",
		Name:         "January closing",
		Period:       domain.Period("2024-01"),
		ScopeKind:    domain.ScopeOffice,
		ScopeID:      "office-1",
		ScopeName:    "Downtown",
		Origin:       domain.OriginSale,
		Status:       domain.SettlementApproved,
		Gross:        decimal.RequireFromString("90"),
		Withholdings: decimal.RequireFromString("13.5"),
		Net:          decimal.RequireFromString("76.5"),
	}
	lines := []*domain.SettlementLine{
		{
			ID: "l-1", SettlementID: "s-1", CommissionItemID: "c-1",
			Date:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			SourceKind: domain.SourceContract, Reference: "CT-1001",
			AgentID: "a-1", AgentName: "Dana",
			BaseAmount:       decimal.RequireFromString("1000"),
			AppliedRate:      decimal.RequireFromString("0.03"),
			CommissionAmount: decimal.RequireFromString("30"),
			AdjustmentTotal:  decimal.Zero,
			NetAmount:        decimal.RequireFromString("30"),
		},
		{
			ID: "l-2", SettlementID: "s-1", CommissionItemID: "c-2",
			Date:       time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			SourceKind: domain.SourceCollection, Reference: "CT-1002",
			AgentID: "a-2", AgentName: "Leo",
			BaseAmount:       decimal.RequireFromString("2000"),
			AppliedRate:      decimal.RequireFromString("0.03"),
			CommissionAmount: decimal.RequireFromString("60"),
			AdjustmentTotal:  decimal.RequireFromString("-10"),
			NetAmount:        decimal.RequireFromString("50"),
		},
	}
	settlements.On("GetByID", mock.Anything, nil, "s-1").Return(s, nil)
	settlements.On("ListLines", mock.Anything, nil, "s-1").Return(lines, nil)
	audit.On("Append", mock.Anything, nil, mock.MatchedBy(func(e *domain.AuditEntry) bool {
		return e.Action == domain.AuditExported
	})).Return(nil)
	return settlements, audit, svc
}

func TestExport_CSV(t *testing.T) {
	_, audit, svc := exportFixture()

	file, err := svc.Export(context.Background(), "s-1", export.FormatCSV, "ops")

	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))

	records, err := csv.NewReader(strings.NewReader(string(file.Data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 lines
	assert.Equal(t, "date", records[0][0])
	assert.Equal(t, "2024-01-15", records[1][0])
	assert.Equal(t, "30.00", records[1][7])
	assert.Equal(t, "-10.00", records[2][8])
	audit.AssertExpectations(t)
}

func TestExport_JSON(t *testing.T) {
	_, _, svc := exportFixture()

	file, err := svc.Export(context.Background(), "s-1", export.FormatJSON, "ops")

	require.NoError(t, err)
	assert.Equal(t, "application/json", file.ContentType)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(file.Data, &doc))
	assert.Equal(t, "January closing", doc["name"])
	assert.Equal(t, "76.50", doc["net"])
	assert.Len(t, doc["lines"], 2)
}

func TestExport_XLSX(t *testing.T) {
	_, _, svc := exportFixture()

	file, err := svc.Export(context.Background(), "s-1", export.FormatXLSX, "ops")

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Name, ".xlsx"))

	wb, err := excelize.OpenReader(strings.NewReader(string(file.Data)))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Settlement")
	require.NoError(t, err)
	// 7 summary rows, a blank row, header and 2 lines
	require.Len(t, rows, 11)
	assert.Equal(t, []string{"Name", "January closing"}, rows[0])
	assert.Equal(t, "date", rows[8][0])
}

func TestExport_RejectsPDF(t *testing.T) {
	_, audit, svc := exportFixture()

	_, err := svc.Export(context.Background(), "s-1", export.Format("pdf"), "ops")

	assert.True(t, domain.IsValidationError(err))
	audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestExport_UnknownSettlement(t *testing.T) {
	settlements := new(MockSettlementRepo)
	audit := new(MockAuditRepo)
	svc := export.NewService(settlements, audit, nopLogger{})
	settlements.On("GetByID", mock.Anything, nil, "missing").Return(nil, domain.NewNotFound("settlement", "missing"))

	_, err := svc.Export(context.Background(), "missing", export.FormatCSV, "ops")

	assert.True(t, domain.IsNotFoundError(err))
}
