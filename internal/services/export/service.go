package export

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/pkg/observability"
)

// Format identifies a supported export encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// File is a rendered export ready to stream to the caller
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service renders settlements into downloadable files
type Service struct {
	settlements ports.SettlementRepository
	audit       ports.AuditRepository
	logger      ports.Logger
}

// NewService creates a new export service
func NewService(settlements ports.SettlementRepository, audit ports.AuditRepository, logger ports.Logger) *Service {
	return &Service{settlements: settlements, audit: audit, logger: logger}
}

// Export renders one settlement in the requested format. Unsupported formats,
// pdf included, are rejected as validation errors.
func (s *Service) Export(ctx context.Context, settlementID string, format Format, actor string) (*File, error) {
	settlement, err := s.settlements.GetByID(ctx, nil, settlementID)
	if err != nil {
		return nil, err
	}
	lines, err := s.settlements.ListLines(ctx, nil, settlementID)
	if err != nil {
		return nil, err
	}

	var file *File
	switch format {
	case FormatCSV:
		file, err = renderCSV(settlement, lines)
	case FormatJSON:
		file, err = renderJSON(settlement, lines)
	case FormatXLSX:
		file, err = renderXLSX(settlement, lines)
	default:
		return nil, domain.NewValidationError("format",
			fmt.Sprintf("unsupported export format %q, supported: csv, json, xlsx", format))
	}
	if err != nil {
		return nil, err
	}

	entry := domain.NewAuditEntry(settlementID, domain.AuditExported, actor, map[string]interface{}{
		"format": string(format),
		"file":   file.Name,
	})
	entry.ID = uuid.New().String()
	if err := s.audit.Append(ctx, nil, entry); err != nil {
		return nil, err
	}

	observability.RecordExport(string(format))
	s.logger.Info("settlement exported",
		ports.String("settlement_id", settlementID),
		ports.String("format", string(format)),
		ports.String("actor", actor))
	return file, nil
}

func exportFileName(s *domain.Settlement, ext string) string {
	return fmt.Sprintf("settlement_%s_%s.%s", s.Period, s.ID, ext)
}
