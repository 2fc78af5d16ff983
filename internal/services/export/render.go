package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/xuri/excelize/v2"
)

var lineHeader = []string{
	"date", "source", "reference", "agent_id", "agent_name",
	"base_amount", "rate", "commission", "adjustments", "net",
}

func lineRecord(l *domain.SettlementLine) []string {
	return []string{
		l.Date.Format("2006-01-02"),
		string(l.SourceKind),
		l.Reference,
		l.AgentID,
		l.AgentName,
		l.BaseAmount.StringFixed(2),
		l.AppliedRate.String(),
		l.CommissionAmount.StringFixed(2),
		l.AdjustmentTotal.StringFixed(2),
		l.NetAmount.StringFixed(2),
	}
}

func renderCSV(s *domain.Settlement, lines []*domain.SettlementLine) (*File, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(lineHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, line := range lines {
		if err := w.Write(lineRecord(line)); err != nil {
			return nil, fmt.Errorf("write csv line: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &File{
		Name:        exportFileName(s, "csv"),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

type jsonExport struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Period       string     `json:"period"`
	ScopeKind    string     `json:"scope_kind"`
	ScopeID      string     `json:"scope_id"`
	ScopeName    string     `json:"scope_name"`
	Origin       string     `json:"origin"`
	Status       string     `json:"status"`
	Gross        string     `json:"gross"`
	Withholdings string     `json:"withholdings"`
	Net          string     `json:"net"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	Lines        []jsonLine `json:"lines"`
}

type jsonLine struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	SourceKind  string           `json:"source_kind"`
	Reference   string           `json:"reference"`
	AgentID     string           `json:"agent_id"`
	AgentName   string           `json:"agent_name"`
	BaseAmount  string           `json:"base_amount"`
	AppliedRate string           `json:"applied_rate"`
	Commission  string           `json:"commission"`
	Net         string           `json:"net"`
	Adjustments []jsonAdjustment `json:"adjustments"`
}

type jsonAdjustment struct {
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	Impact    string    `json:"impact"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

func renderJSON(s *domain.Settlement, lines []*domain.SettlementLine) (*File, error) {
	out := jsonExport{
		ID:           s.ID,
		Name:         s.Name,
		Period:       string(s.Period),
		ScopeKind:    string(s.ScopeKind),
		ScopeID:      s.ScopeID,
		ScopeName:    s.ScopeName,
		Origin:       string(s.Origin),
		Status:       string(s.Status),
		Gross:        s.Gross.StringFixed(2),
		Withholdings: s.Withholdings.StringFixed(2),
		Net:          s.Net.StringFixed(2),
		CreatedAt:    s.CreatedAt,
		ClosedAt:     s.ClosedAt,
		Lines:        make([]jsonLine, 0, len(lines)),
	}
	for _, l := range lines {
		jl := jsonLine{
			ID:          l.ID,
			Date:        l.Date.Format("2006-01-02"),
			SourceKind:  string(l.SourceKind),
			Reference:   l.Reference,
			AgentID:     l.AgentID,
			AgentName:   l.AgentName,
			BaseAmount:  l.BaseAmount.StringFixed(2),
			AppliedRate: l.AppliedRate.String(),
			Commission:  l.CommissionAmount.StringFixed(2),
			Net:         l.NetAmount.StringFixed(2),
			Adjustments: make([]jsonAdjustment, 0, len(l.Adjustments)),
		}
		for _, a := range l.Adjustments {
			jl.Adjustments = append(jl.Adjustments, jsonAdjustment{
				Kind:      string(a.Kind),
				Value:     a.Value.String(),
				Impact:    a.Impact.StringFixed(2),
				Reason:    a.Reason,
				Actor:     a.Actor,
				CreatedAt: a.CreatedAt,
			})
		}
		out.Lines = append(out.Lines, jl)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal settlement: %w", err)
	}
	return &File{
		Name:        exportFileName(s, "json"),
		ContentType: "application/json",
		Data:        data,
	}, nil
}

func renderXLSX(s *domain.Settlement, lines []*domain.SettlementLine) (*File, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Settlement"
	f.SetSheetName("Sheet1", sheet)

	summary := [][]interface{}{
		{"Name", s.Name},
		{"Period", string(s.Period)},
		{"Scope", fmt.Sprintf("%s / %s", s.ScopeKind, s.ScopeName)},
		{"Status", string(s.Status)},
		{"Gross", s.Gross.StringFixed(2)},
		{"Withholdings", s.Withholdings.StringFixed(2)},
		{"Net", s.Net.StringFixed(2)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("summary cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}

	headerRow := len(summary) + 2
	header := make([]interface{}, len(lineHeader))
	for i, h := range lineHeader {
		header[i] = h
	}
	cell, err := excelize.CoordinatesToCellName(1, headerRow)
	if err != nil {
		return nil, fmt.Errorf("header cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, line := range lines {
		record := lineRecord(line)
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return nil, fmt.Errorf("line cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write line row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &File{
		Name:        exportFileName(s, "xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}
