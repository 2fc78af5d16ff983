package settlementhandler

import (
	"time"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/services/closing"
	"github.com/realtyflow/settlement-engine/internal/services/settlement"
)

type createPayload struct {
	Period            string   `json:"period"`
	ScopeKind         string   `json:"scope_kind"`
	ScopeID           string   `json:"scope_id"`
	Origin            string   `json:"origin"`
	CommissionItemIDs []string `json:"commission_item_ids"`
	Name              string   `json:"name"`
	Notes             string   `json:"notes"`
}

type updatePayload struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

type closePayload struct {
	CreateAccountingEntry *bool  `json:"create_accounting_entry"`
	Notes                 string `json:"notes"`
}

type adjustmentPayload struct {
	Kind          string `json:"kind"`
	Value         string `json:"value"`
	Reason        string `json:"reason"`
	AttachmentRef string `json:"attachment_ref"`
}

type generatePayoutsPayload struct {
	Method string `json:"method"`
}

type payoutStatusPayload struct {
	Status     string `json:"status"`
	PaidAt     string `json:"paid_at"`
	BankRef    string `json:"bank_ref"`
	ReceiptRef string `json:"receipt_ref"`
}

type closePeriodPayload struct {
	ScopeKind             string `json:"scope_kind"`
	ScopeID               string `json:"scope_id"`
	Confirm               bool   `json:"confirm"`
	CreateAccountingEntry *bool  `json:"create_accounting_entry"`
}

type settlementDTO struct {
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
	LineCount    int32      `json:"line_count"`
	Version      int64      `json:"version"`
	CreatedBy    string     `json:"created_by"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

func toSettlementDTO(s *domain.Settlement) settlementDTO {
	return settlementDTO{
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
		LineCount:    s.LineCount,
		Version:      s.Version,
		CreatedBy:    s.CreatedBy,
		Notes:        s.Notes,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		ClosedAt:     s.ClosedAt,
	}
}

type listResponse struct {
	Items      []settlementDTO `json:"items"`
	Total      int64           `json:"total"`
	Page       int32           `json:"page"`
	TotalPages int32           `json:"total_pages"`
}

type adjustmentDTO struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Value         string    `json:"value"`
	Impact        string    `json:"impact"`
	Reason        string    `json:"reason"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	Actor         string    `json:"actor"`
	CreatedAt     time.Time `json:"created_at"`
}

type lineDTO struct {
	ID               string          `json:"id"`
	SettlementID     string          `json:"settlement_id"`
	CommissionItemID string          `json:"commission_item_id"`
	Date             string          `json:"date"`
	SourceKind       string          `json:"source_kind"`
	Reference        string          `json:"reference"`
	AgentID          string          `json:"agent_id"`
	AgentName        string          `json:"agent_name"`
	BaseAmount       string          `json:"base_amount"`
	AppliedRate      string          `json:"applied_rate"`
	CommissionAmount string          `json:"commission_amount"`
	AdjustmentTotal  string          `json:"adjustment_total"`
	NetAmount        string          `json:"net_amount"`
	Adjustments      []adjustmentDTO `json:"adjustments"`
}

func toLineDTO(l *domain.SettlementLine) lineDTO {
	adjustments := make([]adjustmentDTO, 0, len(l.Adjustments))
	for _, a := range l.Adjustments {
		adjustments = append(adjustments, adjustmentDTO{
			ID:            a.ID,
			Kind:          string(a.Kind),
			Value:         a.Value.String(),
			Impact:        a.Impact.StringFixed(2),
			Reason:        a.Reason,
			AttachmentRef: a.AttachmentRef,
			Actor:         a.Actor,
			CreatedAt:     a.CreatedAt,
		})
	}
	return lineDTO{
		ID:               l.ID,
		SettlementID:     l.SettlementID,
		CommissionItemID: l.CommissionItemID,
		Date:             l.Date.Format("2006-01-02"),
		SourceKind:       string(l.SourceKind),
		Reference:        l.Reference,
		AgentID:          l.AgentID,
		AgentName:        l.AgentName,
		BaseAmount:       l.BaseAmount.StringFixed(2),
		AppliedRate:      l.AppliedRate.String(),
		CommissionAmount: l.CommissionAmount.StringFixed(2),
		AdjustmentTotal:  l.AdjustmentTotal.StringFixed(2),
		NetAmount:        l.NetAmount.StringFixed(2),
		Adjustments:      adjustments,
	}
}

type agentTotalsDTO struct {
	AgentID      string `json:"agent_id"`
	AgentName    string `json:"agent_name"`
	LineCount    int    `json:"line_count"`
	Gross        string `json:"gross"`
	Withholdings string `json:"withholdings"`
	Net          string `json:"net"`
}

type previewDTO struct {
	Period       string           `json:"period"`
	ScopeKind    string           `json:"scope_kind"`
	ScopeID      string           `json:"scope_id"`
	ScopeName    string           `json:"scope_name"`
	Origin       string           `json:"origin"`
	Gross        string           `json:"gross"`
	Withholdings string           `json:"withholdings"`
	Net          string           `json:"net"`
	Lines        []lineDTO        `json:"lines"`
	PerAgent     []agentTotalsDTO `json:"per_agent"`
}

func toPreviewDTO(p *settlement.Preview) previewDTO {
	lines := make([]lineDTO, 0, len(p.Lines))
	for _, l := range p.Lines {
		lines = append(lines, toLineDTO(l))
	}
	perAgent := make([]agentTotalsDTO, 0, len(p.PerAgent))
	for _, a := range p.PerAgent {
		perAgent = append(perAgent, agentTotalsDTO{
			AgentID:      a.AgentID,
			AgentName:    a.AgentName,
			LineCount:    a.LineCount,
			Gross:        a.Gross.StringFixed(2),
			Withholdings: a.Withholdings.StringFixed(2),
			Net:          a.Net.StringFixed(2),
		})
	}
	return previewDTO{
		Period:       string(p.Period),
		ScopeKind:    string(p.ScopeKind),
		ScopeID:      p.ScopeID,
		ScopeName:    p.ScopeName,
		Origin:       string(p.Origin),
		Gross:        p.Gross,
		Withholdings: p.Withholdings,
		Net:          p.Net,
		Lines:        lines,
		PerAgent:     perAgent,
	}
}

type payoutDTO struct {
	ID           string     `json:"id"`
	SettlementID string     `json:"settlement_id"`
	AgentID      string     `json:"agent_id"`
	AgentName    string     `json:"agent_name"`
	Gross        string     `json:"gross"`
	Withholdings string     `json:"withholdings"`
	Net          string     `json:"net"`
	Method       string     `json:"method"`
	Status       string     `json:"status"`
	BankRef      string     `json:"bank_ref,omitempty"`
	ReceiptRef   string     `json:"receipt_ref,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toPayoutDTO(p *domain.Payout) payoutDTO {
	return payoutDTO{
		ID:           p.ID,
		SettlementID: p.SettlementID,
		AgentID:      p.AgentID,
		AgentName:    p.AgentName,
		Gross:        p.Gross.StringFixed(2),
		Withholdings: p.Withholdings.StringFixed(2),
		Net:          p.Net.StringFixed(2),
		Method:       string(p.Method),
		Status:       string(p.Status),
		BankRef:      p.BankRef,
		ReceiptRef:   p.ReceiptRef,
		PaidAt:       p.PaidAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type generatePayoutsResponse struct {
	Created    []payoutDTO `json:"created"`
	Kept       []payoutDTO `json:"kept"`
	Superseded []string    `json:"superseded"`
}

type auditDTO struct {
	ID           string                 `json:"id"`
	SettlementID string                 `json:"settlement_id"`
	Action       string                 `json:"action"`
	Actor        string                 `json:"actor"`
	Detail       map[string]interface{} `json:"detail"`
	CreatedAt    time.Time              `json:"created_at"`
}

func toAuditDTO(e *domain.AuditEntry) auditDTO {
	return auditDTO{
		ID:           e.ID,
		SettlementID: e.SettlementID,
		Action:       string(e.Action),
		Actor:        e.Actor,
		Detail:       e.Detail,
		CreatedAt:    e.CreatedAt,
	}
}

type commissionItemDTO struct {
	ID         string `json:"id"`
	OfficeID   string `json:"office_id"`
	TeamID     string `json:"team_id,omitempty"`
	AgentID    string `json:"agent_id"`
	AgentName  string `json:"agent_name"`
	Origin     string `json:"origin"`
	SourceKind string `json:"source_kind"`
	Reference  string `json:"reference"`
	Date       string `json:"date"`
	BaseAmount string `json:"base_amount"`
	Rate       string `json:"rate"`
	Status     string `json:"status"`
}

func toCommissionItemDTO(c *domain.CommissionItem) commissionItemDTO {
	return commissionItemDTO{
		ID:         c.ID,
		OfficeID:   c.OfficeID,
		TeamID:     c.TeamID,
		AgentID:    c.AgentID,
		AgentName:  c.AgentName,
		Origin:     string(c.Origin),
		SourceKind: string(c.SourceKind),
		Reference:  c.Reference,
		Date:       c.Date.Format("2006-01-02"),
		BaseAmount: c.BaseAmount.StringFixed(2),
		Rate:       c.Rate.String(),
		Status:     string(c.Status),
	}
}

type eligibleResponse struct {
	Epoch int64               `json:"epoch"`
	Items []commissionItemDTO `json:"items"`
}

type skippedDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type closePeriodDTO struct {
	Period    string          `json:"period"`
	Committed bool            `json:"committed"`
	Closed    []settlementDTO `json:"closed"`
	Skipped   []skippedDTO    `json:"skipped"`
	TotalNet  string          `json:"total_net"`
}

func toClosePeriodDTO(r *closing.Result) closePeriodDTO {
	closed := make([]settlementDTO, 0, len(r.Closed))
	for _, s := range r.Closed {
		closed = append(closed, toSettlementDTO(s))
	}
	skipped := make([]skippedDTO, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		skipped = append(skipped, skippedDTO{
			ID:     s.ID,
			Name:   s.Name,
			Status: string(s.Status),
			Reason: s.Reason,
		})
	}
	return closePeriodDTO{
		Period:    string(r.Period),
		Committed: r.Committed,
		Closed:    closed,
		Skipped:   skipped,
		TotalNet:  r.TotalNet.StringFixed(2),
	}
}
