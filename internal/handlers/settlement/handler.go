package settlementhandler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"github.com/realtyflow/settlement-engine/internal/services/closing"
	"github.com/realtyflow/settlement-engine/internal/services/export"
	"github.com/realtyflow/settlement-engine/internal/services/payout"
	"github.com/realtyflow/settlement-engine/internal/services/selector"
	"github.com/realtyflow/settlement-engine/internal/services/settlement"
)

// Handler binds the settlement services to the HTTP surface
type Handler struct {
	settlements *settlement.Service
	selector    *selector.Service
	payouts     *payout.Service
	closing     *closing.Orchestrator
	exports     *export.Service
	logger      ports.Logger
}

// NewHandler creates a new settlement HTTP handler
func NewHandler(
	settlements *settlement.Service,
	sel *selector.Service,
	payouts *payout.Service,
	closingOrch *closing.Orchestrator,
	exports *export.Service,
	logger ports.Logger,
) *Handler {
	return &Handler{
		settlements: settlements,
		selector:    sel,
		payouts:     payouts,
		closing:     closingOrch,
		exports:     exports,
		logger:      logger,
	}
}

// RegisterRoutes mounts the settlement API under the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settlements", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/preview", h.handlePreview)
		r.Get("/{settlementID}", h.handleGet)
		r.Patch("/{settlementID}", h.handleUpdate)
		r.Post("/{settlementID}/recalculate", h.handleRecalculate)
		r.Post("/{settlementID}/approve", h.handleApprove)
		r.Post("/{settlementID}/close", h.handleClose)
		r.Post("/{settlementID}/reopen", h.handleReopen)
		r.Get("/{settlementID}/lines", h.handleListLines)
		r.Post("/{settlementID}/lines/{lineID}/adjustments", h.handleApplyAdjustment)
		r.Get("/{settlementID}/payouts", h.handleListPayouts)
		r.Post("/{settlementID}/payouts", h.handleGeneratePayouts)
		r.Get("/{settlementID}/audit", h.handleAuditTrail)
		r.Get("/{settlementID}/export", h.handleExport)
	})
	r.Get("/commission-items", h.handleListEligible)
	r.Patch("/payouts/{payoutID}", h.handleUpdatePayoutStatus)
	r.Post("/periods/{period}/close", h.handleClosePeriod)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := queryTime(q.Get("from"), "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := queryTime(q.Get("to"), "to")
	if err != nil {
		writeError(w, err)
		return
	}
	filter := ports.SettlementFilter{
		Period:    q.Get("period"),
		ScopeKind: domain.ScopeKind(q.Get("scope_kind")),
		ScopeID:   q.Get("scope_id"),
		Status:    domain.SettlementStatus(q.Get("status")),
		Origin:    domain.Origin(q.Get("origin")),
		Query:     q.Get("q"),
		From:      from,
		To:        to,
	}
	page := ports.PageRequest{
		Page: int32(queryInt(q.Get("page"), 1)),
		Size: int32(queryInt(q.Get("size"), 25)),
		Sort: q.Get("sort"),
	}

	result, err := h.settlements.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]settlementDTO, 0, len(result.Items))
	for _, s := range result.Items {
		items = append(items, toSettlementDTO(s))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.settlements.Get(r.Context(), chi.URLParam(r, "settlementID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createPayload
	if !decodeBody(w, r, &body) {
		return
	}
	s, err := h.settlements.Build(r.Context(), settlement.BuildRequest{
		Period:            body.Period,
		ScopeKind:         domain.ScopeKind(body.ScopeKind),
		ScopeID:           body.ScopeID,
		Origin:            domain.Origin(body.Origin),
		CommissionItemIDs: body.CommissionItemIDs,
		Name:              body.Name,
		Notes:             body.Notes,
		CreatedBy:         actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementDTO(s))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var body createPayload
	if !decodeBody(w, r, &body) {
		return
	}
	preview, err := h.settlements.PreviewBuild(r.Context(), settlement.BuildRequest{
		Period:            body.Period,
		ScopeKind:         domain.ScopeKind(body.ScopeKind),
		ScopeID:           body.ScopeID,
		Origin:            domain.Origin(body.Origin),
		CommissionItemIDs: body.CommissionItemIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(preview))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body updatePayload
	if !decodeBody(w, r, &body) {
		return
	}
	s, err := h.settlements.Update(r.Context(), chi.URLParam(r, "settlementID"), settlement.UpdateRequest{
		Name:  body.Name,
		Notes: body.Notes,
		Actor: actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	s, err := h.settlements.Recalculate(r.Context(), chi.URLParam(r, "settlementID"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	s, err := h.settlements.Approve(r.Context(), chi.URLParam(r, "settlementID"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	var body closePayload
	if !decodeBody(w, r, &body) {
		return
	}
	s, err := h.settlements.Close(r.Context(), chi.URLParam(r, "settlementID"), settlement.CloseOptions{
		CreateAccountingEntry: body.CreateAccountingEntry,
		Notes:                 body.Notes,
		Actor:                 actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	s, err := h.settlements.Reopen(r.Context(), chi.URLParam(r, "settlementID"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

func (h *Handler) handleListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.settlements.Lines(r.Context(), chi.URLParam(r, "settlementID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, toLineDTO(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleApplyAdjustment(w http.ResponseWriter, r *http.Request) {
	var body adjustmentPayload
	if !decodeBody(w, r, &body) {
		return
	}
	line, err := h.settlements.ApplyAdjustment(r.Context(),
		chi.URLParam(r, "settlementID"), chi.URLParam(r, "lineID"),
		settlement.AdjustmentRequest{
			Kind:          domain.AdjustmentKind(body.Kind),
			Value:         body.Value,
			Reason:        body.Reason,
			AttachmentRef: body.AttachmentRef,
			Actor:         actor(r),
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineDTO(line))
}

func (h *Handler) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.payouts.List(r.Context(), chi.URLParam(r, "settlementID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]payoutDTO, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, toPayoutDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGeneratePayouts(w http.ResponseWriter, r *http.Request) {
	var body generatePayoutsPayload
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := h.payouts.Generate(r.Context(), payout.GenerateRequest{
		SettlementID: chi.URLParam(r, "settlementID"),
		Method:       domain.PayoutMethod(body.Method),
		Actor:        actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	created := make([]payoutDTO, 0, len(result.Created))
	for _, p := range result.Created {
		created = append(created, toPayoutDTO(p))
	}
	kept := make([]payoutDTO, 0, len(result.Kept))
	for _, p := range result.Kept {
		kept = append(kept, toPayoutDTO(p))
	}
	writeJSON(w, http.StatusCreated, generatePayoutsResponse{
		Created:    created,
		Kept:       kept,
		Superseded: result.Superseded,
	})
}

func (h *Handler) handleUpdatePayoutStatus(w http.ResponseWriter, r *http.Request) {
	var body payoutStatusPayload
	if !decodeBody(w, r, &body) {
		return
	}
	var paidAt *time.Time
	if body.PaidAt != "" {
		t, err := time.Parse(time.RFC3339, body.PaidAt)
		if err != nil {
			writeError(w, domain.NewValidationError("paid_at", "paid_at must be RFC 3339"))
			return
		}
		paidAt = &t
	}
	p, err := h.payouts.UpdateStatus(r.Context(), payout.StatusRequest{
		PayoutID:   chi.URLParam(r, "payoutID"),
		Status:     domain.PayoutStatus(body.Status),
		PaidAt:     paidAt,
		BankRef:    body.BankRef,
		ReceiptRef: body.ReceiptRef,
		Actor:      actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(p))
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.settlements.AuditTrail(r.Context(), chi.URLParam(r, "settlementID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]auditDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	var body closePeriodPayload
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := h.closing.ClosePeriod(r.Context(), closing.Request{
		Period:                chi.URLParam(r, "period"),
		ScopeKind:             domain.ScopeKind(body.ScopeKind),
		ScopeID:               body.ScopeID,
		Confirm:               body.Confirm,
		CreateAccountingEntry: body.CreateAccountingEntry,
		Actor:                 actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClosePeriodDTO(result))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	file, err := h.exports.Export(r.Context(), chi.URLParam(r, "settlementID"), export.Format(format), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

func (h *Handler) handleListEligible(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.selector.ListEligible(r.Context(), selector.Request{
		Period:       q.Get("period"),
		ScopeKind:    domain.ScopeKind(q.Get("scope_kind")),
		ScopeID:      q.Get("scope_id"),
		Origin:       domain.Origin(q.Get("origin")),
		OnlyApproved: q.Get("only_approved") == "true",
		Epoch:        int64(queryInt(q.Get("epoch"), 0)),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]commissionItemDTO, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, toCommissionItemDTO(item))
	}
	writeJSON(w, http.StatusOK, eligibleResponse{Epoch: result.Epoch, Items: items})
}

// queryTime parses an optional RFC 3339 query parameter
func queryTime(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.NewValidationError(field,
			"expected an RFC 3339 timestamp, e.g. 2024-01-01T00:00:00Z")
	}
	return &t, nil
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
