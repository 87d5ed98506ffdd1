package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dealerdesk/be-payment-approvals/internal/auth"
	"github.com/dealerdesk/be-payment-approvals/internal/errors"
	"github.com/dealerdesk/be-payment-approvals/internal/repository"
	"github.com/dealerdesk/be-payment-approvals/internal/service"
	"github.com/dealerdesk/be-payment-approvals/internal/workflow"
)

// SelectionStore is the selection surface the handler exposes to the console.
type SelectionStore interface {
	Toggle(ctx context.Context, userID, paymentID string) (bool, error)
	Members(ctx context.Context, userID string) ([]string, error)
	Clear(ctx context.Context, userID string) error
}

// AuditReader reads the bulk-action audit trail.
type AuditReader interface {
	GetByPaymentID(ctx context.Context, paymentID string) ([]*repository.BulkActionAuditEntry, error)
	GetByActor(ctx context.Context, userID string, limit int) ([]*repository.BulkActionAuditEntry, error)
}

// HTTPHandler handles the console's HTTP requests.
type HTTPHandler struct {
	pending   *service.PendingService
	bulk      *service.BulkService
	selection SelectionStore
	audit     AuditReader
	log       zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	pending *service.PendingService,
	bulk *service.BulkService,
	selection SelectionStore,
	audit AuditReader,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		pending:   pending,
		bulk:      bulk,
		selection: selection,
		audit:     audit,
		log:       log,
	}
}

func (h *HTTPHandler) viewer(w http.ResponseWriter, r *http.Request) (workflow.Viewer, bool) {
	viewer, ok := auth.ViewerFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return workflow.Viewer{}, false
	}
	return viewer, true
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response body")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= 500 {
		h.log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ── pending list ──────────────────────────────────────────────────────────────

// Pending returns the payments awaiting the authenticated viewer's action.
func (h *HTTPHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	payments, err := h.pending.Pending(r.Context(), viewer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// ── selection ─────────────────────────────────────────────────────────────────

// ToggleSelection adds or removes one payment id from the viewer's selection.
func (h *HTTPHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var req struct {
		PaymentID string `json:"payment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	selected, err := h.selection.Toggle(r.Context(), viewer.UserID, req.PaymentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"payment_id": req.PaymentID, "selected": selected})
}

// Selection returns or clears the viewer's stored selection.
func (h *HTTPHandler) Selection(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		ids, err := h.selection.Members(r.Context(), viewer.UserID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"payment_ids": ids})
	case http.MethodDelete:
		if err := h.selection.Clear(r.Context(), viewer.UserID); err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ── bulk actions ──────────────────────────────────────────────────────────────

// BulkApprove approves the submitted (or stored) selection in one backend call.
func (h *HTTPHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var req struct {
		PaymentIDs []string `json:"payment_ids"`
		Remarks    string   `json:"remarks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ids, err := h.resolveIDs(r.Context(), viewer, req.PaymentIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	outcome, err := h.bulk.BulkApprove(r.Context(), viewer, ids, req.Remarks)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// BulkReject rejects the submitted (or stored) selection in one backend call.
func (h *HTTPHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var req struct {
		PaymentIDs []string `json:"payment_ids"`
		Reason     string   `json:"reason"`
		Remarks    string   `json:"remarks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ids, err := h.resolveIDs(r.Context(), viewer, req.PaymentIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	outcome, err := h.bulk.BulkReject(r.Context(), viewer, ids, req.Reason, req.Remarks)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// resolveIDs falls back to the stored selection when the request carries no
// explicit payment ids.
func (h *HTTPHandler) resolveIDs(ctx context.Context, viewer workflow.Viewer, ids []string) ([]string, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	return h.selection.Members(ctx, viewer.UserID)
}

// ── audit ─────────────────────────────────────────────────────────────────────

// Audit returns the bulk-action audit trail for a payment, or the viewer's
// own recent bulk actions when no payment id is given.
func (h *HTTPHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var (
		entries []*repository.BulkActionAuditEntry
		err     error
	)
	if paymentID := r.URL.Query().Get("payment_id"); paymentID != "" {
		entries, err = h.audit.GetByPaymentID(r.Context(), paymentID)
	} else {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err = h.audit.GetByActor(r.Context(), viewer.UserID, limit)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*repository.BulkActionAuditEntry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
