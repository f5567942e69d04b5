package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/infra/logging"
	"bookstore-payments/internal/infra/metrics"
)

// The webhook surface speaks the retry contract of external callers: a
// delivery that cannot possibly succeed later (unknown reference, purchase
// already decided) is acknowledged with 200 so the sender stops retrying.
// Only transport-level problems return errors.

type webhookAck struct {
	Result string `json:"result"`
	Status string `json:"status,omitempty"`
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txRef := q.Get("tx_ref")
	status := q.Get("status")
	if txRef == "" || (status != "success" && status != "failed") {
		metrics.IncWebhook("payments", "bad_request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tx_ref and status=success|failed required"})
		return
	}

	l := logging.With(logging.WithTxRef(r.Context(), txRef), s.log)
	p, err := s.purchaseUC.Finalize(r.Context(), txRef, status == "success")
	switch {
	case err == nil:
		metrics.IncWebhook("payments", "ok")
		writeJSON(w, http.StatusOK, webhookAck{Result: "processed", Status: string(p.Status)})
	case errors.Is(err, domain.ErrNotFound):
		// Reference we never issued, or a replay after cleanup. Retrying will
		// not help the sender.
		l.Warn().Msg("webhook for unknown transaction reference")
		metrics.IncWebhook("payments", "unknown_ref")
		writeJSON(w, http.StatusOK, webhookAck{Result: "ignored"})
	case errors.Is(err, domain.ErrConflict):
		// Decided the other way already; acknowledged, never reversed.
		l.Warn().Str("status", status).Msg("webhook conflicts with settled purchase")
		metrics.IncWebhook("payments", "conflict")
		writeJSON(w, http.StatusOK, webhookAck{Result: "already_settled", Status: string(p.Status)})
	case errors.Is(err, domain.ErrDependency):
		// Finalized fine, delivery is being reconciled.
		metrics.IncWebhook("payments", "ok")
		writeJSON(w, http.StatusOK, webhookAck{Result: "processed", Status: string(p.Status)})
	default:
		metrics.IncWebhook("payments", "error")
		s.writeError(w, r, err)
	}
}

func (s *Server) handleFindByToken(w http.ResponseWriter, r *http.Request) {
	p, err := s.purchaseUC.FindByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		metrics.IncWebhook("find_by_token", "miss")
		s.writeError(w, r, err)
		return
	}
	metrics.IncWebhook("find_by_token", "ok")
	writeJSON(w, http.StatusOK, toPurchaseResponse(p))
}

type attachTelegramRequest struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

func (s *Server) handleAttachTelegram(w http.ResponseWriter, r *http.Request) {
	var req attachTelegramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "chat_id required"})
		return
	}
	p, err := s.purchaseUC.AttachTelegram(r.Context(), chi.URLParam(r, "token"), req.ChatID, req.UserID)
	if err != nil {
		metrics.IncWebhook("attach_telegram", "error")
		s.writeError(w, r, err)
		return
	}
	metrics.IncWebhook("attach_telegram", "ok")
	writeJSON(w, http.StatusOK, toPurchaseResponse(p))
}
