package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/infra/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP statuses. Unknown errors become
// an opaque 500; the detail stays in the logs.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var code int
	var msg string
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrFreeItem):
		code, msg = http.StatusBadRequest, "item is free; no purchase required"
	case errors.Is(err, domain.ErrDuplicatePurchase):
		code, msg = http.StatusConflict, "an active purchase for this item already exists"
	case errors.Is(err, domain.ErrConflict):
		code, msg = http.StatusConflict, "purchase state changed; refresh and retry"
	case errors.Is(err, domain.ErrAlreadyExists):
		code, msg = http.StatusConflict, "already exists"
	case errors.Is(err, domain.ErrForbidden):
		code, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrDependency):
		// Payment is settled; delivery needs reconciliation. The client must
		// not retry the purchase.
		code, msg = http.StatusAccepted, "purchase completed; delivery in progress"
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		code, msg = http.StatusInternalServerError, "internal error"
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

type purchaseResponse struct {
	ID              string  `json:"id"`
	ItemType        string  `json:"item_type"`
	ItemID          string  `json:"item_id"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	TransactionRef  string  `json:"transaction_ref"`
	InitiationToken string  `json:"initiation_token,omitempty"`
	Status          string  `json:"status"`
	ProviderRef     *string `json:"provider_ref,omitempty"`
	ReviewerNotes   *string `json:"reviewer_notes,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toPurchaseResponse(p *model.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:              p.ID,
		ItemType:        string(p.ItemType),
		ItemID:          p.ItemID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		TransactionRef:  p.TransactionRef,
		InitiationToken: p.InitiationToken,
		Status:          string(p.Status),
		ProviderRef:     p.ProviderRef,
		ReviewerNotes:   p.ReviewerNotes,
		CreatedAt:       p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return page, limit
}

// ===== Purchases =====

type initiateRequest struct {
	ItemType string `json:"item_type"`
	ItemID   string `json:"item_id"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	itemType, err := model.ParseItemType(req.ItemType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := PrincipalFrom(r.Context())
	p, err := s.purchaseUC.Initiate(r.Context(), caller.UserID, itemType, req.ItemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := struct {
		purchaseResponse
		Instructions string `json:"payment_instructions,omitempty"`
	}{toPurchaseResponse(p), s.instructions}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListOwn(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	page, limit := pageParams(r)
	list, err := s.purchaseUC.ListByUser(r.Context(), caller.UserID, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]purchaseResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPurchaseResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	p, err := s.purchaseUC.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseResponse(p))
}

type submitTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
	ClaimedAmount *int64 `json:"claimed_amount,omitempty"`
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	caller := PrincipalFrom(r.Context())
	p, err := s.purchaseUC.SubmitTransactionID(r.Context(), caller, chi.URLParam(r, "id"), req.TransactionID, req.ClaimedAmount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseResponse(p))
}

type submitProofRequest struct {
	ReceiptPaths  []string `json:"receipt_paths"`
	ClaimedAmount *int64   `json:"claimed_amount,omitempty"`
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	var req submitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	caller := PrincipalFrom(r.Context())
	sub, err := s.purchaseUC.SubmitManualProof(r.Context(), caller, chi.URLParam(r, "id"), req.ReceiptPaths, req.ClaimedAmount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}{sub.ID, string(sub.Status)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body means no reason
	caller := PrincipalFrom(r.Context())
	p, err := s.purchaseUC.Cancel(r.Context(), caller, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseResponse(p))
}

// ===== Admin =====

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	page, limit := pageParams(r)
	list, total, err := s.adminUC.ListPending(r.Context(), caller, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]purchaseResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPurchaseResponse(p))
	}
	writeJSON(w, http.StatusOK, struct {
		Purchases []purchaseResponse `json:"purchases"`
		Total     int                `json:"total"`
		Page      int                `json:"page"`
	}{out, total, page})
}

type verifyRequest struct {
	Approve bool    `json:"approve"`
	Notes   *string `json:"notes,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	caller := PrincipalFrom(r.Context())
	p, err := s.adminUC.Verify(r.Context(), caller, chi.URLParam(r, "id"), req.Approve, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseResponse(p))
}

func (s *Server) handleReviewSubmissions(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	subs, err := s.adminUC.ReviewSubmissions(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	type submissionResponse struct {
		ID            string   `json:"id"`
		ReceiptURLs   []string `json:"receipt_urls"`
		ClaimedAmount *int64   `json:"claimed_amount,omitempty"`
		Status        string   `json:"status"`
	}
	out := make([]submissionResponse, 0, len(subs))
	for _, sub := range subs {
		urls := make([]string, 0, len(sub.ReceiptPaths))
		for _, p := range sub.ReceiptPaths {
			signed, err := s.receipts.SignedURL(p, receiptLinkTTL)
			if err != nil {
				s.log.Warn().Err(err).Str("path", p).Msg("could not sign receipt url")
				continue
			}
			urls = append(urls, signed)
		}
		out = append(out, submissionResponse{sub.ID, urls, sub.ClaimedAmount, string(sub.Status)})
	}
	writeJSON(w, http.StatusOK, out)
}

// receiptLinkTTL bounds how long a review link stays valid once issued.
const receiptLinkTTL = 15 * time.Minute

func (s *Server) handleReceiptDownload(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	exp, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid exp"})
		return
	}
	data, err := s.receipts.Open(rel, exp, r.URL.Query().Get("sig"))
	if err != nil {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "link invalid or expired"})
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(rel))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(data)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}

// ===== Payment requests =====

type paymentRequestBody struct {
	ItemType string  `json:"item_type"`
	ItemID   string  `json:"item_id"`
	Contact  string  `json:"contact"`
	Note     *string `json:"note,omitempty"`
}

type paymentRequestResponse struct {
	ID       string `json:"id"`
	ItemType string `json:"item_type"`
	ItemID   string `json:"item_id"`
	Status   string `json:"status"`
}

func toPaymentRequestResponse(r *model.PaymentRequest) paymentRequestResponse {
	return paymentRequestResponse{r.ID, string(r.ItemType), r.ItemID, string(r.Status)}
}

func (s *Server) handleCreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	var req paymentRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	itemType, err := model.ParseItemType(req.ItemType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	caller := PrincipalFrom(r.Context())
	created, err := s.requestUC.Create(r.Context(), caller.UserID, itemType, req.ItemID, req.Contact, req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentRequestResponse(created))
}

func (s *Server) handleCancelPaymentRequest(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	req, err := s.requestUC.Cancel(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRequestResponse(req))
}

func (s *Server) handleListPaymentRequests(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	status := model.PaymentRequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.PaymentRequestStatusPending
	}
	page, limit := pageParams(r)
	list, total, err := s.requestUC.ListByStatus(r.Context(), caller, status, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]paymentRequestResponse, 0, len(list))
	for _, pr := range list {
		out = append(out, toPaymentRequestResponse(pr))
	}
	writeJSON(w, http.StatusOK, struct {
		Requests []paymentRequestResponse `json:"requests"`
		Total    int                      `json:"total"`
	}{out, total})
}

type updatePaymentRequestBody struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	caller := PrincipalFrom(r.Context())
	updated, err := s.requestUC.UpdateStatus(r.Context(), caller, chi.URLParam(r, "id"), model.PaymentRequestStatus(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRequestResponse(updated))
}

// ===== Library =====

type libraryEntryResponse struct {
	BookID   string  `json:"book_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	entries, err := s.libraryUC.ListByUser(r.Context(), caller, caller.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]libraryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, libraryEntryResponse{e.BookID, string(e.Status), e.Progress})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGrantFree(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFrom(r.Context())
	e, err := s.libraryUC.GrantFree(r.Context(), caller.UserID, chi.URLParam(r, "bookId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, libraryEntryResponse{e.BookID, string(e.Status), e.Progress})
}

type progressRequest struct {
	Progress float64 `json:"progress"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	caller := PrincipalFrom(r.Context())
	if err := s.libraryUC.UpdateProgress(r.Context(), caller, caller.UserID, chi.URLParam(r, "bookId"), req.Progress); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
