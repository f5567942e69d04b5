package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"bookstore-payments/internal/infra/metrics"
	"bookstore-payments/internal/usecase"
)

// ReceiptOpener mints and honors signed expiring links to stored payment
// proofs. Satisfied by storage.DiskReceiptStore.
type ReceiptOpener interface {
	SignedURL(path string, ttl time.Duration) (string, error)
	Open(path string, exp int64, sig string) ([]byte, error)
}

// Server is the HTTP edge: user purchase routes, the admin review surface and
// the bot/gateway webhook, all sharing one router and middleware chain.
type Server struct {
	purchaseUC usecase.PurchaseUseCase
	adminUC    usecase.AdminUseCase
	requestUC  usecase.PaymentRequestUseCase
	libraryUC  usecase.LibraryUseCase
	guard      *Guard
	receipts   ReceiptOpener

	instructions string
	log          *zerolog.Logger
	server       *http.Server
}

func NewServer(
	purchaseUC usecase.PurchaseUseCase,
	adminUC usecase.AdminUseCase,
	requestUC usecase.PaymentRequestUseCase,
	libraryUC usecase.LibraryUseCase,
	guard *Guard,
	receipts ReceiptOpener,
	instructions string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		purchaseUC:   purchaseUC,
		adminUC:      adminUC,
		requestUC:    requestUC,
		libraryUC:    libraryUC,
		guard:        guard,
		receipts:     receipts,
		instructions: instructions,
		log:          logger,
	}
}

// Routes builds the full router. Exposed separately from Start so tests can
// drive it with httptest.
func (s *Server) Routes() http.Handler {
	// Safe to repeat; registration is once-guarded. Guarantees the handler
	// below never serves an empty registry.
	metrics.MustRegister()

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.guard.Resolve())

		r.Route("/purchases", func(r chi.Router) {
			r.Use(s.guard.RequireUser())
			r.Post("/", s.handleInitiate)
			r.Get("/", s.handleListOwn)
			r.Get("/{id}", s.handleGetPurchase)
			r.Post("/{id}/transaction", s.handleSubmitTransaction)
			r.Post("/{id}/proof", s.handleSubmitProof)
			r.Post("/{id}/cancel", s.handleCancel)
		})

		r.Route("/payment-requests", func(r chi.Router) {
			r.Use(s.guard.RequireUser())
			r.Post("/", s.handleCreatePaymentRequest)
			r.Post("/{id}/cancel", s.handleCancelPaymentRequest)
		})

		r.Route("/library", func(r chi.Router) {
			r.Use(s.guard.RequireUser())
			r.Get("/", s.handleListLibrary)
			r.Post("/free/{bookId}", s.handleGrantFree)
			r.Post("/{bookId}/progress", s.handleUpdateProgress)
		})

		// Admin routes rely on the use case's own role check; the router only
		// requires an authenticated user.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.guard.RequireUser())
			r.Get("/purchases/pending", s.handleListPending)
			r.Post("/purchases/{id}/verify", s.handleVerify)
			r.Get("/purchases/{id}/submissions", s.handleReviewSubmissions)
			r.Get("/payment-requests", s.handleListPaymentRequests)
			r.Post("/payment-requests/{id}/status", s.handleUpdatePaymentRequest)
		})
	})

	// Signed receipt links carry their own auth; no session required.
	r.Get("/receipts/*", s.handleReceiptDownload)

	r.Route("/webhook", func(r chi.Router) {
		r.Use(s.guard.RequireBot())
		r.Get("/payments", s.handlePaymentWebhook)
		r.Get("/purchases/{token}", s.handleFindByToken)
		r.Post("/purchases/{token}/telegram", s.handleAttachTelegram)
	})

	return Chain(r, Recover(s.log), TraceID(s.log), RequestLog(s.log), Timeout(30*time.Second))
}


func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
