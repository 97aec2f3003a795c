// File: internal/infra/web/server.go
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"paysession/internal/infra/worker"
	"paysession/internal/usecase"
)

// Server exposes the order, session, and credit surfaces plus the payment
// webhook. The results route is reachable with a capability token alone;
// everything else identifies the caller through the X-User-ID header set by
// the fronting auth proxy.
type Server struct {
	orderUC       usecase.OrderUseCase
	confirmUC     usecase.ConfirmUseCase
	sessionUC     usecase.SessionUseCase
	creditUC      usecase.CreditUseCase
	regen         *worker.RegenProcessor
	webhookSecret string
	log           *zerolog.Logger
	httpSrv       *http.Server
}

func NewServer(
	orderUC usecase.OrderUseCase,
	confirmUC usecase.ConfirmUseCase,
	sessionUC usecase.SessionUseCase,
	creditUC usecase.CreditUseCase,
	regen *worker.RegenProcessor,
	webhookSecret string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		orderUC:       orderUC,
		confirmUC:     confirmUC,
		sessionUC:     sessionUC,
		creditUC:      creditUC,
		regen:         regen,
		webhookSecret: webhookSecret,
		log:           &l,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID)
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))
	r.Use(Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhook/payment", s.handleWebhook)
		r.Get("/results/{sessionID}", s.handleResult)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/orders", s.handleCreateOrder)
			r.Get("/orders", s.handleListOrders)
			r.Get("/orders/{orderID}", s.handleGetOrder)
			r.Post("/orders/{orderID}/cancel", s.handleCancelOrder)

			r.Post("/sessions", s.handleStartSession)
			r.Post("/sessions/{sessionID}/messages", s.handleSendMessage)
			r.Post("/sessions/{sessionID}/consume", s.handleConsumeTime)
			r.Post("/sessions/{sessionID}/cancel", s.handleCancelSession)

			r.Get("/credits", s.handleCreditBalance)
			r.Post("/credits", s.handlePurchaseCredit)
		})
	})
	return r
}

// requireUser pulls the authenticated subject injected by the edge proxy.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-ID") == "" {
			writeErrCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string { return r.Header.Get("X-User-ID") }

func (s *Server) Start(port int) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
