// Package http exposes the session-scoped ledger over a JSON REST API.
// Every route under /api/v1 except session creation requires a session
// identity, carried in the X-session-ID header or the session_id query
// parameter.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"dime/internal/category"
	"dime/internal/goals"
	"dime/internal/ledger"
	applog "dime/internal/log"
	"dime/internal/middleware/ratelimit"
	"dime/internal/middleware/trace"
	"dime/internal/notify"
	"dime/internal/payments"
	"dime/internal/rules"
	"dime/internal/session"
)

type Server struct {
	http.Server

	sessions   *session.Store
	categories *category.Service
	rules      *rules.Engine
	ledger     *ledger.Service
	goals      *goals.Tracker
	payments   *payments.Tracker
	messages   *notify.Engine

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(
	addr string,
	sessions *session.Store,
	categories *category.Service,
	ruleEngine *rules.Engine,
	ledgerSvc *ledger.Service,
	goalTracker *goals.Tracker,
	payTracker *payments.Tracker,
	messages *notify.Engine,
) *Server {
	s := &Server{
		sessions:   sessions,
		categories: categories,
		rules:      ruleEngine,
		ledger:     ledgerSvc,
		goals:      goalTracker,
		payments:   payTracker,
		messages:   messages,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: 300,
			CleanupInterval:   5 * time.Minute,
		}),
	}

	tracer := trace.NewMiddleware(clientIP)
	httpLogger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	r := chi.NewRouter()
	r.Use(tracer.Middleware)
	r.Use(applog.Middleware(httpLogger))
	r.Use(applog.RequestIDMiddleware(func(req *http.Request) string {
		return trace.GetRequestID(req.Context())
	}))
	r.Use(s.limiter.Middleware(clientIP, nil))

	r.Get("/healthz", handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/sessions", s.handleCreateSession)

		api.Group(func(g chi.Router) {
			g.Use(s.withSession)

			g.Route("/categories", func(cr chi.Router) {
				cr.Get("/", s.handleListCategories)
				cr.Post("/", s.handleCreateCategory)
				cr.Get("/{id}", s.handleGetCategory)
				cr.Put("/{id}", s.handleUpdateCategory)
				cr.Delete("/{id}", s.handleDeleteCategory)
			})

			g.Route("/categoryRules", func(rr chi.Router) {
				rr.Get("/", s.handleListRules)
				rr.Post("/", s.handleCreateRule)
				rr.Get("/{id}", s.handleGetRule)
				rr.Put("/{id}", s.handleUpdateRule)
				rr.Delete("/{id}", s.handleDeleteRule)
			})

			g.Route("/transactions", func(tr chi.Router) {
				tr.Get("/", s.handleListTransactions)
				tr.Post("/", s.handleCreateTransaction)
				tr.Get("/{id}", s.handleGetTransaction)
				tr.Put("/{id}", s.handleUpdateTransaction)
				tr.Delete("/{id}", s.handleDeleteTransaction)
				tr.Patch("/{id}/category", s.handleAssignCategory)
			})

			g.Route("/savingGoals", func(gr chi.Router) {
				gr.Get("/", s.handleListGoals)
				gr.Post("/", s.handleCreateGoal)
				gr.Delete("/{id}", s.handleDeleteGoal)
			})

			g.Route("/paymentRequests", func(pr chi.Router) {
				pr.Get("/", s.handleListPaymentRequests)
				pr.Post("/", s.handleCreatePaymentRequest)
			})

			g.Route("/messages", func(mr chi.Router) {
				mr.Get("/", s.handleListMessages)
				mr.Put("/{id}", s.handleMarkMessageRead)
			})

			g.Get("/balance/history", s.handleBalanceHistory)
		})
	})

	s.Server = http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Shutdown stops the limiter's cleanup goroutine and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
