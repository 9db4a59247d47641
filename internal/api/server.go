package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"policybot/internal/domain"
	"policybot/internal/service"
)

// PolicyPort is the HTTP-facing subset of the policy service.
type PolicyPort interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
	Reindex(ctx context.Context) (service.Stats, error)
	Stats() service.Stats
	Ready() bool
}

// Server is the HTTP API server for the policy chatbot.
type Server struct {
	router     chi.Router
	service    PolicyPort
	adminToken string
	log        *slog.Logger
}

// NewServer creates and configures the HTTP server. An empty adminToken
// disables the admin endpoints.
func NewServer(svc PolicyPort, adminToken string, log *slog.Logger) *Server {
	s := &Server{
		service:    svc,
		adminToken: adminToken,
		log:        log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Get("/api/index/stats", s.handleStats)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.adminToken, s.log))
		r.Post("/api/admin/reindex", s.handleReindex)
	})

	s.router = r
}
