package v1

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/apexlend/docpipeline/internal/config"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg config.HTTP, h *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/applications", h.CreateApplication)

		r.Route("/applications/{application_id}", func(r chi.Router) {
			r.Post("/documents", h.UploadDocument)
			r.Get("/documents", h.ListDocuments)
			r.Get("/analysis", h.GetAnalysis)
			r.Get("/audit", h.AuditApplication)
		})

		r.Route("/documents/{document_id}", func(r chi.Router) {
			r.Post("/extract", h.TriggerExtraction)
			r.Post("/analyze", h.DeriveAnalysis)
		})

		r.Get("/audit", h.AuditAll)

		r.Get("/policies", h.ListPolicies)
		r.Post("/policies", h.UpsertPolicy)
		r.Post("/sweep", h.Sweep)

		r.Get("/holds", h.ListHolds)
		r.Post("/holds", h.CreateHold)
		r.Delete("/holds/{hold_id}", h.DeleteHold)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			Handler:      r,
		},
	}
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
