package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/reposync/internal/rag"
	"github.com/sevigo/reposync/internal/repomanager"
	"github.com/sevigo/reposync/internal/server/handler"
)

// NewRouter creates and configures a new HTTP router with middleware and
// the repository and query routes.
func NewRouter(mgr repomanager.RepositoryManager, engine *rag.Engine, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	repoHandler := handler.NewRepositoryHandler(mgr, logger)
	queryHandler := handler.NewQueryHandler(engine, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/repositories", func(r chi.Router) {
			r.Post("/", repoHandler.Register)
			r.Get("/", repoHandler.List)
			r.Get("/{id}", repoHandler.Get)
			r.Delete("/{id}", repoHandler.Delete)
			r.Post("/{id}/reindex", repoHandler.Reindex)
			r.Get("/{id}/events", repoHandler.Events)
		})
		r.Post("/query", queryHandler.Ask)
		r.Post("/query/stream", queryHandler.Stream)
	})

	return r
}
