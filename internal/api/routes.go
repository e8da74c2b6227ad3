// Package api wires the HTTP surface: a chi router with request IDs, panic
// recovery, the access log, CORS and optional bearer-token auth.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/basakesin/mri-defacing-platform/internal/api/handlers"
	apmiddleware "github.com/basakesin/mri-defacing-platform/internal/api/middleware"
	"github.com/basakesin/mri-defacing-platform/internal/domain/job"
	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
)

// Deps are the services behind the routes.
type Deps struct {
	Pipeline *pipeline.Service
	// Jobs serves /jobs; nil leaves the routes unregistered.
	Jobs job.Store
	// Auth guards /deface and /jobs when set.
	Auth           apmiddleware.TokenParser
	CORSOrigin     string
	MaxUploadBytes int64
}

// NewRouter creates the chi router.
//
// Public: GET /, GET /methods, GET /health.
// Guarded when Deps.Auth is set: POST /deface, GET /jobs, GET /jobs/{id}.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(apmiddleware.CORS(d.CORSOrigin))

	methodsHandler := handlers.NewMethodsHandler(d.Pipeline.Registry())
	r.Get("/", handlers.Index)
	r.Get("/methods", methodsHandler.ListMethods)
	r.Get("/health", methodsHandler.Health)

	r.Group(func(r chi.Router) {
		if d.Auth != nil {
			r.Use(apmiddleware.Auth(d.Auth))
		}

		defaceHandler := handlers.NewDefaceHandler(d.Pipeline, d.MaxUploadBytes)
		r.Post("/deface", defaceHandler.Deface)

		if d.Jobs != nil {
			jobHandler := handlers.NewJobHandler(d.Jobs)
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
