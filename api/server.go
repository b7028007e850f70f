/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (httplog, ECS schema)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*      Payroll, salary structure and increments
  /api/organizations/*  Organization batch payroll
  /api/payroll-runs/*   Persisted monthly runs
  /api/scenarios/*      Demo data
  /health               Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// RouterOptions configures the middleware around the handlers.
type RouterOptions struct {
	AllowedOrigins []string
	// Logger receives request logs; nil disables request logging.
	Logger   *slog.Logger
	LogLevel slog.Level
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.Logger != nil {
		r.Use(httplog.RequestLogger(opts.Logger, &httplog.Options{
			Level:  opts.LogLevel,
			Schema: httplog.SchemaECS,
		}))
	}
	r.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/payroll", h.GetEmployeePayroll)
			r.Get("/salary", h.GetSalary)
			r.Put("/salary", h.SetSalary)
			r.Post("/increments", h.ApplyIncrement)
			r.Put("/increments/{entryID}", h.EditIncrement)
		})

		r.Get("/organizations/{id}/payroll", h.GetOrganizationPayroll)

		r.Route("/payroll-runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/process", h.ProcessMonth)
			r.Post("/scheduler/run", h.RunScheduler)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
