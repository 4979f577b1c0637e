/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in the access log
  2. RealIP:     Client address behind a proxy
  3. AccessLog:  One zerolog line per request (status, bytes, elapsed)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for a review frontend

ROUTE GROUPS:
  /api/punches          Punch ingestion
  /api/employees/*      Days, shifts, aggregates per employee
  /api/shifts           Planning
  /api/leave            Leave calendar
  /api/anomalies/*      Anomaly review
  /api/aggregates       Team reporting
  /api/recompute        Range recompute
  /api/scenarios/*      Demo scenarios (reset the store)

SECURITY NOTE:
  No authentication middleware. The reviewer identity is taken from the
  request body of /process as given.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	// SlowRequest logs requests at least this long at warn level. Zero
	// disables it.
	SlowRequest time.Duration
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opt RouterOptions) *chi.Mux {
	origins := opt.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(h.Log, opt.SlowRequest))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/punches", h.RecordPunch)
		r.Put("/shifts", h.SaveShift)
		r.Post("/leave", h.CreateLeave)
		r.Post("/recompute", h.RecomputeRange)
		r.Get("/aggregates", h.GetTeamAggregate)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{id}/days/{date}", h.GetDay)
			r.Post("/{id}/days/{date}/recompute", h.RecomputeDay)
			r.Get("/{id}/shifts/{date}", h.GetShift)
			r.Get("/{id}/aggregate", h.GetAggregate)
		})

		r.Route("/anomalies", func(r chi.Router) {
			r.Get("/", h.ListAnomalies)
			r.Get("/{id}", h.GetAnomaly)
			r.Post("/{id}/process", h.ProcessAnomaly)
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

// AccessLog logs method, path, status, bytes and elapsed time for every
// request.
func AccessLog(log zerolog.Logger, slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			evt := log.Info()
			switch {
			case status >= http.StatusInternalServerError:
				evt = log.Error()
			case slow > 0 && elapsed >= slow:
				evt = log.Warn()
			}
			evt.Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("request done")
		})
	}
}
