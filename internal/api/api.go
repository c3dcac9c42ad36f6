package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/homelab/labpool/internal/logger"
	"github.com/jbweber/homelab/labpool/internal/metrics"
	"github.com/jbweber/homelab/labpool/internal/teams"
)

// API exposes the team manager over HTTP
type API struct {
	teams teams.Manager
}

// NewAPI creates a new API backed by the given manager
func NewAPI(mgr teams.Manager) *API {
	return &API{teams: mgr}
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/courses/{courseID}", func(r chi.Router) {
		r.Post("/proposals", a.proposeTeamHandler)
		r.Get("/teams", a.listCourseTeamsHandler)
		r.Get("/available-students", a.availableStudentsHandler)
	})

	r.Post("/proposals/{token}/register", a.registerTeamHandler)

	r.Route("/teams/{teamID}", func(r chi.Router) {
		r.Get("/", a.getTeamHandler)
		r.Delete("/", a.evictTeamHandler)
		r.Post("/enable", a.enableTeamHandler)
		r.Put("/caps", a.updateCapsHandler)
		r.Get("/usage", a.teamUsageHandler)

		r.Route("/vms", func(r chi.Router) {
			r.Get("/", a.listVmsHandler)
			r.Post("/", a.createVmHandler)
			r.Get("/{vmID}", a.getVmHandler)
			r.Patch("/{vmID}", a.resizeVmHandler)
			r.Delete("/{vmID}", a.deleteVmHandler)
			r.Put("/{vmID}/status", a.changeStatusHandler)
			r.Post("/{vmID}/owners", a.addOwnersHandler)
		})
	})
}

// RouterOptions configures the middleware stack around the API
type RouterOptions struct {
	Logger    *logrus.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer // served on /metrics when set
	JWTSecret string
	Health    func(ctx context.Context) error
}

// NewRouter builds the service router: request ids, logging, metrics and
// panic recovery around /api/v1, plus /healthz and /metrics.
func NewRouter(a *API, opts RouterOptions) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(log))
	r.Use(opts.Metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			if err := opts.Health(r.Context()); err != nil {
				logger.FromContext(r.Context()).WithError(err).Warn("health check failed")
				writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequesterMiddleware(opts.JWTSecret))
		a.RegisterRoutes(r)
	})
	return r
}
