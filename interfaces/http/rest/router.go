package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"districtgraph/interfaces/http/rest/handlers"
	"districtgraph/interfaces/http/rest/middleware"
	pkgerrors "districtgraph/pkg/errors"
	"districtgraph/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Engine is the application surface the router exposes
type Engine interface {
	handlers.UnitEngine
	handlers.GroupReader
	handlers.Auditor
}

// RouterConfig controls the optional parts of the router
type RouterConfig struct {
	EnableCORS     bool
	AllowedOrigins []string
	Checks         map[string]ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	engine    Engine
	errors    *pkgerrors.ErrorHandler
	collector *observability.Collector
	config    RouterConfig
	logger    *zap.Logger
}

// NewRouter creates a new router instance. collector may be nil.
func NewRouter(
	engine Engine,
	errorHandler *pkgerrors.ErrorHandler,
	collector *observability.Collector,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		engine:    engine,
		errors:    errorHandler,
		collector: collector,
		config:    config,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestIDHeader)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(middleware.Metrics(rt.collector.HTTPRequests))
	}

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.config.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Location"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/units", func(r chi.Router) {
			unitHandler := handlers.NewUnitHandler(rt.engine, rt.errors, rt.logger)
			r.Post("/", unitHandler.CreateUnit)
			r.Post("/merge", unitHandler.MergeUnits)
			r.Get("/{unitID}", unitHandler.GetUnit)
			r.Put("/{unitID}", unitHandler.UpdateUnit)
			r.Delete("/{unitID}", unitHandler.DeleteUnit)
		})

		groupHandler := handlers.NewGroupHandler(rt.engine, rt.engine, rt.errors, rt.logger)
		r.Get("/groups/{groupID}", groupHandler.GetGroup)
		r.Get("/audit", groupHandler.Audit)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	writeStatus(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
}

// readinessCheck runs every registered check and reports the failures
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	failures := make(map[string]string)
	for name, check := range rt.config.Checks {
		if err := check(req.Context()); err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		writeStatus(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"checks": failures,
		})
		return
	}
	writeStatus(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
