package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/pkg/api/auth"
	"github.com/marmos91/zcore/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/zcore/pkg/api/middleware"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (when metrics are enabled)
//   - POST /api/v1/auth/login - Admin authentication
//   - POST /api/v1/auth/refresh - Token refresh
//   - GET /api/v1/auth/me - Current user info
//   - /api/v1/snapshots/* - Snapshot batches (admin only)
//   - /api/v1/bookmarks/* - Bookmark batches (admin only)
//   - /api/v1/holds/* - Hold batches (admin only)
//   - /api/v1/datasets/* - Dataset operations (admin only)
//   - POST /api/v1/pools/sync - Pool sync (admin only)
//   - /api/v1/journal/* - Operation journal (admin only)
func NewRouter(deps Deps, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check handlers
	healthHandler := handlers.NewHealthHandler(deps.Client, deps.Journal)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Prometheus metrics - unauthenticated, present only when enabled
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(deps.Credentials, jwtService)
	snapshotHandler := handlers.NewSnapshotHandler(deps.Client)
	bookmarkHandler := handlers.NewBookmarkHandler(deps.Client)
	holdHandler := handlers.NewHoldHandler(deps.Client)
	datasetHandler := handlers.NewDatasetHandler(deps.Client)
	journalHandler := handlers.NewJournalHandler(deps.Journal)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes - mostly unauthenticated
		r.Route("/auth", func(r chi.Router) {
			// Public endpoints
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Authenticated endpoint
			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		// Management routes - require the admin credential
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))
			r.Use(apiMiddleware.RequireAdmin())

			r.Route("/snapshots", func(r chi.Router) {
				r.Post("/", snapshotHandler.Create)
				r.Post("/destroy", snapshotHandler.Destroy)
				r.Get("/space", snapshotHandler.Space)
				r.Get("/range-space", snapshotHandler.RangeSpace)
			})

			r.Route("/bookmarks", func(r chi.Router) {
				r.Post("/", bookmarkHandler.Create)
				r.Get("/", bookmarkHandler.List)
				r.Post("/destroy", bookmarkHandler.Destroy)
			})

			r.Route("/holds", func(r chi.Router) {
				r.Post("/", holdHandler.Create)
				r.Get("/", holdHandler.List)
				r.Post("/release", holdHandler.Release)
			})

			r.Route("/datasets", func(r chi.Router) {
				r.Post("/", datasetHandler.Create)
				r.Get("/", datasetHandler.Exists)
				r.Get("/list", datasetHandler.List)
				r.Post("/destroy", datasetHandler.Destroy)
				r.Post("/clone", datasetHandler.Clone)
				r.Post("/promote", datasetHandler.Promote)
				r.Post("/rename", datasetHandler.Rename)
				r.Post("/rollback", datasetHandler.Rollback)
			})

			r.Route("/pools", func(r chi.Router) {
				r.Post("/sync", datasetHandler.Sync)
			})

			r.Route("/journal", func(r chi.Router) {
				r.Get("/", journalHandler.List)
				r.Get("/{id}", journalHandler.Get)
				r.Post("/prune", journalHandler.Prune)
			})
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck and metrics requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if isHealthPath(r.URL.Path) || r.URL.Path == "/metrics" {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
