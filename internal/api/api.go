package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"

	"finge/pkg/finge"
)

// RouterOptions tunes the HTTP API.
type RouterOptions struct {
	Logger *slog.Logger
	// Epsilon is the exploration rate used when a request does not carry one.
	Epsilon float64
	// UploadLimit caps image uploads per client IP within UploadWindow.
	UploadLimit  int
	UploadWindow time.Duration
	// Registry receives the API metrics; a private registry is used when nil.
	Registry *prometheus.Registry
	// NewRand returns the random source for a recommendation request.
	NewRand func() finge.Rand
	// ImageStore names the configured image backend for /api/storage.
	ImageStore string
}

// NewRouter builds the HTTP API router.
func NewRouter(core *finge.Core, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := newMetrics(registry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(recoveryLoggingMiddleware(logger))
	r.Use(m.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	h := &handler{
		core:       core,
		logger:     logger,
		metrics:    m,
		epsilon:    opts.Epsilon,
		newRand:    opts.NewRand,
		imageStore: opts.ImageStore,
	}
	if h.imageStore == "" {
		h.imageStore = "local"
	}
	if h.newRand == nil {
		h.newRand = func() finge.Rand { return finge.NewRand() }
	}

	r.Get("/api/health", h.health)
	r.Get("/api/storage", h.getStorageInfo)
	r.Handle("/metrics", m.handler())

	// Quotes
	r.Get("/stock/{ticker}", h.getStock)
	r.Get("/api/stocks/{ticker}/card", h.getStockCard)

	// Scans
	r.With(httprate.LimitByIP(defaultInt(opts.UploadLimit, 20), defaultDuration(opts.UploadWindow, time.Minute))).
		Post("/upload-image", h.uploadImage)
	r.Get("/api/scans", h.listScans)
	r.Get("/api/scans/{id}", h.getScan)

	// Recommendations
	r.Get("/api/recommend", h.recommendTicker)
	r.Post("/api/recommendations/select", h.selectCandidate)

	// Catalog
	r.Get("/api/catalog", h.listCatalog)
	r.Put("/api/catalog/{ticker}", h.upsertCatalogEntry)
	r.Delete("/api/catalog/{ticker}", h.deleteCatalogEntry)

	return r
}

type handler struct {
	core       *finge.Core
	logger     *slog.Logger
	metrics    *metrics
	epsilon    float64
	newRand    func() finge.Rand
	imageStore string
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
