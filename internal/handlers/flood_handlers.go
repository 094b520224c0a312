package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"floodguard/internal/models"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// MetricsFetcher assembles flood metrics for a station
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, station string, product models.Product) (*models.FloodMetrics, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// FloodHandler handles the NOAA proxy and health endpoints
type FloodHandler struct {
	fetcher MetricsFetcher
	health  HealthChecker
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	version string
}

// NewFloodHandler creates a new flood handler. health may be nil when the
// service runs without a database.
func NewFloodHandler(fetcher MetricsFetcher, health HealthChecker, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, version string) *FloodHandler {
	return &FloodHandler{
		fetcher: fetcher,
		health:  health,
		logger:  logger,
		metrics: metricsCollector,
		version: version,
	}
}

// RegisterRoutes registers all flood routes
func (h *FloodHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/noaa", h.GetNOAAMetrics).Methods(http.MethodGet)
	router.HandleFunc("/api/noaa", h.MethodNotAllowed)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}

// GetNOAAMetrics handles GET /api/noaa?type=&station=
func (h *FloodHandler) GetNOAAMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product := models.ParseProduct(r.URL.Query().Get("type"))
	station := r.URL.Query().Get("station")

	data, err := h.fetcher.FetchMetrics(ctx, station, product)
	if err != nil {
		h.logger.Error(ctx, "[API_ERROR] Failed to fetch NOAA metrics", logging.Fields{
			"station": station,
			"product": product,
		}, err)

		if models.KindOf(err) == models.KindDataUnavailable {
			sendError(w, r, h.metrics, models.ReasonOf(err), http.StatusBadGateway)
			return
		}
		sendError(w, r, h.metrics, "Failed to fetch NOAA data", http.StatusInternalServerError)
		return
	}

	sendData(w, data)
}

// MethodNotAllowed answers any non-GET request to the NOAA proxy
func (h *FloodHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	sendError(w, r, h.metrics, "Method not allowed", http.StatusMethodNotAllowed)
}

// HealthCheck handles GET /health
func (h *FloodHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	statusCode := http.StatusOK
	database := "disabled"

	if h.health != nil {
		database = "ok"
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Error(ctx, "[HEALTH_CHECK_FAILED] Database health check failed", logging.Fields{}, err)
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
			database = "unreachable"
		}
	}

	sendJSON(w, map[string]interface{}{
		"status":    status,
		"version":   h.version,
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, statusCode)
}
