package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"floodguard/internal/models"
	"floodguard/internal/repository"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// HistoryService answers queries over stored snapshots and submissions
type HistoryService interface {
	GetStationStatistics(ctx context.Context, stationID string, window time.Duration) (*models.StationStatistics, error)
	GetLatestSnapshot(ctx context.Context, stationID string) (*models.FloodSnapshot, error)
	GetSnapshots(ctx context.Context, filter repository.SnapshotFilter) ([]*models.FloodSnapshot, int, error)
	GetSubmissions(ctx context.Context, filter repository.SubmissionFilter) ([]*models.LedgerSubmission, int, error)
}

// HistoryHandler handles the snapshot history endpoints
type HistoryHandler struct {
	history        HistoryService
	defaultStation string
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewHistoryHandler creates a new history handler. A nil service answers 503
// on every history route.
func NewHistoryHandler(history HistoryService, defaultStation string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HistoryHandler {
	return &HistoryHandler{
		history:        history,
		defaultStation: defaultStation,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// RegisterRoutes registers all history routes
func (h *HistoryHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/snapshots", h.GetSnapshots).Methods(http.MethodGet)
	api.HandleFunc("/snapshots/latest", h.GetLatestSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/snapshots/stats", h.GetStatistics).Methods(http.MethodGet)
	api.HandleFunc("/submissions", h.GetSubmissions).Methods(http.MethodGet)
}

func (h *HistoryHandler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.history == nil {
		sendError(w, r, h.metrics, "history is disabled: no database configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *HistoryHandler) station(r *http.Request) string {
	if s := r.URL.Query().Get("station_id"); s != "" {
		return s
	}
	return h.defaultStation
}

// parseTime accepts RFC 3339 timestamps or plain YYYY-MM-DD dates
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// GetSnapshots handles GET /api/snapshots
func (h *HistoryHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()
	query := r.URL.Query()
	page, limit, offset := pagination(r)

	filter := repository.SnapshotFilter{
		Limit:  limit,
		Offset: offset,
	}

	if stationID := query.Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}

	if sinceStr := query.Get("since"); sinceStr != "" {
		since, err := parseTime(sinceStr)
		if err != nil {
			sendError(w, r, h.metrics, "invalid since format, expected RFC 3339 or YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Since = &since
	}

	if untilStr := query.Get("until"); untilStr != "" {
		until, err := parseTime(untilStr)
		if err != nil {
			sendError(w, r, h.metrics, "invalid until format, expected RFC 3339 or YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Until = &until
	}

	if atRiskStr := query.Get("at_risk"); atRiskStr != "" {
		atRisk, err := strconv.ParseBool(atRiskStr)
		if err != nil {
			sendError(w, r, h.metrics, "invalid at_risk, expected true or false", http.StatusBadRequest)
			return
		}
		filter.AtRiskOnly = atRisk
	}

	snapshots, total, err := h.history.GetSnapshots(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_SNAPSHOTS_ERROR] Failed to get snapshots", logging.Fields{
			"filter": filter,
		}, err)
		sendError(w, r, h.metrics, "failed to retrieve snapshots", http.StatusInternalServerError)
		return
	}

	sendJSON(w, paginated(snapshots, total, page, limit), http.StatusOK)
}

// GetLatestSnapshot handles GET /api/snapshots/latest
func (h *HistoryHandler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()
	stationID := h.station(r)

	snapshot, err := h.history.GetLatestSnapshot(ctx, stationID)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_LATEST_ERROR] Failed to get latest snapshot", logging.Fields{
			"station_id": stationID,
		}, err)
		sendFailure(w, r, h.metrics, err)
		return
	}

	sendData(w, snapshot)
}

// GetStatistics handles GET /api/snapshots/stats?station_id=&window=24h
func (h *HistoryHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()
	stationID := h.station(r)

	var window time.Duration
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		d, err := time.ParseDuration(windowStr)
		if err != nil || d <= 0 {
			sendError(w, r, h.metrics, "invalid window, expected a positive duration such as 24h", http.StatusBadRequest)
			return
		}
		window = d
	}

	stats, err := h.history.GetStationStatistics(ctx, stationID, window)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATISTICS_ERROR] Failed to get statistics", logging.Fields{
			"station_id": stationID,
		}, err)
		sendFailure(w, r, h.metrics, err)
		return
	}

	sendData(w, stats)
}

// GetSubmissions handles GET /api/submissions
func (h *HistoryHandler) GetSubmissions(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()
	query := r.URL.Query()
	page, limit, offset := pagination(r)

	filter := repository.SubmissionFilter{
		Limit:  limit,
		Offset: offset,
	}

	if stationID := query.Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}

	if status := query.Get("status"); status != "" {
		if status != models.SubmissionConfirmed && status != models.SubmissionFailed {
			sendError(w, r, h.metrics, "invalid status, expected confirmed or failed", http.StatusBadRequest)
			return
		}
		filter.Status = &status
	}

	submissions, total, err := h.history.GetSubmissions(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_SUBMISSIONS_ERROR] Failed to get submissions", logging.Fields{
			"filter": filter,
		}, err)
		sendError(w, r, h.metrics, "failed to retrieve submissions", http.StatusInternalServerError)
		return
	}

	sendJSON(w, paginated(submissions, total, page, limit), http.StatusOK)
}
