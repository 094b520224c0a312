package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"floodguard/internal/models"
	"floodguard/internal/services"
	"floodguard/internal/wallet"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// LedgerReader is the read side of the contract gateway
type LedgerReader interface {
	ReadMetrics(ctx context.Context) (*models.OnChainMetrics, error)
	ReadBalance(ctx context.Context) (string, error)
	ReadDeposit(ctx context.Context, address string) (*models.Deposit, error)
	ReadFundsInfo(ctx context.Context) (*models.FundsInfo, error)
	Debug(ctx context.Context, sess *wallet.Session) *models.DebugInfo
}

// SyncRunner runs one oracle cycle
type SyncRunner interface {
	RunOnce(ctx context.Context, station string) (*services.SyncResult, error)
}

// LedgerHandler exposes contract reads and the guarded sync trigger
type LedgerHandler struct {
	ledger   LedgerReader
	session  *wallet.Session
	syncer   SyncRunner
	apiToken string
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewLedgerHandler creates a new ledger handler. A nil ledger answers 503 on
// every ledger route.
func NewLedgerHandler(ledger LedgerReader, session *wallet.Session, syncer SyncRunner, apiToken string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledger,
		session:  session,
		syncer:   syncer,
		apiToken: apiToken,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// RegisterRoutes registers all ledger routes
func (h *LedgerHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/ledger").Subrouter()

	api.HandleFunc("/metrics", h.GetMetrics).Methods(http.MethodGet)
	api.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet)
	api.HandleFunc("/funds", h.GetFunds).Methods(http.MethodGet)
	api.HandleFunc("/debug", h.GetDebug).Methods(http.MethodGet)
	api.HandleFunc("/deposits/{address}", h.GetDeposit).Methods(http.MethodGet)
	api.HandleFunc("/sync", RequireToken(h.apiToken, h.metrics, h.TriggerSync)).Methods(http.MethodPost)
}

func (h *LedgerHandler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.ledger == nil {
		sendError(w, r, h.metrics, "ledger integration is disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *LedgerHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(r.Context(), "[API_ERROR] Ledger request failed", logging.Fields{
		"operation": op,
		"kind":      models.KindOf(err),
	}, err)
	sendFailure(w, r, h.metrics, err)
}

// GetMetrics handles GET /api/ledger/metrics
func (h *LedgerHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	data, err := h.ledger.ReadMetrics(r.Context())
	if err != nil {
		h.fail(w, r, "readMetrics", err)
		return
	}
	sendData(w, data)
}

// GetBalance handles GET /api/ledger/balance
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	balance, err := h.ledger.ReadBalance(r.Context())
	if err != nil {
		h.fail(w, r, "readBalance", err)
		return
	}
	sendData(w, map[string]string{"balance": balance})
}

// GetFunds handles GET /api/ledger/funds
func (h *LedgerHandler) GetFunds(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	data, err := h.ledger.ReadFundsInfo(r.Context())
	if err != nil {
		h.fail(w, r, "readFundsInfo", err)
		return
	}
	sendData(w, data)
}

// GetDebug handles GET /api/ledger/debug. Field failures are reported inside
// the payload, so this never fails as a whole.
func (h *LedgerHandler) GetDebug(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	sendData(w, h.ledger.Debug(r.Context(), h.session))
}

// GetDeposit handles GET /api/ledger/deposits/{address}
func (h *LedgerHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	address := mux.Vars(r)["address"]

	data, err := h.ledger.ReadDeposit(r.Context(), address)
	if err != nil {
		h.fail(w, r, "readDeposit", err)
		return
	}
	sendData(w, data)
}

// TriggerSync handles POST /api/ledger/sync?station=
func (h *LedgerHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		sendError(w, r, h.metrics, "sync service is not configured", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	station := r.URL.Query().Get("station")

	h.logger.Info(ctx, "[SYNC_TRIGGER] Sync requested over HTTP", logging.Fields{
		"station": station,
	})

	result, err := h.syncer.RunOnce(ctx, station)
	if err != nil {
		h.logger.Error(ctx, "[API_ERROR] Sync run failed", logging.Fields{
			"station": station,
			"kind":    models.KindOf(err),
		}, err)

		status := statusFor(err)
		h.metrics.RecordAPIError(string(models.KindOf(err)), routeName(r))
		sendJSON(w, APIResponse{
			Success: false,
			Data:    result,
			Error:   reasonFor(err, status),
			Kind:    string(models.KindOf(err)),
		}, status)
		return
	}

	sendData(w, result)
}
