package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// RouteRegistrar is implemented by every handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// NewRouter mounts the handler groups, docs and the metrics endpoint behind
// the request ID and instrumentation middleware
func NewRouter(logger *logging.StructuredLogger, m *metrics.Collector, metricsHandler http.Handler, groups ...RouteRegistrar) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, Instrument(logger, m))

	for _, g := range groups {
		g.RegisterRoutes(router)
	}
	RegisterDocs(router)

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, APIResponse{Success: false, Error: "not found"}, http.StatusNotFound)
	})

	return router
}
