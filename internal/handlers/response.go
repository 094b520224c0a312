package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"floodguard/internal/models"
	"floodguard/internal/repository"
	"floodguard/pkg/metrics"
)

// APIResponse is the envelope of every JSON endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// sendJSON sends a JSON response
func sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendData sends a successful envelope
func sendData(w http.ResponseWriter, data interface{}) {
	sendJSON(w, APIResponse{Success: true, Data: data}, http.StatusOK)
}

// sendError sends a failed envelope with message
func sendError(w http.ResponseWriter, r *http.Request, m *metrics.Collector, message string, statusCode int) {
	m.RecordAPIError(strconv.Itoa(statusCode), routeName(r))
	sendJSON(w, APIResponse{Success: false, Error: message}, statusCode)
}

// sendFailure maps a classified error onto a status code and envelope.
// Only the user-facing reason leaves the process.
func sendFailure(w http.ResponseWriter, r *http.Request, m *metrics.Collector, err error) {
	status := statusFor(err)
	kind := models.KindOf(err)

	label := string(kind)
	var ve *models.ValidationError
	var nf *repository.NotFoundError
	switch {
	case errors.As(err, &ve):
		kind, label = "", "validation"
	case errors.As(err, &nf):
		kind, label = "", "not_found"
	}

	m.RecordAPIError(label, routeName(r))
	sendJSON(w, APIResponse{Success: false, Error: reasonFor(err, status), Kind: string(kind)}, status)
}

func statusFor(err error) int {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var nf *repository.NotFoundError
	if errors.As(err, &nf) {
		return http.StatusNotFound
	}

	var fe *models.FloodError
	if !errors.As(err, &fe) {
		return http.StatusInternalServerError
	}
	if fe.Timeout {
		return http.StatusGatewayTimeout
	}
	switch fe.Kind {
	case models.KindContractNotDeployed, models.KindNoProvider:
		return http.StatusServiceUnavailable
	case models.KindNetworkMismatch:
		return http.StatusConflict
	case models.KindAuthorizationDenied:
		return http.StatusForbidden
	case models.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case models.KindUserRejected:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func reasonFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	var nf *repository.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return models.ReasonOf(err)
}

// pagination parses page and limit with the usual defaults
func pagination(r *http.Request) (page, limit, offset int) {
	page = 1
	limit = 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit, (page - 1) * limit
}

func paginated(data interface{}, total, page, limit int) PaginatedResponse {
	return PaginatedResponse{
		Success:    true,
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}
