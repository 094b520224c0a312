package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterDocs mounts the OpenAPI document and Swagger UI
func RegisterDocs(router *mux.Router) {
	router.HandleFunc("/api/docs", SwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
}

func queryParam(name, description, typ string, required bool) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      map[string]string{"type": typ},
	}
}

var paginationParams = []map[string]interface{}{
	{
		"name":        "page",
		"in":          "query",
		"description": "Page number (default: 1)",
		"schema":      map[string]interface{}{"type": "integer", "default": 1},
	},
	{
		"name":        "limit",
		"in":          "query",
		"description": "Records per page (default: 100, max: 1000)",
		"schema":      map[string]interface{}{"type": "integer", "default": 100},
	},
}

func jsonResponse(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/" + schemaRef},
			},
		},
	}
}

func getOp(summary string, params []map[string]interface{}, responses map[string]interface{}) map[string]interface{} {
	op := map[string]interface{}{
		"summary":   summary,
		"responses": responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return map[string]interface{}{"get": op}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the FloodGuard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	number := map[string]string{"type": "number"}
	str := map[string]string{"type": "string"}
	boolean := map[string]string{"type": "boolean"}
	integer := map[string]string{"type": "integer"}

	ledgerErrors := map[string]interface{}{
		"200": jsonResponse("Successful response", "Envelope"),
		"503": jsonResponse("Ledger disabled, contract not deployed or no provider", "Envelope"),
		"502": jsonResponse("Ledger call failed", "Envelope"),
		"504": jsonResponse("Ledger call timed out", "Envelope"),
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "FloodGuard API",
			"description": "NOAA flood metrics, risk evaluation and FloodPredictor contract synchronization",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/noaa": getOp("Fetch current flood metrics from NOAA",
				[]map[string]interface{}{
					queryParam("type", "water_level, tides, currents or all (default)", "string", false),
					queryParam("station", "NOAA station ID (default: 8518750)", "string", false),
				},
				map[string]interface{}{
					"200": jsonResponse("Flood metrics", "FloodMetricsEnvelope"),
					"405": jsonResponse("Method not allowed", "Envelope"),
					"500": jsonResponse("Unexpected failure", "Envelope"),
					"502": jsonResponse("NOAA data unavailable", "Envelope"),
				}),
			"/api/ledger/metrics":            getOp("Read the metrics stored by the contract", nil, ledgerErrors),
			"/api/ledger/balance":            getOp("Read the contract balance", nil, ledgerErrors),
			"/api/ledger/funds":              getOp("Read sponsor and investor fund totals", nil, ledgerErrors),
			"/api/ledger/debug":              getOp("Inspect deployment, network and ownership", nil, ledgerErrors),
			"/api/ledger/deposits/{address}": getOp("Read an investor deposit", []map[string]interface{}{{"name": "address", "in": "path", "required": true, "schema": str}}, ledgerErrors),
			"/api/ledger/sync": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":    "Run one fetch, persist and submit cycle",
					"security":   []map[string][]string{{"bearerAuth": {}}},
					"parameters": []map[string]interface{}{queryParam("station", "NOAA station ID", "string", false)},
					"responses": map[string]interface{}{
						"200": jsonResponse("Sync result", "Envelope"),
						"401": jsonResponse("Missing or invalid token", "Envelope"),
						"403": jsonResponse("Not the contract owner, or endpoint disabled", "Envelope"),
					},
				},
			},
			"/api/snapshots": getOp("List stored snapshots",
				append([]map[string]interface{}{
					queryParam("station_id", "Filter by station", "string", false),
					queryParam("since", "Observed at or after (RFC 3339 or YYYY-MM-DD)", "string", false),
					queryParam("until", "Observed at or before (RFC 3339 or YYYY-MM-DD)", "string", false),
					queryParam("at_risk", "Only snapshots with flood risk", "boolean", false),
				}, paginationParams...),
				map[string]interface{}{"200": jsonResponse("Paginated snapshots", "Paginated")}),
			"/api/snapshots/latest": getOp("Latest stored snapshot of a station",
				[]map[string]interface{}{queryParam("station_id", "Station ID", "string", false)},
				map[string]interface{}{
					"200": jsonResponse("Snapshot", "Envelope"),
					"404": jsonResponse("No snapshot stored", "Envelope"),
				}),
			"/api/snapshots/stats": getOp("Aggregate statistics over a trailing window",
				[]map[string]interface{}{
					queryParam("station_id", "Station ID", "string", false),
					queryParam("window", "Go duration such as 24h (default: 168h)", "string", false),
				},
				map[string]interface{}{"200": jsonResponse("Statistics", "Envelope")}),
			"/api/submissions": getOp("List ledger submissions",
				append([]map[string]interface{}{
					queryParam("station_id", "Filter by station", "string", false),
					queryParam("status", "confirmed or failed", "string", false),
				}, paginationParams...),
				map[string]interface{}{"200": jsonResponse("Paginated submissions", "Paginated")}),
			"/health": getOp("Health check", nil, map[string]interface{}{
				"200": map[string]string{"description": "Service is healthy"},
				"503": map[string]string{"description": "Database unreachable"},
			}),
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer"},
			},
			"schemas": map[string]interface{}{
				"Envelope": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"success": boolean,
						"data":    map[string]string{"type": "object"},
						"error":   str,
						"kind":    str,
					},
				},
				"FloodMetrics": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"waterLevel":     number,
						"tidePrediction": number,
						"currentSpeed":   number,
						"floodRisk":      boolean,
						"timestamp":      map[string]string{"type": "string", "format": "date-time"},
						"location":       str,
					},
				},
				"FloodMetricsEnvelope": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"success": boolean,
						"data":    map[string]string{"$ref": "#/components/schemas/FloodMetrics"},
					},
				},
				"Paginated": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"success":     boolean,
						"data":        map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
						"total":       integer,
						"page":        integer,
						"limit":       integer,
						"total_pages": integer,
					},
				},
			},
		},
	}

	sendJSON(w, spec, http.StatusOK)
}
