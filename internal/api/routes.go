package api

import (
	"net/http"

	"cyclehunter/internal/api/handlers"
	"cyclehunter/internal/api/middleware"
	"cyclehunter/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies carries everything SetupRoutes needs to wire handlers.
type Dependencies struct {
	Hub       *websocket.Hub
	OutputDir string
}

// SetupRoutes builds the read-only operational HTTP surface: snapshot
// reads, a health check, the live WebSocket push stream, and
// Prometheus metrics. There is no authenticated surface — the process
// holds no credentials and mutates nothing a client could reach.
//
// Routes:
//
//	GET /healthz             - liveness probe
//	GET /snapshot/profits     - output/all_profits.json
//	GET /snapshot/prices      - output/latest_prices.json
//	GET /ws/stream            - real-time opportunity/profit push
//	GET /metrics              - Prometheus exposition
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	outputDir := "output"
	if deps != nil && deps.OutputDir != "" {
		outputDir = deps.OutputDir
	}
	snapshotHandler := handlers.NewSnapshotHandler(outputDir)

	router.HandleFunc("/snapshot/profits", snapshotHandler.GetProfits).Methods("GET")
	router.HandleFunc("/snapshot/prices", snapshotHandler.GetPrices).Methods("GET")

	if deps != nil && deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		}).Methods("GET")
	}

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
