package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// SnapshotHandler serves the same stable output files the process
// writes to disk (spec §6): the read-only operational surface never
// holds its own copy of the ranking or price map, it just streams
// whatever internal/evaluator last wrote.
//
// Endpoints:
// - GET /snapshot/profits - output/all_profits.json
// - GET /snapshot/prices  - output/latest_prices.json
type SnapshotHandler struct {
	outputDir string
}

// NewSnapshotHandler builds a handler serving files under outputDir.
func NewSnapshotHandler(outputDir string) *SnapshotHandler {
	return &SnapshotHandler{outputDir: outputDir}
}

// GetProfits streams output/all_profits.json verbatim.
//
// GET /snapshot/profits
//
// Response 200 OK: the current contents of all_profits.json.
// Response 503 Service Unavailable: no snapshot has been written yet.
func (h *SnapshotHandler) GetProfits(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "all_profits.json")
}

// GetPrices streams output/latest_prices.json verbatim.
//
// GET /snapshot/prices
func (h *SnapshotHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "latest_prices.json")
}

func (h *SnapshotHandler) serveFile(w http.ResponseWriter, name string) {
	f, err := os.Open(filepath.Join(h.outputDir, name))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"no snapshot written yet"}`))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
