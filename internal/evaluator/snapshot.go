package evaluator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/exchange"
	"cyclehunter/internal/persist"
)

// negativeOne is the rank assigned to a cycle the evaluator has never
// computed a profit for (spec §4.E periodic snapshot task).
var negativeOne = decimal.NewFromInt(-1)

// ProfitEntry is one ranked line of a profit snapshot.
type ProfitEntry struct {
	Cycle     string          `json:"cycle"`
	ProfitPct decimal.Decimal `json:"profit_pct"`
}

// Snapshot is the periodic ranking of every known cycle by its
// latest computed return, plus the price map it was derived from, as
// required by spec §4.E ("emit a sorted ranking... and write out the
// prices map as a last-known state for warm restart").
type Snapshot struct {
	LastUpdated time.Time
	Profits     []ProfitEntry
	Prices      map[string]exchange.BookTicker
}

// buildSnapshot ranks every cycle by latest_profit descending,
// assigning -1 to cycles with no recorded tick yet, and copies the
// current price map. Called only from the evaluator's own goroutine.
func (e *Evaluator) buildSnapshot() Snapshot {
	entries := make([]ProfitEntry, 0, len(e.cycles))
	for _, c := range e.cycles {
		profit, ok := e.latestProfit[c.ID]
		if !ok {
			profit = negativeOne
		}
		entries = append(entries, ProfitEntry{Cycle: c.String(), ProfitPct: profit})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ProfitPct.GreaterThan(entries[j].ProfitPct)
	})

	prices := make(map[string]exchange.BookTicker, len(e.prices))
	for symbol, bt := range e.prices {
		prices[symbol] = bt
	}

	return Snapshot{LastUpdated: time.Now().UTC(), Profits: entries, Prices: prices}
}

// SnapshotWriter persists a Snapshot to the stable output file formats
// documented in spec §6: output/all_profits.{json,txt} and
// output/latest_prices.json, each written atomically.
type SnapshotWriter struct {
	OutputDir string
}

type allProfitsDoc struct {
	LastUpdated string                  `json:"last_updated"`
	Profits     []profitEntryStringJSON `json:"profits"`
}

// profitEntryStringJSON renders profit_pct as a decimal string in
// JSON, matching spec §6's documented output shape
// (`"profit_pct": "0.1234"`) rather than a bare JSON number.
type profitEntryStringJSON struct {
	Cycle     string `json:"cycle"`
	ProfitPct string `json:"profit_pct"`
}

// Write persists all_profits.json, all_profits.txt and
// latest_prices.json under w.OutputDir. Best-effort: errors are
// returned for the caller to log, never fatal (spec §7).
func (w *SnapshotWriter) Write(s Snapshot) error {
	doc := allProfitsDoc{LastUpdated: s.LastUpdated.Format("2006-01-02 15:04:05")}
	for _, p := range s.Profits {
		doc.Profits = append(doc.Profits, profitEntryStringJSON{Cycle: p.Cycle, ProfitPct: p.ProfitPct.String()})
	}

	profitsJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("evaluator: marshal all_profits.json: %w", err)
	}
	if err := persist.WriteFileAtomic(filepath.Join(w.OutputDir, "all_profits.json"), profitsJSON, 0644); err != nil {
		return fmt.Errorf("evaluator: write all_profits.json: %w", err)
	}

	var txt bytes.Buffer
	fmt.Fprintf(&txt, "Last updated: %s\n\n", doc.LastUpdated)
	for i, p := range doc.Profits {
		fmt.Fprintf(&txt, "%3d. %-40s %s%%\n", i+1, p.Cycle, p.ProfitPct)
	}
	if err := persist.WriteFileAtomic(filepath.Join(w.OutputDir, "all_profits.txt"), txt.Bytes(), 0644); err != nil {
		return fmt.Errorf("evaluator: write all_profits.txt: %w", err)
	}

	pricesJSON, err := json.MarshalIndent(s.Prices, "", "  ")
	if err != nil {
		return fmt.Errorf("evaluator: marshal latest_prices.json: %w", err)
	}
	if err := persist.WriteFileAtomic(filepath.Join(w.OutputDir, "latest_prices.json"), pricesJSON, 0644); err != nil {
		return fmt.Errorf("evaluator: write latest_prices.json: %w", err)
	}

	return nil
}

// LoadLatestPrices reads back latest_prices.json for warm-restart
// seeding (SPEC_FULL supplemented feature). Absence of the file is
// not an error: the evaluator simply starts cold.
func LoadLatestPrices(outputDir string) (map[string]exchange.BookTicker, error) {
	path := filepath.Join(outputDir, "latest_prices.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var prices map[string]exchange.BookTicker
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("evaluator: decode latest_prices.json: %w", err)
	}
	return prices, nil
}
