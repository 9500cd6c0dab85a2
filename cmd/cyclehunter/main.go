package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"cyclehunter/internal/api"
	"cyclehunter/internal/config"
	"cyclehunter/internal/cycle"
	"cyclehunter/internal/evaluator"
	"cyclehunter/internal/exchange"
	"cyclehunter/internal/executor"
	"cyclehunter/internal/history"
	"cyclehunter/internal/persist"
	"cyclehunter/internal/universe"
	"cyclehunter/internal/websocket"
	"cyclehunter/pkg/utils"
)

const (
	configsDir = "configs"
	outputDir  = "output"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	exchange.DefaultTakerFee = cfg.Executor.TradingFee

	var cmdErr error
	switch os.Args[1] {
	case "generate-whitelist":
		cmdErr = runGenerateWhitelist(cfg)
	case "generate-blacklist":
		cmdErr = runGenerateBlacklist(cfg)
	case "find-cycles":
		cmdErr = runFindCycles(cfg, os.Args[2:])
	case "run-monitor":
		cmdErr = runMonitor(cfg, false)
	case "start-bot":
		cmdErr = runMonitor(cfg, true)
	case "backtest":
		cmdErr = runBacktest(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if cmdErr != nil {
		utils.Error("command failed", utils.String("command", os.Args[1]), utils.Err(cmdErr))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cyclehunter <find-cycles [--strategy liquidity|volatility]|run-monitor|backtest <start> <end>|generate-whitelist|generate-blacklist|start-bot>")
}

func newExchange(cfg *config.Config) *exchange.Binance {
	return exchange.NewBinance(cfg.Exchange.RESTBaseURL, cfg.Exchange.WSBaseURL, cfg.Exchange.StreamChunk)
}

// whitelistDoc / blacklistDoc are configs/{whitelist,blacklist}.json
// (spec §6).
type whitelistDoc struct {
	WhitelistAssets []string `json:"whitelist_assets"`
	WhitelistPairs  []string `json:"whitelist_pairs"`
}

type blacklistDoc struct {
	BlacklistAssets []string `json:"blacklist_assets"`
	BlacklistPairs  []string `json:"blacklist_pairs"`
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return persist.WriteFileAtomic(path, data, 0644)
}

func runGenerateWhitelist(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Exchange.RequestTimeout)
	defer cancel()

	exch := newExchange(cfg)
	defer exch.Close()

	pairs, err := exch.ExchangeInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch exchange info: %w", err)
	}
	tickers, err := exch.Ticker24h(ctx)
	if err != nil {
		return fmt.Errorf("fetch 24h tickers: %w", err)
	}

	set, err := universe.BuildWhitelist(pairs, tickers, universeConfig(cfg))
	if err != nil {
		return fmt.Errorf("build whitelist: %w", err)
	}

	doc := whitelistDoc{WhitelistAssets: set.Assets, WhitelistPairs: set.Pairs}
	path := filepath.Join(configsDir, "whitelist.json")
	if err := writeJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	utils.Info("whitelist generated", utils.Int("pairs", len(set.Pairs)), utils.Int("assets", len(set.Assets)))
	return nil
}

func runGenerateBlacklist(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Exchange.RequestTimeout)
	defer cancel()

	exch := newExchange(cfg)
	defer exch.Close()

	pairs, err := exch.ExchangeInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch exchange info: %w", err)
	}
	tickers, err := exch.Ticker24h(ctx)
	if err != nil {
		return fmt.Errorf("fetch 24h tickers: %w", err)
	}

	var whitelistPairs []string
	if wl, err := readWhitelist(); err == nil {
		whitelistPairs = wl.WhitelistPairs
	}

	set, err := universe.BuildBlacklist(pairs, tickers, whitelistPairs, universeConfig(cfg))
	if err != nil {
		return fmt.Errorf("build blacklist: %w", err)
	}

	doc := blacklistDoc{BlacklistAssets: set.Assets, BlacklistPairs: set.Pairs}
	path := filepath.Join(configsDir, "blacklist.json")
	if err := writeJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	utils.Info("blacklist generated", utils.Int("pairs", len(set.Pairs)), utils.Int("assets", len(set.Assets)))
	return nil
}

func readWhitelist() (*whitelistDoc, error) {
	data, err := os.ReadFile(filepath.Join(configsDir, "whitelist.json"))
	if err != nil {
		return nil, err
	}
	var doc whitelistDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func universeConfig(cfg *config.Config) universe.Config {
	return universe.Config{
		BaseCoins:        cfg.Universe.BaseCoins,
		MinVolumeUSD:     cfg.Universe.MinVolumeUSD,
		WhitelistTopN:    cfg.Universe.WhitelistTopN,
		BlacklistBottomN: cfg.Universe.BlacklistBottomN,
		VolatilityTopN:   cfg.Universe.VolatilityTopN,
		VolatilitySigned: cfg.Universe.VolatilitySigned,
	}
}

// runFindCycles enumerates every simple cycle rooted at
// cfg.Cycle.BaseCurrency over the admissible asset set picked by
// --strategy (spec §6 CLI surface).
func runFindCycles(cfg *config.Config, args []string) error {
	strategy := "liquidity"
	for i, a := range args {
		if a == "--strategy" && i+1 < len(args) {
			strategy = args[i+1]
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Exchange.RequestTimeout)
	defer cancel()

	exch := newExchange(cfg)
	defer exch.Close()

	pairs, err := exch.ExchangeInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch exchange info: %w", err)
	}

	var admissible []string
	switch strategy {
	case "liquidity":
		wl, err := readWhitelist()
		if err != nil {
			return fmt.Errorf("read configs/whitelist.json (run generate-whitelist first): %w", err)
		}
		admissible = wl.WhitelistAssets
	case "volatility":
		tickers, err := exch.Ticker24h(ctx)
		if err != nil {
			return fmt.Errorf("fetch 24h tickers: %w", err)
		}
		set, err := universe.BuildVolatility(pairs, tickers, universeConfig(cfg))
		if err != nil {
			return fmt.Errorf("build volatility universe: %w", err)
		}
		admissible = set.Assets
	default:
		return fmt.Errorf("unknown --strategy %q, expected liquidity or volatility", strategy)
	}

	graph := cycle.BuildGraph(pairs, admissible)
	raw := cycle.Enumerate(graph, cfg.Cycle.BaseCurrency, cfg.Cycle.MaxCycleLength)
	cycles := cycle.StructureCycles(raw, pairs)

	assetPaths := make([][]string, len(cycles))
	var txt strings.Builder
	for i, c := range cycles {
		assetPaths[i] = c.Assets
		txt.WriteString(c.String())
		txt.WriteByte('\n')
	}

	if err := writeJSONAtomic(filepath.Join(configsDir, "possible_cycles.json"), assetPaths); err != nil {
		return fmt.Errorf("write possible_cycles.json: %w", err)
	}
	if err := persist.WriteFileAtomic(filepath.Join(configsDir, "possible_cycles.txt"), []byte(txt.String()), 0644); err != nil {
		return fmt.Errorf("write possible_cycles.txt: %w", err)
	}

	utils.Info("cycle enumeration complete", utils.String("strategy", strategy), utils.Int("cycles", len(cycles)))
	return nil
}

// loadCycles resolves the structured cycle set for run-monitor/start-bot
// and backtest: prefer a previously generated possible_cycles.json,
// falling back to enumerating fresh over the full exchange_info (no
// universe restriction) when absent.
func loadCycles(ctx context.Context, cfg *config.Config, exch exchange.Exchange) ([]cycle.Cycle, []exchange.Pair, error) {
	pairs, err := exch.ExchangeInfo(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch exchange info: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(configsDir, "possible_cycles.json"))
	if err == nil {
		var assetPaths [][]string
		if err := json.Unmarshal(data, &assetPaths); err != nil {
			return nil, nil, fmt.Errorf("decode possible_cycles.json: %w", err)
		}
		raw := make([]cycle.RawCycle, len(assetPaths))
		for i, p := range assetPaths {
			raw[i] = cycle.RawCycle{Assets: p}
		}
		return cycle.StructureCycles(raw, pairs), pairs, nil
	}

	graph := cycle.BuildGraph(pairs, nil)
	raw := cycle.Enumerate(graph, cfg.Cycle.BaseCurrency, cfg.Cycle.MaxCycleLength)
	return cycle.StructureCycles(raw, pairs), pairs, nil
}

// runMonitor wires the evaluator to the live WebSocket feed, the
// periodic snapshot writer, the operational HTTP/WebSocket surface,
// and — when withExecutor is set (the `start-bot` subcommand) — the
// dry-run executor draining opportunities.
func runMonitor(cfg *config.Config, withExecutor bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exch := newExchange(cfg)
	defer exch.Close()

	bootCtx, bootCancel := context.WithTimeout(ctx, cfg.Exchange.RequestTimeout)
	cycles, _, err := loadCycles(bootCtx, cfg, exch)
	bootCancel()
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		return fmt.Errorf("no cycles to monitor (run find-cycles first)")
	}

	fees, err := exch.TradeFees(ctx)
	if err != nil {
		utils.Warn("failed to fetch trade fees, falling back to configured default", utils.Err(err))
		fees = exchange.FeeTable{}
	}

	evalCfg := evaluator.DefaultConfig()
	evalCfg.MinProfitThreshold = cfg.Executor.MinProfitThreshold
	ev := evaluator.New(cycles, fees, evalCfg, nil)

	if cfg.History.DSN != "" {
		historyDB, err := sql.Open("postgres", cfg.History.DSN)
		if err != nil {
			utils.Warn("history archive disabled: failed to open HISTORY_DSN", utils.Err(err))
		} else if _, err := historyDB.Exec(history.Schema); err != nil {
			utils.Warn("history archive disabled: failed to apply schema", utils.Err(err))
			historyDB.Close()
		} else {
			defer historyDB.Close()
			ev.SetHistorySink(history.NewTickRepository(historyDB))
			utils.Info("archiving ticks to history", utils.String("dsn", cfg.History.DSN))
		}
	}

	if seed, err := evaluator.LoadLatestPrices(outputDir); err == nil && seed != nil {
		ev.SeedPrices(seed)
		utils.Info("seeded evaluator from last-known prices", utils.Int("pairs", len(seed)))
	}

	hub := websocket.NewHub()
	go hub.Run()

	snapWriter := &evaluator.SnapshotWriter{OutputDir: outputDir}
	snapshotFn := func(s evaluator.Snapshot) {
		if err := snapWriter.Write(s); err != nil {
			utils.Warn("snapshot write failed", utils.Err(err))
		}
		hub.BroadcastProfitSnapshot(s)
	}

	go ev.Run(ctx, snapshotFn)

	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()
	go func() {
		err := exch.SubscribeBookTicker(subCtx, ev.Pairs(), func(bt exchange.BookTicker) {
			ev.OnTick(subCtx, bt)
		})
		if err != nil && subCtx.Err() == nil {
			utils.Error("book ticker subscription ended", utils.Err(err))
		}
	}()

	var exec *executor.Executor
	if withExecutor {
		journal := executor.NewCSVJournal(filepath.Join(outputDir, "trades"))
		defer journal.Close()
		exec = executor.New(exch, journal, executor.Config{
			InitialInvestmentUSD: cfg.Executor.InitialInvestmentUSD,
			MinTradeVolumeUSD:    cfg.Executor.MinTradeVolumeUSD,
			MaxSlippagePct:       cfg.Executor.MaxSlippagePct,
		}, nil)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case opp := <-ev.Opportunities():
					if err := exec.Process(ctx, opp); err != nil {
						utils.Warn("dry-run simulation aborted", utils.String("cycle", opp.Cycle.String()), utils.Err(err))
					}
					hub.BroadcastOpportunity(opp)
				}
			}
		}()
	} else {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case opp := <-ev.Opportunities():
					hub.BroadcastOpportunity(opp)
				}
			}
		}()
	}

	router := api.SetupRoutes(&api.Dependencies{Hub: hub})
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		utils.Info("starting operational HTTP surface", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Error("http server failed", utils.Err(err))
		}
	}()

	<-ctx.Done()
	utils.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.Warn("http server shutdown error", utils.Err(err))
	}

	return nil
}

// runBacktest replays archived ticks from internal/history through
// the same evaluator kernel the live pipeline uses, then writes the
// resulting ranking to the output snapshot files (spec §6
// `backtest <start> <end>`).
func runBacktest(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: backtest <start RFC3339> <end RFC3339>")
	}
	start, err := time.Parse(time.RFC3339, args[0])
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	}
	if cfg.History.DSN == "" {
		return fmt.Errorf("HISTORY_DSN is not configured")
	}

	db, err := sql.Open("postgres", cfg.History.DSN)
	if err != nil {
		return fmt.Errorf("open history db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}

	repo := history.NewTickRepository(db)
	ticks, err := repo.RangeBetween(start, end)
	if err != nil {
		return fmt.Errorf("load archived ticks: %w", err)
	}
	if len(ticks) == 0 {
		return fmt.Errorf("no archived ticks between %s and %s", start, end)
	}

	exch := newExchange(cfg)
	defer exch.Close()
	fetchCtx, fetchCancel := context.WithTimeout(ctx, cfg.Exchange.RequestTimeout)
	cycles, _, err := loadCycles(fetchCtx, cfg, exch)
	fetchCancel()
	if err != nil {
		return err
	}

	fees, err := exch.TradeFees(ctx)
	if err != nil {
		fees = exchange.FeeTable{}
	}

	evalCfg := evaluator.DefaultConfig()
	evalCfg.MinProfitThreshold = cfg.Executor.MinProfitThreshold
	// Snapshot often enough that one is taken within the drain pause
	// below, after the replayed ticks have been processed.
	evalCfg.SnapshotInterval = 10 * time.Millisecond
	ev := evaluator.New(cycles, fees, evalCfg, nil)

	runCtx, runCancel := context.WithCancel(context.Background())
	var lastSnapshot evaluator.Snapshot
	done := make(chan struct{})
	go func() {
		ev.Run(runCtx, func(s evaluator.Snapshot) { lastSnapshot = s })
		close(done)
	}()

	history.Replay(ticks, func(bt exchange.BookTicker) {
		ev.OnTick(runCtx, bt)
	})

	// Drain the tick channel before taking the final snapshot.
	time.Sleep(50 * time.Millisecond)
	runCancel()
	<-done

	snapWriter := &evaluator.SnapshotWriter{OutputDir: outputDir}
	if err := snapWriter.Write(lastSnapshot); err != nil {
		utils.Warn("backtest snapshot write failed", utils.Err(err))
	}

	utils.Info("backtest complete",
		utils.Int("ticks_replayed", len(ticks)),
		utils.Int("cycles", len(cycles)))
	return nil
}
