// Package evaluator is the streaming core (spec §4.E): it owns the
// live best-bid/ask map, recomputes every cycle referencing an
// updated pair on each tick, and publishes opportunities above
// threshold to a bounded queue consumed by the dry-run executor.
//
// Per spec §9's design note, there is exactly one owner of the mutable
// state: a single goroutine draining a tick channel. WebSocket reader
// goroutines (one per connection, spec §4.A/§5) only ever push ticks
// onto that channel; they never touch prices or latest_profit
// directly, so neither needs a mutex.
package evaluator

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/cycle"
	"cyclehunter/internal/exchange"
	"cyclehunter/pkg/utils"
)

// Opportunity is an arbitrage opportunity detected on a single tick:
// the cycle, the profit it computed to, and the exact prices used to
// compute it (spec §3). Created by the evaluator, consumed exactly
// once by the executor.
type Opportunity struct {
	Cycle         cycle.Cycle
	ProfitPct     decimal.Decimal
	PricesSnapshot map[string]exchange.BookTicker
	DetectedAt    time.Time
}

// Config carries the evaluator's tunables.
type Config struct {
	MinProfitThreshold decimal.Decimal
	OpportunityQueueSize int
	TickBufferSize       int
	SnapshotInterval     time.Duration
}

// DefaultConfig returns sane defaults for Config's zero-value fields.
func DefaultConfig() Config {
	return Config{
		OpportunityQueueSize: 256,
		TickBufferSize:       4096,
		SnapshotInterval:     2 * time.Second,
	}
}

// Evaluator is the single owner of the live price map and per-cycle
// latest-profit map described in spec §4.E.
type Evaluator struct {
	cycles       []cycle.Cycle
	cyclesByID   map[string]cycle.Cycle
	pairToCycles map[string][]int
	fees         exchange.FeeTable
	threshold    decimal.Decimal

	prices       map[string]exchange.BookTicker
	latestProfit map[string]decimal.Decimal

	ticks         chan exchange.BookTicker
	opportunities chan Opportunity

	historySink TickSink
	historyCh   chan exchange.BookTicker

	snapshotInterval time.Duration
	log              *utils.Logger
}

// TickSink archives ticks for the optional backtest replay path
// (SPEC_FULL's history section). Implemented by
// internal/history.TickRepository; nil unless HISTORY_DSN is
// configured, in which case the caller wires one in with
// SetHistorySink before Run.
type TickSink interface {
	Insert(bt exchange.BookTicker) error
}

// SetHistorySink wires an optional tick archive. Must be called
// before Run, which starts the draining goroutine.
func (e *Evaluator) SetHistorySink(sink TickSink) {
	e.historySink = sink
	e.historyCh = make(chan exchange.BookTicker, 1024)
}

// New builds an Evaluator over cycles, indexing each pair to the
// cycles that reference it (spec §4.E's pair_to_cycles reverse index,
// built once at startup).
func New(cycles []cycle.Cycle, fees exchange.FeeTable, cfg Config, log *utils.Logger) *Evaluator {
	if cfg.OpportunityQueueSize <= 0 {
		cfg.OpportunityQueueSize = 256
	}
	if cfg.TickBufferSize <= 0 {
		cfg.TickBufferSize = 4096
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 2 * time.Second
	}
	if log == nil {
		log = utils.GetGlobalLogger()
	}

	e := &Evaluator{
		cycles:           cycles,
		cyclesByID:       make(map[string]cycle.Cycle, len(cycles)),
		pairToCycles:     make(map[string][]int),
		fees:             fees,
		threshold:        cfg.MinProfitThreshold,
		prices:           make(map[string]exchange.BookTicker),
		latestProfit:     make(map[string]decimal.Decimal),
		ticks:            make(chan exchange.BookTicker, cfg.TickBufferSize),
		opportunities:    make(chan Opportunity, cfg.OpportunityQueueSize),
		snapshotInterval: cfg.SnapshotInterval,
		log:              log.WithComponent("evaluator"),
	}

	for i, c := range cycles {
		e.cyclesByID[c.ID] = c
		for _, step := range c.Steps {
			e.pairToCycles[step.PairSymbol] = append(e.pairToCycles[step.PairSymbol], i)
		}
	}

	return e
}

// Pairs returns the union of pair symbols referenced by every cycle,
// the set the caller must subscribe SubscribeBookTicker to.
func (e *Evaluator) Pairs() []string {
	out := make([]string, 0, len(e.pairToCycles))
	for symbol := range e.pairToCycles {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Opportunities returns the channel the executor drains opportunities
// from (strict FIFO, spec §5).
func (e *Evaluator) Opportunities() <-chan Opportunity {
	return e.opportunities
}

// SeedPrices pre-populates the price map before the first tick
// arrives, narrowing the cold-start window on warm restart (SPEC_FULL
// supplemented feature, spec §4.E). Must be called before Run.
func (e *Evaluator) SeedPrices(prices map[string]exchange.BookTicker) {
	for symbol, bt := range prices {
		e.prices[symbol] = bt
	}
}

// OnTick is the callback handed to Exchange.SubscribeBookTicker. It
// may be invoked concurrently from multiple WebSocket connection
// goroutines; it only ever hands the tick off to the single owning
// goroutine's channel; it never reads or writes shared state itself.
func (e *Evaluator) OnTick(ctx context.Context, bt exchange.BookTicker) {
	select {
	case e.ticks <- bt:
	case <-ctx.Done():
	}
}

// Run drains ticks and runs the periodic snapshot task until ctx is
// cancelled. It is the sole goroutine that ever touches prices and
// latest_profit (spec §9). Callers should call Run in its own
// goroutine and feed OnTick from the exchange subscription.
func (e *Evaluator) Run(ctx context.Context, snapshotFn func(Snapshot)) {
	ticker := time.NewTicker(e.snapshotInterval)
	defer ticker.Stop()

	if e.historySink != nil {
		go e.drainHistory(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case bt := <-e.ticks:
			e.processTick(bt)
		case <-ticker.C:
			if snapshotFn != nil {
				snapshotFn(e.buildSnapshot())
			}
		}
	}
}

// drainHistory archives ticks on its own goroutine so a slow database
// never stalls the tick-processing loop; inserts are best-effort and
// failures are logged, never propagated (spec §7: filesystem/db
// writes are "log and continue", the in-memory pipeline stays
// authoritative).
func (e *Evaluator) drainHistory(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bt := <-e.historyCh:
			if err := e.historySink.Insert(bt); err != nil {
				e.log.Warn("history insert failed",
					utils.String("pair", bt.Symbol), utils.Err(err))
			}
		}
	}
}

// BookTicker implements cycle.PriceView directly over the evaluator's
// single-owner price map. Only ever called from within processTick,
// on the evaluator's own goroutine.
func (e *Evaluator) BookTicker(symbol string) (exchange.BookTicker, bool) {
	t, ok := e.prices[symbol]
	return t, ok
}

func (e *Evaluator) processTick(bt exchange.BookTicker) {
	e.prices[bt.Symbol] = bt

	if e.historyCh != nil {
		select {
		case e.historyCh <- bt:
		default:
			e.log.Warn("history channel full, dropping tick", utils.String("pair", bt.Symbol))
		}
	}

	for _, idx := range e.pairToCycles[bt.Symbol] {
		c := e.cycles[idx]

		profit, err := cycle.CalculateProfit(c, e, e.fees)
		if err != nil {
			// Missing price: skip this cycle this tick, no mutation
			// of latest_profit (spec §4.D, §8 boundary behavior).
			continue
		}

		e.latestProfit[c.ID] = profit

		if profit.GreaterThan(e.threshold) {
			e.publishOpportunity(c, profit)
		}
	}
}

func (e *Evaluator) publishOpportunity(c cycle.Cycle, profit decimal.Decimal) {
	snapshot := make(map[string]exchange.BookTicker, len(c.Steps))
	for _, step := range c.Steps {
		if bt, ok := e.prices[step.PairSymbol]; ok {
			snapshot[step.PairSymbol] = bt
		}
	}

	opp := Opportunity{
		Cycle:          c,
		ProfitPct:      profit,
		PricesSnapshot: snapshot,
		DetectedAt:     time.Now(),
	}

	select {
	case e.opportunities <- opp:
	default:
		e.log.Warn("opportunity queue full, dropping", utils.String("cycle", c.String()))
	}
}
