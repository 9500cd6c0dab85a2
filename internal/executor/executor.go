// Package executor implements the dry-run executor (spec §4.F): for
// every opportunity dequeued from the evaluator it re-checks liquidity
// against live 24h tickers, sizes the trade by walking the first
// leg's book up to a slippage cap, simulates a full book-walk fill
// across every leg, and journals the outcome to a CSV trade record.
//
// It never places an order. Grounded on the teacher's
// internal/bot/spread.go OrderBookAnalyzer.simulateMarketOrder
// (VWAP book walk) and internal/bot/risk.go's gating pattern, adapted
// from a real-order pipeline to pure simulation.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/cycle"
	"cyclehunter/internal/evaluator"
	"cyclehunter/internal/exchange"
	"cyclehunter/pkg/utils"
)

// ErrNoLiquidity is returned (and logged, never propagated) when a
// cycle fails the 24h-volume gate.
var ErrNoLiquidity = errors.New("executor: pair below min_trade_volume_usd")

// ErrEmptyBook aborts the simulation of a single cycle, never the
// executor loop (spec §4.F failure semantics).
var ErrEmptyBook = errors.New("executor: empty order book on a leg")

// ErrUndefinedDirection means a step's side could not be determined
// from the pair's base/quote metadata.
var ErrUndefinedDirection = errors.New("executor: undefined trade direction")

// TradeRecord is one simulated fill, the unit journaled to
// output/trades/YYYY-MM-DD/HH.csv (spec §6).
type TradeRecord struct {
	Timestamp     time.Time
	Cycle         string
	ProfitPct     decimal.Decimal
	InitialAsset  string
	InitialAmount decimal.Decimal
	FinalAsset    string
	FinalAmount   decimal.Decimal
}

// Config carries the executor's gates.
type Config struct {
	InitialInvestmentUSD decimal.Decimal
	MinTradeVolumeUSD    decimal.Decimal
	MaxSlippagePct       decimal.Decimal
}

// BookSource is the subset of exchange.Exchange the executor needs,
// narrowed so tests can supply a fake without a full adapter.
type BookSource interface {
	Ticker24h(ctx context.Context) ([]exchange.Ticker24h, error)
	OrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error)
}

// Journal persists TradeRecords. Implemented by CSVJournal in
// journal.go.
type Journal interface {
	Append(rec TradeRecord) error
}

// Executor drains opportunities and simulates dry-run fills.
type Executor struct {
	src     BookSource
	journal Journal
	cfg     Config
	log     *utils.Logger
}

// New builds an Executor over src (typically an exchange.Exchange).
func New(src BookSource, journal Journal, cfg Config, log *utils.Logger) *Executor {
	if log == nil {
		log = utils.GetGlobalLogger()
	}
	return &Executor{src: src, journal: journal, cfg: cfg, log: log.WithComponent("executor")}
}

// Run drains opportunities until ctx is cancelled or the channel
// closes, simulating and journaling each one. Errors for a single
// cycle are logged and never abort the loop (spec §4.F).
func (e *Executor) Run(ctx context.Context, opportunities <-chan evaluator.Opportunity) {
	for {
		select {
		case <-ctx.Done():
			return
		case opp, ok := <-opportunities:
			if !ok {
				return
			}
			if err := e.Process(ctx, opp); err != nil {
				e.log.Warn("dry-run simulation aborted",
					utils.String("cycle", opp.Cycle.String()),
					utils.Err(err))
			}
		}
	}
}

// Process runs the full gate -> size -> simulate -> journal pipeline
// for a single opportunity.
func (e *Executor) Process(ctx context.Context, opp evaluator.Opportunity) error {
	if err := e.checkLiquidity(ctx, opp.Cycle); err != nil {
		return err
	}

	sizedNotional, err := e.size(ctx, opp.Cycle)
	if err != nil {
		return err
	}

	startAmount := decimal.Min(e.cfg.InitialInvestmentUSD, sizedNotional)

	finalAsset, finalAmount, err := e.simulate(ctx, opp.Cycle, startAmount)
	if err != nil {
		return err
	}

	rec := TradeRecord{
		Timestamp:     time.Now().UTC(),
		Cycle:         opp.Cycle.String(),
		ProfitPct:     opp.ProfitPct,
		InitialAsset:  opp.Cycle.Assets[0],
		InitialAmount: startAmount,
		FinalAsset:    finalAsset,
		FinalAmount:   finalAmount,
	}

	if e.journal == nil {
		return nil
	}
	return e.journal.Append(rec)
}

// checkLiquidity re-fetches 24h tickers and gates on
// min_trade_volume_usd for every pair the cycle touches (spec §4.F
// step 1).
func (e *Executor) checkLiquidity(ctx context.Context, c cycle.Cycle) error {
	tickers, err := e.src.Ticker24h(ctx)
	if err != nil {
		return err
	}

	bySymbol := make(map[string]exchange.Ticker24h, len(tickers))
	for _, t := range tickers {
		bySymbol[t.Symbol] = t
	}

	for _, step := range c.Steps {
		t, ok := bySymbol[step.PairSymbol]
		if !ok {
			continue
		}
		if t.QuoteVolume.LessThan(e.cfg.MinTradeVolumeUSD) {
			e.log.Warn("pair below min_trade_volume_usd, skipping cycle",
				utils.String("pair", step.PairSymbol),
				utils.String("cycle", c.String()))
			return ErrNoLiquidity
		}
	}
	return nil
}

// size fetches the first leg's book and walks it from the top,
// accumulating levels whose slippage versus the top price stays
// within max_slippage_pct, stopping at the first level that exceeds
// the cap (spec §4.F step 2).
func (e *Executor) size(ctx context.Context, c cycle.Cycle) (decimal.Decimal, error) {
	if len(c.Steps) == 0 {
		return decimal.Zero, ErrUndefinedDirection
	}
	first := c.Steps[0]

	ob, err := e.src.OrderBook(ctx, first.PairSymbol, 0)
	if err != nil {
		return decimal.Zero, err
	}

	var levels []exchange.PriceLevel
	switch first.Side {
	case cycle.Buy:
		levels = ob.Asks
	case cycle.Sell:
		levels = ob.Bids
	default:
		return decimal.Zero, ErrUndefinedDirection
	}
	if len(levels) == 0 {
		return decimal.Zero, ErrEmptyBook
	}

	top := levels[0].Price
	notional := decimal.Zero

	for _, lvl := range levels {
		slippage := decimal.Zero
		if top.IsPositive() {
			slippage = lvl.Price.Sub(top).Abs().Div(top).Mul(hundred)
		}
		if slippage.GreaterThan(e.cfg.MaxSlippagePct) {
			break
		}

		switch first.Side {
		case cycle.Buy:
			notional = notional.Add(lvl.Qty.Mul(lvl.Price))
		case cycle.Sell:
			notional = notional.Add(lvl.Qty)
		}
	}

	return notional, nil
}

// simulate walks every leg's live book to fill startAmount of the
// cycle's starting asset through to the final asset (spec §4.F step
// 3). BUY legs return (avg_price, base_filled); SELL legs return
// (avg_price, quote_received), per the adopted Open Question
// resolution.
func (e *Executor) simulate(ctx context.Context, c cycle.Cycle, startAmount decimal.Decimal) (string, decimal.Decimal, error) {
	amount := startAmount
	finalAsset := c.Assets[0]

	for _, step := range c.Steps {
		ob, err := e.src.OrderBook(ctx, step.PairSymbol, 0)
		if err != nil {
			return "", decimal.Zero, err
		}

		var filled decimal.Decimal
		switch step.Side {
		case cycle.Buy:
			if len(ob.Asks) == 0 {
				return "", decimal.Zero, ErrEmptyBook
			}
			_, filled, err = walkBuy(ob.Asks, amount)
		case cycle.Sell:
			if len(ob.Bids) == 0 {
				return "", decimal.Zero, ErrEmptyBook
			}
			_, filled, err = walkSell(ob.Bids, amount)
		default:
			return "", decimal.Zero, ErrUndefinedDirection
		}
		if err != nil {
			return "", decimal.Zero, err
		}

		amount = filled
		finalAsset = step.To
	}

	return finalAsset, amount, nil
}

var hundred = decimal.NewFromInt(100)

// walkBuy consumes asks top-down spending remainingQuote, returning
// (avg_price, base_filled).
func walkBuy(asks []exchange.PriceLevel, remainingQuote decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	spent := decimal.Zero
	filled := decimal.Zero
	remaining := remainingQuote

	for _, lvl := range asks {
		if !remaining.IsPositive() {
			break
		}
		levelNotional := lvl.Price.Mul(lvl.Qty)

		if remaining.GreaterThanOrEqual(levelNotional) {
			spent = spent.Add(levelNotional)
			filled = filled.Add(lvl.Qty)
			remaining = remaining.Sub(levelNotional)
			continue
		}

		partialQty := remaining.Div(lvl.Price)
		filled = filled.Add(partialQty)
		spent = spent.Add(remaining)
		remaining = decimal.Zero
	}

	if filled.IsZero() {
		return decimal.Zero, decimal.Zero, ErrEmptyBook
	}
	return spent.Div(filled), filled, nil
}

// walkSell consumes bids top-down selling remainingBase, returning
// (avg_price, quote_received).
func walkSell(bids []exchange.PriceLevel, remainingBase decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	received := decimal.Zero
	filled := decimal.Zero
	remaining := remainingBase

	for _, lvl := range bids {
		if !remaining.IsPositive() {
			break
		}

		takeQty := lvl.Qty
		if takeQty.GreaterThan(remaining) {
			takeQty = remaining
		}

		received = received.Add(takeQty.Mul(lvl.Price))
		filled = filled.Add(takeQty)
		remaining = remaining.Sub(takeQty)
	}

	if filled.IsZero() {
		return decimal.Zero, decimal.Zero, ErrEmptyBook
	}
	return received.Div(filled), received, nil
}
