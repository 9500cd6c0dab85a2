package cycle

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/exchange"
)

// Side is the direction a Step trades its pair in.
type Side int

const (
	// Buy consumes quote asset, produces base asset, priced at ask.
	Buy Side = iota
	// Sell consumes base asset, produces quote asset, priced at bid.
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Step is one leg of a Cycle: trading PairSymbol to move from From to
// To. Side is derived once at structuring time from which of the
// pair's base/quote assets From/To correspond to.
type Step struct {
	PairSymbol string
	From       string
	To         string
	Side       Side
}

// Cycle is an ordered asset path beginning and ending at the same
// base currency, with each adjacent transition realized by a Step
// against a concrete TRADING pair. Immutable once built; holds no
// price state of its own (spec §9: "Cycle is a pure value").
type Cycle struct {
	ID     string
	Assets []string
	Steps  []Step
}

// String renders the cycle as "A -> B -> C -> A", the human-readable
// form used by possible_cycles.txt and all_profits output.
func (c Cycle) String() string {
	return strings.Join(c.Assets, " -> ")
}

// StructureCycles resolves each RawCycle's adjacent asset pairs
// against the TRADING entries of pairs, dropping any cycle where neither ordering
// of a transition exists as a TRADING pair (spec §4.C). Returns the
// admissible Cycle set.
func StructureCycles(raw []RawCycle, pairs []exchange.Pair) []Cycle {
	bySymbol := make(map[string]exchange.Pair, len(pairs))
	for _, p := range pairs {
		if p.Status != exchange.StatusTrading {
			continue
		}
		bySymbol[p.Symbol] = p
	}

	out := make([]Cycle, 0, len(raw))
	for _, rc := range raw {
		steps, ok := structureOne(rc.Assets, bySymbol)
		if !ok {
			continue
		}
		out = append(out, Cycle{
			ID:     strings.Join(rc.Assets, "-"),
			Assets: rc.Assets,
			Steps:  steps,
		})
	}
	return out
}

func structureOne(assets []string, bySymbol map[string]exchange.Pair) ([]Step, bool) {
	steps := make([]Step, 0, len(assets)-1)
	for i := 0; i < len(assets)-1; i++ {
		from, to := assets[i], assets[i+1]

		symbol := to + from
		pair, ok := bySymbol[symbol]
		if !ok {
			symbol = from + to
			pair, ok = bySymbol[symbol]
			if !ok {
				return nil, false
			}
		}

		var side Side
		switch {
		case from == pair.QuoteAsset && to == pair.BaseAsset:
			side = Buy
		case from == pair.BaseAsset && to == pair.QuoteAsset:
			side = Sell
		default:
			return nil, false
		}

		steps = append(steps, Step{PairSymbol: pair.Symbol, From: from, To: to, Side: side})
	}
	return steps, true
}

// Errors returned by CalculateProfit. Both are recoverable at the
// per-cycle, per-tick level: the caller skips this cycle this tick
// (spec §4.D, §7).
var (
	ErrMissingPrice  = errors.New("cycle: missing price for a step's pair")
	ErrMissingSymbol = errors.New("cycle: cycle has no steps")
)

// PriceView is the minimal read interface CalculateProfit needs into
// the evaluator's live price map, so the profit function stays a pure
// function of (cycle, prices, fees) with no hidden state (spec §9).
type PriceView interface {
	BookTicker(symbol string) (exchange.BookTicker, bool)
}

// MapPriceView adapts a plain map for tests and one-off callers.
type MapPriceView map[string]exchange.BookTicker

func (m MapPriceView) BookTicker(symbol string) (exchange.BookTicker, bool) {
	t, ok := m[symbol]
	return t, ok
}

// one is the decimal constant 1, used as CalculateProfit's starting
// notional (profit_pct is unit-independent, spec §8).
var one = decimal.NewFromInt(1)

// CalculateProfit computes the per-unit percentage return of trading
// one unit of cycle.Assets[0] all the way around, left to right,
// fee-aware and bid/ask-aware, per spec §4.D's pseudocode. A BUY step
// priced at a zero ask returns 0 profit_pct exactly, never dividing by
// zero.
func CalculateProfit(c Cycle, prices PriceView, fees exchange.FeeTable) (decimal.Decimal, error) {
	if len(c.Steps) == 0 {
		return decimal.Zero, ErrMissingSymbol
	}

	amount := one
	for _, step := range c.Steps {
		ticker, ok := prices.BookTicker(step.PairSymbol)
		if !ok {
			return decimal.Zero, ErrMissingPrice
		}

		fee := fees.Fee(step.PairSymbol)

		switch step.Side {
		case Buy:
			if ticker.BestAsk.IsZero() {
				return decimal.Zero, nil
			}
			amount = amount.Div(ticker.BestAsk)
		case Sell:
			amount = amount.Mul(ticker.BestBid)
		}

		amount = amount.Mul(one.Sub(fee))
	}

	return amount.Sub(one).Mul(decimal.NewFromInt(100)), nil
}
