package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/cycle"
	"cyclehunter/internal/exchange"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func triangleCycle() cycle.Cycle {
	return cycle.Cycle{
		ID:     "USDT-BTC-ETH-USDT",
		Assets: []string{"USDT", "BTC", "ETH", "USDT"},
		Steps: []cycle.Step{
			{PairSymbol: "BTCUSDT", From: "USDT", To: "BTC", Side: cycle.Buy},
			{PairSymbol: "ETHBTC", From: "BTC", To: "ETH", Side: cycle.Buy},
			{PairSymbol: "ETHUSDT", From: "ETH", To: "USDT", Side: cycle.Sell},
		},
	}
}

func uniformFees(f string) exchange.FeeTable {
	fee := dec(f)
	return exchange.FeeTable{"BTCUSDT": fee, "ETHBTC": fee, "ETHUSDT": fee}
}

func tick(symbol, bid, ask string) exchange.BookTicker {
	return exchange.BookTicker{Symbol: symbol, BestBid: dec(bid), BestAsk: dec(ask)}
}

func newTestEvaluator(threshold string) *Evaluator {
	cfg := DefaultConfig()
	cfg.MinProfitThreshold = dec(threshold)
	return New([]cycle.Cycle{triangleCycle()}, uniformFees("0.001"), cfg, nil)
}

func TestPairsReturnsUnionSorted(t *testing.T) {
	e := newTestEvaluator("0")
	pairs := e.Pairs()
	want := []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}
	if len(pairs) != len(want) {
		t.Fatalf("expected %v, got %v", want, pairs)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, pairs)
		}
	}
}

// TestOnTickEmitsOpportunityAboveThreshold feeds the full set of
// prices needed by the cycle and expects exactly one opportunity once
// the last leg arrives.
func TestOnTickEmitsOpportunityAboveThreshold(t *testing.T) {
	e := newTestEvaluator("0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx, nil)

	e.OnTick(ctx, tick("BTCUSDT", "49999", "50000"))
	e.OnTick(ctx, tick("ETHBTC", "0.0499", "0.05"))
	e.OnTick(ctx, tick("ETHUSDT", "2550", "2501"))

	select {
	case opp := <-e.Opportunities():
		if opp.Cycle.ID != triangleCycle().ID {
			t.Fatalf("unexpected cycle in opportunity: %s", opp.Cycle.ID)
		}
		if !opp.ProfitPct.IsPositive() {
			t.Fatalf("expected positive profit, got %s", opp.ProfitPct)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an opportunity to be published")
	}
}

// TestOnTickNoOpportunityBelowThreshold checks that a profitable-but-
// below-threshold cycle never reaches the opportunity channel.
func TestOnTickNoOpportunityBelowThreshold(t *testing.T) {
	e := newTestEvaluator("1000") // unreachable threshold

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx, nil)

	e.OnTick(ctx, tick("BTCUSDT", "49999", "50000"))
	e.OnTick(ctx, tick("ETHBTC", "0.0499", "0.05"))
	e.OnTick(ctx, tick("ETHUSDT", "2550", "2501"))

	select {
	case opp := <-e.Opportunities():
		t.Fatalf("expected no opportunity below threshold, got %v", opp)
	case <-time.After(200 * time.Millisecond):
	}
}

// TestPublishOpportunitySnapshotHasNoExtraneousPairs ensures the
// opportunity's PricesSnapshot contains exactly the pairs the cycle
// references, never the evaluator's entire price map.
func TestPublishOpportunitySnapshotHasNoExtraneousPairs(t *testing.T) {
	e := newTestEvaluator("0")

	// An unrelated pair present in the price map before any cycle ticks.
	e.prices["UNRELATEDUSDT"] = tick("UNRELATEDUSDT", "1", "1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx, nil)

	e.OnTick(ctx, tick("BTCUSDT", "49999", "50000"))
	e.OnTick(ctx, tick("ETHBTC", "0.0499", "0.05"))
	e.OnTick(ctx, tick("ETHUSDT", "2550", "2501"))

	select {
	case opp := <-e.Opportunities():
		if len(opp.PricesSnapshot) != 3 {
			t.Fatalf("expected exactly 3 pairs in snapshot, got %d: %v", len(opp.PricesSnapshot), opp.PricesSnapshot)
		}
		for _, sym := range []string{"BTCUSDT", "ETHBTC", "ETHUSDT"} {
			if _, ok := opp.PricesSnapshot[sym]; !ok {
				t.Fatalf("expected snapshot to contain %s", sym)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("expected an opportunity to be published")
	}
}

// TestProcessTickSkipsOnMissingPriceWithoutMutatingLatestProfit checks
// that a cycle referencing a pair with no recorded tick yet is simply
// skipped: it never appears in latest_profit.
func TestProcessTickSkipsOnMissingPriceWithoutMutatingLatestProfit(t *testing.T) {
	e := newTestEvaluator("0")

	e.processTick(tick("BTCUSDT", "49999", "50000"))

	if _, ok := e.latestProfit[triangleCycle().ID]; ok {
		t.Fatalf("expected no latest_profit entry while legs are still missing")
	}
}

// TestProcessTickOrderIndependence: feeding the same three ticks in
// different orders produces the same final latest_profit, since each
// tick always recomputes from the full current price map rather than
// from the event itself.
func TestProcessTickOrderIndependence(t *testing.T) {
	ticks := []exchange.BookTicker{
		tick("BTCUSDT", "49999", "50000"),
		tick("ETHBTC", "0.0499", "0.05"),
		tick("ETHUSDT", "2550", "2501"),
	}

	e1 := newTestEvaluator("0")
	for _, tk := range ticks {
		e1.processTick(tk)
	}

	e2 := newTestEvaluator("0")
	for i := len(ticks) - 1; i >= 0; i-- {
		e2.processTick(ticks[i])
	}

	id := triangleCycle().ID
	p1, ok1 := e1.latestProfit[id]
	p2, ok2 := e2.latestProfit[id]
	if !ok1 || !ok2 {
		t.Fatalf("expected both evaluators to have computed a profit")
	}
	if !p1.Equal(p2) {
		t.Fatalf("expected order-independent result, got %s vs %s", p1, p2)
	}
}

func TestBuildSnapshotRanksUnknownCyclesLast(t *testing.T) {
	known := triangleCycle()
	unknown := cycle.Cycle{ID: "USDT-ETH-BTC-USDT", Assets: []string{"USDT", "ETH", "BTC", "USDT"}}

	cfg := DefaultConfig()
	e := New([]cycle.Cycle{known, unknown}, uniformFees("0.001"), cfg, nil)
	e.processTick(tick("BTCUSDT", "49999", "50000"))
	e.processTick(tick("ETHBTC", "0.0499", "0.05"))
	e.processTick(tick("ETHUSDT", "2550", "2501"))

	snap := e.buildSnapshot()
	if len(snap.Profits) != 2 {
		t.Fatalf("expected 2 ranked entries, got %d", len(snap.Profits))
	}

	var unknownEntry *ProfitEntry
	for i := range snap.Profits {
		if snap.Profits[i].Cycle == unknown.String() {
			unknownEntry = &snap.Profits[i]
		}
	}
	if unknownEntry == nil {
		t.Fatalf("expected unknown cycle present in ranking")
	}
	if !unknownEntry.ProfitPct.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("expected unknown cycle ranked -1, got %s", unknownEntry.ProfitPct)
	}
}
