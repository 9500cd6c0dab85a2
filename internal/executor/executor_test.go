package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/cycle"
	"cyclehunter/internal/evaluator"
	"cyclehunter/internal/exchange"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func lvl(price, qty string) exchange.PriceLevel {
	return exchange.PriceLevel{Price: dec(price), Qty: dec(qty)}
}

type fakeSource struct {
	tickers []exchange.Ticker24h
	books   map[string]*exchange.OrderBook
}

func (f *fakeSource) Ticker24h(ctx context.Context) ([]exchange.Ticker24h, error) {
	return f.tickers, nil
}

func (f *fakeSource) OrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	ob, ok := f.books[symbol]
	if !ok {
		return &exchange.OrderBook{Symbol: symbol}, nil
	}
	return ob, nil
}

type recordingJournal struct {
	records []TradeRecord
}

func (j *recordingJournal) Append(rec TradeRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func testCycle() cycle.Cycle {
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

// TestSizeExecutorSizing matches spec §8 scenario 6 exactly.
func TestSizeExecutorSizing(t *testing.T) {
	src := &fakeSource{
		books: map[string]*exchange.OrderBook{
			"BTCUSDT": {Symbol: "BTCUSDT", Asks: []exchange.PriceLevel{
				lvl("10", "1"),
				lvl("10.005", "1"),
				lvl("10.02", "1"),
			}},
		},
	}
	e := New(src, nil, Config{MaxSlippagePct: dec("0.1")}, nil)

	notional, err := e.size(context.Background(), testCycle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := dec("20.005")
	if !notional.Equal(want) {
		t.Fatalf("expected sized notional %s, got %s", want, notional)
	}
}

func TestCheckLiquidityRejectsBelowMinVolume(t *testing.T) {
	src := &fakeSource{
		tickers: []exchange.Ticker24h{
			{Symbol: "BTCUSDT", QuoteVolume: dec("1000")},
			{Symbol: "ETHBTC", QuoteVolume: dec("500000")},
			{Symbol: "ETHUSDT", QuoteVolume: dec("500000")},
		},
	}
	e := New(src, nil, Config{MinTradeVolumeUSD: dec("100000")}, nil)

	err := e.checkLiquidity(context.Background(), testCycle())
	if !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}
}

func TestCheckLiquidityPassesAboveMinVolume(t *testing.T) {
	src := &fakeSource{
		tickers: []exchange.Ticker24h{
			{Symbol: "BTCUSDT", QuoteVolume: dec("500000")},
			{Symbol: "ETHBTC", QuoteVolume: dec("500000")},
			{Symbol: "ETHUSDT", QuoteVolume: dec("500000")},
		},
	}
	e := New(src, nil, Config{MinTradeVolumeUSD: dec("100000")}, nil)

	if err := e.checkLiquidity(context.Background(), testCycle()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWalkBuyPartialLastLevel(t *testing.T) {
	asks := []exchange.PriceLevel{lvl("10", "1"), lvl("11", "1")}

	avg, filled, err := walkBuy(asks, dec("15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First level: spend 10, filled 1. Remaining 5 at price 11 -> partial qty 5/11.
	wantFilled := dec("1").Add(dec("5").Div(dec("11")))
	if !filled.Equal(wantFilled) {
		t.Fatalf("expected filled %s, got %s", wantFilled, filled)
	}
	wantAvg := dec("15").Div(wantFilled)
	if !avg.Equal(wantAvg) {
		t.Fatalf("expected avg price %s, got %s", wantAvg, avg)
	}
}

func TestWalkSellFullyFillable(t *testing.T) {
	bids := []exchange.PriceLevel{lvl("10", "1"), lvl("9.5", "2")}

	avg, received, err := walkSell(bids, dec("2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Take 1 @ 10, 1 @ 9.5 -> received = 19.5
	wantReceived := dec("19.5")
	if !received.Equal(wantReceived) {
		t.Fatalf("expected received %s, got %s", wantReceived, received)
	}
	wantAvg := wantReceived.Div(dec("2"))
	if !avg.Equal(wantAvg) {
		t.Fatalf("expected avg price %s, got %s", wantAvg, avg)
	}
}

func TestWalkBuyEmptyBookErrors(t *testing.T) {
	_, _, err := walkBuy(nil, dec("10"))
	if !errors.Is(err, ErrEmptyBook) {
		t.Fatalf("expected ErrEmptyBook, got %v", err)
	}
}

// TestProcessAbortsCycleOnEmptyLeg checks that an empty book on a
// later leg aborts only that cycle's simulation (spec §4.F failure
// semantics), without panicking.
func TestProcessAbortsCycleOnEmptyLeg(t *testing.T) {
	src := &fakeSource{
		tickers: []exchange.Ticker24h{
			{Symbol: "BTCUSDT", QuoteVolume: dec("500000")},
			{Symbol: "ETHBTC", QuoteVolume: dec("500000")},
			{Symbol: "ETHUSDT", QuoteVolume: dec("500000")},
		},
		books: map[string]*exchange.OrderBook{
			"BTCUSDT": {Symbol: "BTCUSDT", Asks: []exchange.PriceLevel{lvl("10", "100")}},
			"ETHBTC":  {Symbol: "ETHBTC", Asks: []exchange.PriceLevel{}}, // empty: aborts here
		},
	}
	journal := &recordingJournal{}
	e := New(src, journal, Config{
		InitialInvestmentUSD: dec("100"),
		MinTradeVolumeUSD:    dec("1000"),
		MaxSlippagePct:       dec("1"),
	}, nil)

	opp := evaluator.Opportunity{Cycle: testCycle(), ProfitPct: dec("0.5")}
	err := e.Process(context.Background(), opp)
	if !errors.Is(err, ErrEmptyBook) {
		t.Fatalf("expected ErrEmptyBook, got %v", err)
	}
	if len(journal.records) != 0 {
		t.Fatalf("expected no journal entry for an aborted cycle")
	}
}

func TestProcessJournalsSuccessfulSimulation(t *testing.T) {
	src := &fakeSource{
		tickers: []exchange.Ticker24h{
			{Symbol: "BTCUSDT", QuoteVolume: dec("500000")},
			{Symbol: "ETHBTC", QuoteVolume: dec("500000")},
			{Symbol: "ETHUSDT", QuoteVolume: dec("500000")},
		},
		books: map[string]*exchange.OrderBook{
			"BTCUSDT": {Symbol: "BTCUSDT", Asks: []exchange.PriceLevel{lvl("10", "100")}},
			"ETHBTC":  {Symbol: "ETHBTC", Asks: []exchange.PriceLevel{lvl("0.05", "100")}},
			"ETHUSDT": {Symbol: "ETHUSDT", Bids: []exchange.PriceLevel{lvl("220", "100")}},
		},
	}
	journal := &recordingJournal{}
	e := New(src, journal, Config{
		InitialInvestmentUSD: dec("100"),
		MinTradeVolumeUSD:    dec("1000"),
		MaxSlippagePct:       dec("1"),
	}, nil)

	opp := evaluator.Opportunity{Cycle: testCycle(), ProfitPct: dec("0.5")}
	if err := e.Process(context.Background(), opp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(journal.records) != 1 {
		t.Fatalf("expected exactly 1 journal entry, got %d", len(journal.records))
	}
	rec := journal.records[0]
	if rec.InitialAsset != "USDT" || rec.FinalAsset != "USDT" {
		t.Fatalf("expected round trip USDT -> USDT, got %s -> %s", rec.InitialAsset, rec.FinalAsset)
	}
}
