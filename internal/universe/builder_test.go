package universe

import (
	"testing"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/exchange"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func tradingPair(symbol, base, quote string) exchange.Pair {
	return exchange.Pair{Symbol: symbol, BaseAsset: base, QuoteAsset: quote, Status: exchange.StatusTrading}
}

func ticker(symbol, quoteVolume, priceChangePct string) exchange.Ticker24h {
	return exchange.Ticker24h{Symbol: symbol, QuoteVolume: dec(quoteVolume), PriceChangePercent: dec(priceChangePct)}
}

func TestBuildWhitelistFiltersByBaseCoinAndVolume(t *testing.T) {
	pairs := []exchange.Pair{
		tradingPair("BTCUSDT", "BTC", "USDT"),
		tradingPair("ETHUSDT", "ETH", "USDT"),
		tradingPair("DOGEUSDT", "DOGE", "USDT"),
		{Symbol: "XRPUSDT", BaseAsset: "XRP", QuoteAsset: "USDT", Status: "BREAK"},
		tradingPair("ETHBTC", "ETH", "BTC"),
	}
	tickers := []exchange.Ticker24h{
		ticker("BTCUSDT", "1000000", "1.5"),
		ticker("ETHUSDT", "500000", "-2.0"),
		ticker("DOGEUSDT", "10", "5.0"), // below MinVolumeUSD
		ticker("XRPUSDT", "900000", "0.5"),
		ticker("ETHBTC", "800000", "1.0"), // neither asset is a base coin
	}
	cfg := Config{BaseCoins: []string{"USDT"}, MinVolumeUSD: dec("1000"), WhitelistTopN: 10}

	set, err := BuildWhitelist(pairs, tickers, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %v", set.Pairs)
	}
	want := map[string]bool{"BTCUSDT": true, "ETHUSDT": true}
	for _, p := range set.Pairs {
		if !want[p] {
			t.Errorf("unexpected pair in whitelist: %s", p)
		}
	}
}

func TestBuildWhitelistRespectsTopN(t *testing.T) {
	pairs := []exchange.Pair{
		tradingPair("BTCUSDT", "BTC", "USDT"),
		tradingPair("ETHUSDT", "ETH", "USDT"),
	}
	tickers := []exchange.Ticker24h{
		ticker("BTCUSDT", "2000000", "1.0"),
		ticker("ETHUSDT", "1000000", "1.0"),
	}
	cfg := Config{BaseCoins: []string{"USDT"}, MinVolumeUSD: dec("0"), WhitelistTopN: 1}

	set, err := BuildWhitelist(pairs, tickers, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Pairs) != 1 || set.Pairs[0] != "BTCUSDT" {
		t.Fatalf("expected top-1 to be BTCUSDT (higher quote volume), got %v", set.Pairs)
	}
}

func TestBuildWhitelistDropsBelowMinNotional(t *testing.T) {
	pairs := []exchange.Pair{
		{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", Status: exchange.StatusTrading, MinNotional: dec("2000000")},
	}
	tickers := []exchange.Ticker24h{ticker("BTCUSDT", "1000000", "1.0")}
	cfg := Config{BaseCoins: []string{"USDT"}, MinVolumeUSD: dec("0"), WhitelistTopN: 10}

	set, err := BuildWhitelist(pairs, tickers, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Pairs) != 0 {
		t.Fatalf("expected pair to be dropped (min notional exceeds volume), got %v", set.Pairs)
	}
}

func TestBuildWhitelistErrorsOnEmptyInputs(t *testing.T) {
	if _, err := BuildWhitelist(nil, []exchange.Ticker24h{ticker("A", "1", "1")}, Config{}); err != ErrNoSymbols {
		t.Errorf("expected ErrNoSymbols, got %v", err)
	}
	pairs := []exchange.Pair{tradingPair("BTCUSDT", "BTC", "USDT")}
	if _, err := BuildWhitelist(pairs, nil, Config{}); err != ErrNoTickers {
		t.Errorf("expected ErrNoTickers, got %v", err)
	}
}

func TestBuildBlacklistExcludesWhitelistedAndZeroVolume(t *testing.T) {
	pairs := []exchange.Pair{
		tradingPair("BTCUSDT", "BTC", "USDT"),
		tradingPair("DOGEUSDT", "DOGE", "USDT"),
		tradingPair("SHIBUSDT", "SHIB", "USDT"),
	}
	tickers := []exchange.Ticker24h{
		ticker("BTCUSDT", "1000000", "1.0"),
		ticker("DOGEUSDT", "10", "1.0"),
		ticker("SHIBUSDT", "0", "1.0"),
	}
	cfg := Config{BlacklistBottomN: 10}

	set, err := BuildBlacklist(pairs, tickers, []string{"BTCUSDT"}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Pairs) != 1 || set.Pairs[0] != "DOGEUSDT" {
		t.Fatalf("expected only DOGEUSDT (whitelisted BTC excluded, zero-volume SHIB excluded), got %v", set.Pairs)
	}
}

func TestBuildBlacklistAcceptsNilWhitelist(t *testing.T) {
	pairs := []exchange.Pair{tradingPair("DOGEUSDT", "DOGE", "USDT")}
	tickers := []exchange.Ticker24h{ticker("DOGEUSDT", "10", "1.0")}

	set, err := BuildBlacklist(pairs, tickers, nil, Config{BlacklistBottomN: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %v", set.Pairs)
	}
}

func TestBuildVolatilityRanksByAbsoluteChangeByDefault(t *testing.T) {
	pairs := []exchange.Pair{
		tradingPair("BTCUSDT", "BTC", "USDT"),
		tradingPair("ETHUSDT", "ETH", "USDT"),
	}
	tickers := []exchange.Ticker24h{
		ticker("BTCUSDT", "1000000", "-10.0"),
		ticker("ETHUSDT", "1000000", "5.0"),
	}
	cfg := Config{VolatilityTopN: 1, VolatilitySigned: false}

	set, err := BuildVolatility(pairs, tickers, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Pairs) != 1 || set.Pairs[0] != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT (largest absolute move), got %v", set.Pairs)
	}
}

func TestBuildVolatilitySignedRanksGainersOnly(t *testing.T) {
	pairs := []exchange.Pair{
		tradingPair("BTCUSDT", "BTC", "USDT"),
		tradingPair("ETHUSDT", "ETH", "USDT"),
	}
	tickers := []exchange.Ticker24h{
		ticker("BTCUSDT", "1000000", "-10.0"),
		ticker("ETHUSDT", "1000000", "5.0"),
	}
	cfg := Config{VolatilityTopN: 1, VolatilitySigned: true}

	set, err := BuildVolatility(pairs, tickers, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Pairs) != 1 || set.Pairs[0] != "ETHUSDT" {
		t.Fatalf("expected ETHUSDT (largest signed gain), got %v", set.Pairs)
	}
}
