// Package universe builds the whitelist/blacklist/volatility asset
// sets that bound cycle enumeration. All three are pure functions of
// venue metadata and tickers: no repository, no mutation, computed
// once per startup (or explicit refresh) and immutable afterward.
package universe

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/exchange"
)

var (
	// ErrNoSymbols is returned when exchange_info yielded nothing to work with.
	ErrNoSymbols = errors.New("universe: no symbols to build from")
	// ErrNoTickers is returned when ticker_24h yielded nothing to work with.
	ErrNoTickers = errors.New("universe: no tickers to build from")
)

// Set is a sorted, deduplicated collection of pair symbols and the
// asset closure they reference.
type Set struct {
	Pairs  []string
	Assets []string
}

// Config carries the subset of the process configuration the builder
// needs; it mirrors internal/config.UniverseConfig field-for-field, so
// callers copy that struct's fields across one by one.
type Config struct {
	BaseCoins        []string
	MinVolumeUSD     decimal.Decimal
	WhitelistTopN    int
	BlacklistBottomN int
	VolatilityTopN   int
	VolatilitySigned bool
}

type candidate struct {
	pair   exchange.Pair
	ticker exchange.Ticker24h
}

func inSet(coins []string, asset string) bool {
	for _, c := range coins {
		if c == asset {
			return true
		}
	}
	return false
}

func indexTickers(tickers []exchange.Ticker24h) map[string]exchange.Ticker24h {
	idx := make(map[string]exchange.Ticker24h, len(tickers))
	for _, t := range tickers {
		idx[t.Symbol] = t
	}
	return idx
}

func assetClosure(pairs []exchange.Pair) []string {
	seen := make(map[string]struct{})
	for _, p := range pairs {
		seen[p.BaseAsset] = struct{}{}
		seen[p.QuoteAsset] = struct{}{}
	}
	assets := make([]string, 0, len(seen))
	for a := range seen {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}

func pairSymbols(pairs []exchange.Pair) []string {
	symbols := make([]string, len(pairs))
	for i, p := range pairs {
		symbols[i] = p.Symbol
	}
	sort.Strings(symbols)
	return symbols
}

// BuildWhitelist filters TRADING symbols anchored in cfg.BaseCoins,
// drops symbols below the configured minimum quote volume or whose
// minimum notional requirement exceeds that volume, then keeps the
// top WhitelistTopN by quote volume descending.
func BuildWhitelist(pairs []exchange.Pair, tickers []exchange.Ticker24h, cfg Config) (*Set, error) {
	if len(pairs) == 0 {
		return nil, ErrNoSymbols
	}
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	tickerIdx := indexTickers(tickers)

	var candidates []candidate
	for _, p := range pairs {
		if p.Status != exchange.StatusTrading {
			continue
		}
		if !inSet(cfg.BaseCoins, p.BaseAsset) && !inSet(cfg.BaseCoins, p.QuoteAsset) {
			continue
		}
		t, ok := tickerIdx[p.Symbol]
		if !ok {
			continue
		}
		if t.QuoteVolume.LessThan(cfg.MinVolumeUSD) {
			continue
		}
		if p.MinNotional.GreaterThan(t.QuoteVolume) {
			continue
		}
		candidates = append(candidates, candidate{pair: p, ticker: t})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ticker.QuoteVolume.GreaterThan(candidates[j].ticker.QuoteVolume)
	})

	n := cfg.WhitelistTopN
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	top := make([]exchange.Pair, n)
	for i := 0; i < n; i++ {
		top[i] = candidates[i].pair
	}

	return &Set{Pairs: pairSymbols(top), Assets: assetClosure(top)}, nil
}

// BuildBlacklist ranks TRADING symbols absent from whitelistPairs,
// with nonzero quote volume, ascending by volume, and keeps the
// bottom BlacklistBottomN. A nil/empty whitelistPairs is accepted —
// callers that could not load a whitelist file proceed with an empty
// exclusion set (see spec failure semantics).
func BuildBlacklist(pairs []exchange.Pair, tickers []exchange.Ticker24h, whitelistPairs []string, cfg Config) (*Set, error) {
	if len(pairs) == 0 {
		return nil, ErrNoSymbols
	}
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	excluded := make(map[string]struct{}, len(whitelistPairs))
	for _, s := range whitelistPairs {
		excluded[s] = struct{}{}
	}
	tickerIdx := indexTickers(tickers)

	var candidates []candidate
	for _, p := range pairs {
		if p.Status != exchange.StatusTrading {
			continue
		}
		if _, ok := excluded[p.Symbol]; ok {
			continue
		}
		t, ok := tickerIdx[p.Symbol]
		if !ok || !t.QuoteVolume.IsPositive() {
			continue
		}
		candidates = append(candidates, candidate{pair: p, ticker: t})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ticker.QuoteVolume.LessThan(candidates[j].ticker.QuoteVolume)
	})

	n := cfg.BlacklistBottomN
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	bottom := make([]exchange.Pair, n)
	for i := 0; i < n; i++ {
		bottom[i] = candidates[i].pair
	}

	return &Set{Pairs: pairSymbols(bottom), Assets: assetClosure(bottom)}, nil
}

// BuildVolatility ranks TRADING symbols by 24h price_change_percent
// and keeps the top VolatilityTopN. Ranking is by absolute magnitude
// unless cfg.VolatilitySigned is set, in which case it ranks by the
// signed value (largest gainers only).
func BuildVolatility(pairs []exchange.Pair, tickers []exchange.Ticker24h, cfg Config) (*Set, error) {
	if len(pairs) == 0 {
		return nil, ErrNoSymbols
	}
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	tradingSymbols := make(map[string]exchange.Pair, len(pairs))
	for _, p := range pairs {
		if p.Status == exchange.StatusTrading {
			tradingSymbols[p.Symbol] = p
		}
	}

	var candidates []candidate
	for _, t := range tickers {
		p, ok := tradingSymbols[t.Symbol]
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{pair: p, ticker: t})
	}

	rank := func(t exchange.Ticker24h) decimal.Decimal {
		if cfg.VolatilitySigned {
			return t.PriceChangePercent
		}
		return t.PriceChangePercent.Abs()
	}

	sort.Slice(candidates, func(i, j int) bool {
		return rank(candidates[i].ticker).GreaterThan(rank(candidates[j].ticker))
	})

	n := cfg.VolatilityTopN
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	top := make([]exchange.Pair, n)
	for i := 0; i < n; i++ {
		top[i] = candidates[i].pair
	}

	return &Set{Pairs: pairSymbols(top), Assets: assetClosure(top)}, nil
}
