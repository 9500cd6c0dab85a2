package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange is a thin, retried, read-only client over a spot venue's
// REST and WebSocket surfaces. It never places orders: the dry-run
// executor reads liquidity through it but only ever simulates fills.
type Exchange interface {
	// Name returns the venue's identifier (e.g. "binance").
	Name() string

	// ExchangeInfo returns every symbol the venue lists, with status
	// and filters.
	ExchangeInfo(ctx context.Context) ([]Pair, error)

	// Ticker24h returns rolling 24h stats for every symbol.
	Ticker24h(ctx context.Context) ([]Ticker24h, error)

	// TradeFees returns the taker fee for every symbol in one bulk
	// call. Callers fall back to a configured default for symbols
	// absent from the result.
	TradeFees(ctx context.Context) (FeeTable, error)

	// OrderBook returns the L2 book for symbol truncated to depth.
	OrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)

	// SubscribeBookTicker opens one or more WebSocket connections
	// covering symbols (chunked internally to respect URL length
	// limits) and invokes onTick for every best-bid/ask update until
	// ctx is cancelled. It reconnects indefinitely on transport loss.
	SubscribeBookTicker(ctx context.Context, symbols []string, onTick func(BookTicker)) error

	// Close releases pooled connections and stops any active
	// subscriptions.
	Close() error
}

// Pair is a tradeable symbol and its venue-reported metadata.
type Pair struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	Status      string
	MinNotional decimal.Decimal
	LotSize     decimal.Decimal
	TickSize    decimal.Decimal
}

// StatusTrading is the only Pair.Status value that participates in
// universe selection and cycle enumeration.
const StatusTrading = "TRADING"

// Ticker24h is a symbol's rolling 24h volume/change snapshot, used by
// the universe builder's whitelist/blacklist/volatility algorithms.
type Ticker24h struct {
	Symbol             string
	QuoteVolume        decimal.Decimal
	PriceChangePercent decimal.Decimal
}

// FeeTable maps a pair symbol to its taker fee, a fraction in [0, 1).
type FeeTable map[string]decimal.Decimal

// DefaultTakerFee is used whenever FeeTable has no entry for a symbol.
var DefaultTakerFee = decimal.NewFromFloat(0.001)

// Fee returns the symbol's taker fee, or DefaultTakerFee if unset.
func (t FeeTable) Fee(symbol string) decimal.Decimal {
	if fee, ok := t[symbol]; ok {
		return fee
	}
	return DefaultTakerFee
}

// BookTicker is a symbol's latest top-of-book quote.
type BookTicker struct {
	Symbol    string
	BestBid   decimal.Decimal
	BestAsk   decimal.Decimal
	Timestamp time.Time
}

// PriceLevel is a single (price, qty) entry of an order book side.
type PriceLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// OrderBook is an L2 snapshot: Bids sorted descending by price, Asks
// sorted ascending.
type OrderBook struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// ExchangeError is a typed failure reported by the venue (an HTTP error
// status with its body). The Binance adapter marks 5xx ones retryable
// with retry.Temporary and the venue's own error replies permanent with
// retry.Permanent.
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap exposes Original to errors.Is()/errors.As(). The Binance
// adapter leaves Original nil and instead wraps the ExchangeError itself
// in a retry error.
func (e *ExchangeError) Unwrap() error {
	return e.Original
}
