package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"cyclehunter/pkg/ratelimit"
	"cyclehunter/pkg/retry"
	"cyclehunter/pkg/utils"
)

// restRate/restBurst approximate Binance's public-endpoint weight
// budget as whole requests/sec rather than request weight:
// self-throttling here keeps the adapter's own retry policy from ever
// tripping the venue's own rate limit in the first place (spec §4.A).
const (
	restRate  = 15.0
	restBurst = 30.0
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Binance is a read-only adapter over Binance's public spot REST and
// WebSocket surfaces. It never signs a request: every endpoint it
// calls is public market data.
type Binance struct {
	restBaseURL string
	wsBaseURL   string
	streamChunk int

	httpClient *http.Client
	retryCfg   retry.Config
	restLimit  *ratelimit.RateLimiter

	wsMu       sync.Mutex
	wsManagers []*WSReconnectManager
	closed     bool
}

// NewBinance builds an adapter against restBaseURL/wsBaseURL (override
// for testnets or mocks), chunking book-ticker subscriptions to
// streamChunk symbols per connection.
func NewBinance(restBaseURL, wsBaseURL string, streamChunk int) *Binance {
	if streamChunk <= 0 {
		streamChunk = 75
	}
	return &Binance{
		restBaseURL: strings.TrimRight(restBaseURL, "/"),
		wsBaseURL:   strings.TrimRight(wsBaseURL, "/"),
		streamChunk: streamChunk,
		httpClient:  GetGlobalHTTPClient().GetClient(),
		retryCfg:    ExchangeRetryConfig(),
		restLimit:   ratelimit.NewRateLimiter(restRate, restBurst),
	}
}

// ExchangeRetryConfig is the adapter's REST retry policy: exponential
// backoff starting at 2s, doubling to a 30s cap, 5 attempts total.
func ExchangeRetryConfig() retry.Config {
	return retry.Config{
		MaxRetries:   5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		RetryIf:      retry.IsRetryable,
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) doGet(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return retry.DoWithResult(ctx, func() ([]byte, error) {
		if err := b.restLimit.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}

		reqURL := b.restBaseURL + endpoint
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return nil, retry.Temporary(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Temporary(err)
		}

		if resp.StatusCode >= 500 {
			return nil, retry.Temporary(&ExchangeError{Exchange: "binance", Code: strconv.Itoa(resp.StatusCode), Message: string(body)})
		}
		if resp.StatusCode >= 400 {
			var errResp struct {
				Code int    `json:"code"`
				Msg  string `json:"msg"`
			}
			_ = fastJSON.Unmarshal(body, &errResp)
			return nil, retry.Permanent(&ExchangeError{Exchange: "binance", Code: strconv.Itoa(errResp.Code), Message: errResp.Msg})
		}

		return body, nil
	}, b.retryCfg)
}

func (b *Binance) ExchangeInfo(ctx context.Context) ([]Pair, error) {
	body, err := b.doGet(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
			Status     string `json:"status"`
			Filters    []struct {
				FilterType  string `json:"filterType"`
				MinNotional string `json:"minNotional"`
				Notional    string `json:"notional"`
				StepSize    string `json:"stepSize"`
				TickSize    string `json:"tickSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := fastJSON.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode exchangeInfo: %w", err)
	}

	pairs := make([]Pair, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		p := Pair{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				p.LotSize = parseDecimalOrZero(f.StepSize)
			case "PRICE_FILTER":
				p.TickSize = parseDecimalOrZero(f.TickSize)
			case "MIN_NOTIONAL":
				p.MinNotional = parseDecimalOrZero(f.MinNotional)
			case "NOTIONAL":
				p.MinNotional = parseDecimalOrZero(f.Notional)
			}
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func (b *Binance) Ticker24h(ctx context.Context) ([]Ticker24h, error) {
	body, err := b.doGet(ctx, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Symbol             string `json:"symbol"`
		QuoteVolume        string `json:"quoteVolume"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := fastJSON.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode ticker/24hr: %w", err)
	}

	tickers := make([]Ticker24h, 0, len(resp))
	for _, t := range resp {
		tickers = append(tickers, Ticker24h{
			Symbol:             t.Symbol,
			QuoteVolume:        parseDecimalOrZero(t.QuoteVolume),
			PriceChangePercent: parseDecimalOrZero(t.PriceChangePercent),
		})
	}
	return tickers, nil
}

// TradeFees returns DefaultTakerFee for every listed symbol. Binance's
// real per-symbol schedule lives behind the authenticated
// /sapi/v1/asset/tradeFee endpoint; this adapter only speaks to public
// market-data endpoints (credential storage is out of scope here), so
// callers relying on anything sharper than the configured default
// fee must supply one out of band.
func (b *Binance) TradeFees(ctx context.Context) (FeeTable, error) {
	pairs, err := b.ExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	fees := make(FeeTable, len(pairs))
	for _, p := range pairs {
		fees[p.Symbol] = DefaultTakerFee
	}
	return fees, nil
}

func (b *Binance) OrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	if depth <= 0 || depth > 5000 {
		depth = 100
	}

	query := url.Values{
		"symbol": {symbol},
		"limit":  {strconv.Itoa(depth)},
	}
	body, err := b.doGet(ctx, "/api/v3/depth", query)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := fastJSON.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode depth: %w", err)
	}

	book := &OrderBook{
		Symbol: symbol,
		Bids:   make([]PriceLevel, len(resp.Bids)),
		Asks:   make([]PriceLevel, len(resp.Asks)),
	}
	for i, lvl := range resp.Bids {
		book.Bids[i] = PriceLevel{Price: parseDecimalOrZero(lvl[0]), Qty: parseDecimalOrZero(lvl[1])}
	}
	for i, lvl := range resp.Asks {
		book.Asks[i] = PriceLevel{Price: parseDecimalOrZero(lvl[0]), Qty: parseDecimalOrZero(lvl[1])}
	}
	return book, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// bookTickerFrame is the combined-stream envelope Binance wraps every
// book-ticker push in. Decoded with json-iterator on this hot path.
type bookTickerFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol  string `json:"s"`
		BestBid string `json:"b"`
		BestAsk string `json:"a"`
	} `json:"data"`
}

func (b *Binance) SubscribeBookTicker(ctx context.Context, symbols []string, onTick func(BookTicker)) error {
	chunks := chunkSymbols(symbols, b.streamChunk)

	b.wsMu.Lock()
	if b.closed {
		b.wsMu.Unlock()
		return fmt.Errorf("binance: adapter closed")
	}
	b.wsMu.Unlock()

	var wg sync.WaitGroup
	for _, chunk := range chunks {
		streamURL := b.buildStreamURL(chunk)

		cfg := DefaultWSReconnectConfig()
		mgr := NewWSReconnectManager("binance", streamURL, cfg)
		mgr.SetOnMessage(func(msg []byte) {
			var frame bookTickerFrame
			if err := fastJSON.Unmarshal(msg, &frame); err != nil {
				utils.Warn("binance: malformed book-ticker frame", utils.Err(err))
				return
			}
			if frame.Data.Symbol == "" {
				return
			}
			onTick(BookTicker{
				Symbol:  frame.Data.Symbol,
				BestBid: parseDecimalOrZero(frame.Data.BestBid),
				BestAsk: parseDecimalOrZero(frame.Data.BestAsk),
			})
		})

		b.wsMu.Lock()
		b.wsManagers = append(b.wsManagers, mgr)
		b.wsMu.Unlock()

		if err := mgr.Connect(); err != nil {
			return fmt.Errorf("binance: connect stream chunk: %w", err)
		}
		wg.Add(1)
		go func(m *WSReconnectManager) {
			defer wg.Done()
			<-ctx.Done()
			m.Close()
		}(mgr)
	}

	wg.Wait()
	return nil
}

func (b *Binance) buildStreamURL(symbols []string) string {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@bookTicker"
	}
	return b.wsBaseURL + "/stream?streams=" + strings.Join(streams, "/")
}

func chunkSymbols(symbols []string, size int) [][]string {
	if size <= 0 {
		size = len(symbols)
	}
	var chunks [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		chunks = append(chunks, symbols[i:end])
	}
	return chunks
}

func (b *Binance) Close() error {
	b.wsMu.Lock()
	defer b.wsMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, mgr := range b.wsManagers {
		mgr.Close()
	}
	return nil
}
