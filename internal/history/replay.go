package history

import "cyclehunter/internal/exchange"

// Replay feeds ticks, already ordered by RangeBetween, into onTick one
// at a time. It exists to keep the backtest subcommand's replay loop
// identical in shape to the live subscription loop: both end up
// calling the same per-tick callback.
func Replay(ticks []exchange.BookTicker, onTick func(exchange.BookTicker)) {
	for _, bt := range ticks {
		onTick(bt)
	}
}
