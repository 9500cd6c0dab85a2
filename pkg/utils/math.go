package utils

import "math"

// OrderBookLevel is a single (price, volume) level of a book side,
// used by the float-space depth-walk helpers below. The authoritative,
// spec-mandated execution math lives in internal/executor and uses
// shopspring/decimal; these helpers are for non-critical estimates
// (CLI previews, quick sizing sanity checks).
type OrderBookLevel struct {
	Price  float64
	Volume float64
}

// RoundToLotSize floors value to the nearest multiple of lotSize.
// A non-positive lotSize is treated as "no rounding".
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}

// RoundToLotSizeUp ceils value to the nearest multiple of lotSize.
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Ceil(value/lotSize) * lotSize
}

// RoundToLotSizeNearest rounds value to the nearest multiple of lotSize.
func RoundToLotSizeNearest(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Round(value/lotSize) * lotSize
}

// CalculateSpread returns the percentage spread of priceHigh over
// priceLow. Returns 0 if priceLow is not positive.
func CalculateSpread(priceHigh, priceLow float64) float64 {
	if priceLow <= 0 {
		return 0
	}
	return (priceHigh - priceLow) / priceLow * 100
}

// CalculateSpreadFromPrices returns the absolute percentage spread
// between two prices, relative to whichever is lower. Returns 0 if
// either price is not positive.
func CalculateSpreadFromPrices(priceA, priceB float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	low := math.Min(priceA, priceB)
	return math.Abs(priceA-priceB) / low * 100
}

// CalculateNetSpread subtracts round-trip taker fees (charged on both
// legs, both sides) from a gross spread percentage. Fees are
// fractions (e.g. 0.0004 for 4bps), spreadPct and the result are
// percentages.
func CalculateNetSpread(spreadPct, feeA, feeB float64) float64 {
	return spreadPct - 2*(feeA+feeB)*100
}

// CalculateNetSpreadDirect combines CalculateSpread and CalculateNetSpread.
func CalculateNetSpreadDirect(priceHigh, priceLow, feeA, feeB float64) float64 {
	return CalculateNetSpread(CalculateSpread(priceHigh, priceLow), feeA, feeB)
}

// CalculateWeightedAverage computes a volume-weighted average price.
// Non-positive weights are ignored. Returns 0 on length mismatch, an
// empty input, or when all weights are non-positive.
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}

	var sum, totalWeight float64
	for i, v := range values {
		w := weights[i]
		if w <= 0 {
			continue
		}
		sum += v * w
		totalWeight += w
	}

	if totalWeight <= 0 {
		return 0
	}
	return sum / totalWeight
}

// SimulateMarketBuy walks asks from the top, accumulating volume up
// to targetVolume. Returns the volume-weighted average fill price,
// the volume actually filled (capped by available liquidity), and the
// slippage percentage versus the top-of-book ask.
func SimulateMarketBuy(asks []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	return simulateMarketWalk(asks, targetVolume)
}

// SimulateMarketSell walks bids from the top, symmetric to
// SimulateMarketBuy.
func SimulateMarketSell(bids []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	return simulateMarketWalk(bids, targetVolume)
}

func simulateMarketWalk(levels []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	if len(levels) == 0 || targetVolume <= 0 {
		return 0, 0, 0
	}

	topPrice := levels[0].Price
	var notional float64
	remaining := targetVolume

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lvl.Volume)
		notional += take * lvl.Price
		filled += take
		remaining -= take
	}

	if filled <= 0 {
		return 0, 0, 0
	}

	avgPrice = notional / filled
	if topPrice > 0 {
		slippagePct = (avgPrice - topPrice) / topPrice * 100
	}
	return avgPrice, filled, slippagePct
}

// CalculatePNL returns unrealized PNL for a single-leg position.
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	switch side {
	case "long":
		return (currentPrice - entryPrice) * quantity
	case "short":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// CalculateTotalPNL sums the PNL of a long leg and a short leg of equal
// quantity, as used by cross-venue spread arbitrage.
func CalculateTotalPNL(longEntry, longCurrent, shortEntry, shortCurrent, quantity float64) float64 {
	return CalculatePNL("long", longEntry, longCurrent, quantity) +
		CalculatePNL("short", shortEntry, shortCurrent, quantity)
}

// SplitVolume divides totalVolume into nParts equal, lot-size-rounded
// chunks. Returns nil if nParts or totalVolume is not positive.
func SplitVolume(totalVolume float64, nParts int, lotSize float64) []float64 {
	if nParts <= 0 || totalVolume <= 0 {
		return nil
	}

	part := RoundToLotSize(totalVolume/float64(nParts), lotSize)
	parts := make([]float64, nParts)
	for i := range parts {
		parts[i] = part
	}
	return parts
}

// IsSpreadSufficient reports whether spread meets or exceeds threshold.
func IsSpreadSufficient(spread, threshold float64) bool {
	return spread >= threshold
}

// ShouldExit reports whether spread has decayed to or below the exit
// threshold of a mean-reversion spread trade.
func ShouldExit(spread, exitThreshold float64) bool {
	return spread <= exitThreshold
}

// IsStopLossHit reports whether pnl has breached a stop-loss of
// magnitude stopLoss. stopLoss <= 0 means the stop-loss is disabled.
func IsStopLossHit(pnl, stopLoss float64) bool {
	if stopLoss <= 0 {
		return false
	}
	return pnl <= -stopLoss
}

// Clamp restricts value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
