package strategy

import (
	"sort"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// BestBid returns the highest bid and its volume. ok is false when the book
// has no bids.
func BestBid(depth domain.OrderDepth) (price, volume int, ok bool) {
	for p, q := range depth.BuyOrders {
		if !ok || p > price {
			price, volume, ok = p, q, true
		}
	}
	return price, volume, ok
}

// BestAsk returns the lowest ask and the volume available there as a
// positive number. ok is false when the book has no asks.
func BestAsk(depth domain.OrderDepth) (price, volume int, ok bool) {
	for p, q := range depth.SellOrders {
		if !ok || p < price {
			price, volume, ok = p, abs(q), true
		}
	}
	return price, volume, ok
}

// MidPrice averages the best bid and best ask. With one side present the
// lone best price is used; with neither, ok is false.
func MidPrice(depth domain.OrderDepth) (float64, bool) {
	bid, _, hasBid := BestBid(depth)
	ask, _, hasAsk := BestAsk(depth)
	switch {
	case hasBid && hasAsk:
		return float64(bid+ask) / 2, true
	case hasBid:
		return float64(bid), true
	case hasAsk:
		return float64(ask), true
	default:
		return 0, false
	}
}

// BookMedianMid averages the median bid price and the median ask price over
// levels holding at least minVolume units. Both sides must keep at least one
// level after filtering.
func BookMedianMid(depth domain.OrderDepth, minVolume int) (float64, bool) {
	bids := levelPrices(depth.BuyOrders, minVolume)
	asks := levelPrices(depth.SellOrders, minVolume)
	if len(bids) == 0 || len(asks) == 0 {
		return 0, false
	}
	return (median(bids) + median(asks)) / 2, true
}

// Observe reduces a book to the history sample the rule asks for.
func Observe(rule Rule, depth domain.OrderDepth) (float64, bool) {
	if rule.Observation == ObserveBookMedian {
		return BookMedianMid(depth, rule.MinLevelVolume)
	}
	return MidPrice(depth)
}

func levelPrices(levels map[int]int, minVolume int) []float64 {
	out := make([]float64, 0, len(levels))
	for p, q := range levels {
		if abs(q) >= minVolume {
			out = append(out, float64(p))
		}
	}
	sort.Float64s(out)
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
