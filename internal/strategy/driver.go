package strategy

import (
	"github.com/alanyoungcy/basketbot/internal/domain"
)

// Driver decides orders for simple products from their book and history.
type Driver struct {
	rules    *RuleTable
	fraction float64
}

// NewDriver returns a Driver that sizes fair-value crossings with fraction.
func NewDriver(rules *RuleTable, fraction float64) *Driver {
	return &Driver{rules: rules, fraction: fraction}
}

// Decide returns the orders for one product. A buy and a sell may both be
// emitted when the book crosses the fair price on both sides.
func (d *Driver) Decide(product string, depth domain.OrderDepth, history []float64) []domain.Order {
	rule := d.rules.Lookup(product)
	switch rule.Class {
	case ClassPassive:
		return nil
	case ClassMeanReversion:
		z, ok := ZScore(history, rule.Window)
		if !ok {
			return nil
		}
		return signalOrders(product, depth, z, rule)
	case ClassDeviation:
		dev, ok := Deviation(history, rule.Window)
		if !ok {
			return nil
		}
		return signalOrders(product, depth, dev, rule)
	default:
		return d.crossFair(product, depth, FairPrice(rule, history))
	}
}

// crossFair takes asks at or below fair and hits bids at or above it.
func (d *Driver) crossFair(product string, depth domain.OrderDepth, fair float64) []domain.Order {
	var orders []domain.Order
	if ask, vol, ok := BestAsk(depth); ok && vol > 0 && float64(ask) <= fair {
		orders = append(orders, domain.Order{Symbol: product, Price: ask, Quantity: ScaleVolume(vol, d.fraction)})
	}
	if bid, vol, ok := BestBid(depth); ok && vol > 0 && float64(bid) >= fair {
		orders = append(orders, domain.Order{Symbol: product, Price: bid, Quantity: -ScaleVolume(vol, d.fraction)})
	}
	return orders
}

// signalOrders trades rule.TradeSize, capped by the book, when signal leaves
// the [-Threshold, Threshold] band: below buys the ask, above sells the bid.
func signalOrders(product string, depth domain.OrderDepth, signal float64, rule Rule) []domain.Order {
	switch {
	case signal < -rule.Threshold:
		if ask, vol, ok := BestAsk(depth); ok && vol > 0 {
			return []domain.Order{{Symbol: product, Price: ask, Quantity: min(rule.TradeSize, vol)}}
		}
	case signal > rule.Threshold:
		if bid, vol, ok := BestBid(depth); ok && vol > 0 {
			return []domain.Order{{Symbol: product, Price: bid, Quantity: -min(rule.TradeSize, vol)}}
		}
	}
	return nil
}
