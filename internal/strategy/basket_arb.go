package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// Leg is one component of a basket and the units of it per basket unit.
type Leg struct {
	Product string `json:"product"`
	Ratio   int    `json:"ratio"`
}

// BasketSpec describes a composite product that is worth a fixed integer
// combination of its legs.
type BasketSpec struct {
	Composite string  `json:"composite"`
	Legs      []Leg   `json:"legs"`
	Threshold float64 `json:"threshold"`
}

// Validate checks ratios, threshold and leg uniqueness.
func (b BasketSpec) Validate() error {
	var errs []string
	if strings.TrimSpace(b.Composite) == "" {
		errs = append(errs, "composite must not be empty")
	}
	if len(b.Legs) == 0 {
		errs = append(errs, "at least one leg is required")
	}
	if b.Threshold < 0 || math.IsNaN(b.Threshold) {
		errs = append(errs, "threshold must be >= 0")
	}
	seen := make(map[string]bool, len(b.Legs))
	for _, l := range b.Legs {
		switch {
		case l.Product == "":
			errs = append(errs, "leg product must not be empty")
		case l.Product == b.Composite:
			errs = append(errs, fmt.Sprintf("leg %s cannot be the composite itself", l.Product))
		case seen[l.Product]:
			errs = append(errs, fmt.Sprintf("leg %s listed twice", l.Product))
		}
		seen[l.Product] = true
		if l.Ratio <= 0 {
			errs = append(errs, fmt.Sprintf("leg %s ratio must be a positive integer", l.Product))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("basket %s: %s", b.Composite, strings.Join(errs, "; "))
	}
	return nil
}

// Theoretical returns sum(ratio * mid) over the legs.
func (b BasketSpec) Theoretical(mids map[string]float64) decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Legs {
		total = total.Add(decimal.NewFromInt(int64(l.Ratio)).Mul(decimal.NewFromFloat(mids[l.Product])))
	}
	return total
}

// ScaleVolume applies the configured volume fraction to an available
// volume. Fractions outside (0, 1) trade the full volume; any positive
// volume trades at least one unit.
func ScaleVolume(volume int, fraction float64) int {
	if volume <= 0 {
		return 0
	}
	if fraction <= 0 || fraction >= 1 {
		return volume
	}
	n := int(math.Floor(float64(volume) * fraction))
	if n < 1 {
		n = 1
	}
	return n
}

// BasketArb values every configured composite against its legs and emits
// hedged order groups. Composites are independent: each reads the same
// pre-trade snapshot and no netting happens across composites that share a
// leg.
type BasketArb struct {
	specs    []BasketSpec
	fraction float64
	newID    func() string
}

// NewBasketArb validates specs. fraction scales the composite volume taken at
// the best price.
func NewBasketArb(specs []BasketSpec, fraction float64) (*BasketArb, error) {
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("strategy: %w", err)
		}
	}
	cp := make([]BasketSpec, len(specs))
	for i, s := range specs {
		cp[i] = BasketSpec{
			Composite: s.Composite,
			Legs:      append([]Leg(nil), s.Legs...),
			Threshold: s.Threshold,
		}
	}
	return &BasketArb{
		specs:    cp,
		fraction: fraction,
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// Composites returns the set of composite product names.
func (a *BasketArb) Composites() map[string]bool {
	out := make(map[string]bool, len(a.specs))
	for _, s := range a.specs {
		out[s.Composite] = true
	}
	return out
}

// Specs returns a copy of the basket definitions.
func (a *BasketArb) Specs() []BasketSpec {
	out := make([]BasketSpec, len(a.specs))
	for i, s := range a.specs {
		out[i] = BasketSpec{Composite: s.Composite, Legs: append([]Leg(nil), s.Legs...), Threshold: s.Threshold}
	}
	return out
}

// Evaluate returns one decision per configured basket, in configuration order.
func (a *BasketArb) Evaluate(depths map[string]domain.OrderDepth) []domain.BasketDecision {
	out := make([]domain.BasketDecision, 0, len(a.specs))
	for _, spec := range a.specs {
		out = append(out, a.evaluate(spec, depths))
	}
	return out
}

func (a *BasketArb) evaluate(spec BasketSpec, depths map[string]domain.OrderDepth) domain.BasketDecision {
	dec := domain.BasketDecision{
		Composite: spec.Composite,
		Direction: domain.BasketSkipped,
		Threshold: spec.Threshold,
	}

	compDepth, ok := depths[spec.Composite]
	if !ok {
		dec.SkipReason = "composite not in snapshot"
		return dec
	}
	compMid, ok := MidPrice(compDepth)
	if !ok {
		dec.SkipReason = "composite has no mid price"
		return dec
	}
	mids := make(map[string]float64, len(spec.Legs))
	for _, l := range spec.Legs {
		d, ok := depths[l.Product]
		if !ok {
			dec.SkipReason = fmt.Sprintf("leg %s not in snapshot", l.Product)
			return dec
		}
		m, ok := MidPrice(d)
		if !ok {
			dec.SkipReason = fmt.Sprintf("leg %s has no mid price", l.Product)
			return dec
		}
		mids[l.Product] = m
	}

	theo := spec.Theoretical(mids)
	mid := decimal.NewFromFloat(compMid)
	threshold := decimal.NewFromFloat(spec.Threshold)
	dec.CompositeMid = compMid
	dec.Theoretical = theo.InexactFloat64()
	dec.Edge = mid.Sub(theo).InexactFloat64()

	switch {
	case mid.GreaterThan(theo.Add(threshold)):
		dec.Direction = domain.BasketOverpriced
	case mid.LessThan(theo.Sub(threshold)):
		dec.Direction = domain.BasketUnderpriced
	default:
		dec.Direction = domain.BasketNone
		return dec
	}

	orders, reason := a.hedgedOrders(spec, dec.Direction, compDepth, depths)
	if reason != "" {
		dec.SkipReason = reason
		return dec
	}
	dec.Orders = orders
	dec.LegGroupID = a.newID()
	return dec
}

// hedgedOrders builds the composite order followed by one order per leg. A
// missing or empty side anywhere returns no orders and the reason.
func (a *BasketArb) hedgedOrders(spec BasketSpec, dir domain.BasketDirection, compDepth domain.OrderDepth, depths map[string]domain.OrderDepth) ([]domain.Order, string) {
	// Overpriced: sell the composite into its bid, buy legs from their asks.
	compSide, legSide, sign := BestBid, BestAsk, -1
	if dir == domain.BasketUnderpriced {
		compSide, legSide, sign = BestAsk, BestBid, 1
	}

	compPrice, compVol, ok := compSide(compDepth)
	if !ok || compVol <= 0 {
		return nil, "composite has no volume on the required side"
	}
	basketVol := ScaleVolume(compVol, a.fraction)

	orders := make([]domain.Order, 0, len(spec.Legs)+1)
	orders = append(orders, domain.Order{Symbol: spec.Composite, Price: compPrice, Quantity: sign * basketVol})
	for _, l := range spec.Legs {
		price, avail, ok := legSide(depths[l.Product])
		if !ok || avail <= 0 {
			return nil, fmt.Sprintf("leg %s has no volume on the required side", l.Product)
		}
		qty := min(avail, l.Ratio*basketVol)
		orders = append(orders, domain.Order{Symbol: l.Product, Price: price, Quantity: -sign * qty})
	}
	return orders, ""
}
