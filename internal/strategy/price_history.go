package strategy

import (
	"math"
	"sort"
)

// Capacities supplies the history bound for each product.
type Capacities interface {
	Capacity(product string) int
}

// PriceHistory holds a bounded, oldest-first series of observations per
// product. A PriceHistory belongs to a single tick: it is rebuilt from the
// trader state at the start of the tick and encoded again at the end, so it
// carries no locking.
type PriceHistory struct {
	caps   Capacities
	series map[string][]float64
}

// NewPriceHistory returns an empty history bounded by caps.
func NewPriceHistory(caps Capacities) *PriceHistory {
	return &PriceHistory{
		caps:   caps,
		series: make(map[string][]float64),
	}
}

// Update appends value to product's series when ok is true, evicting the
// oldest sample once the product's capacity is reached. Non-finite values are
// not observations and are ignored.
func (h *PriceHistory) Update(product string, value float64, ok bool) {
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	limit := h.capacity(product)
	s := h.series[product]
	if len(s) >= limit {
		// Shift in place so long series do not reallocate every tick.
		drop := len(s) - limit + 1
		copy(s, s[drop:])
		s = s[:limit-1]
	}
	h.series[product] = append(s, value)
}

// Read returns a copy of product's series. Unknown products yield an empty
// slice.
func (h *PriceHistory) Read(product string) []float64 {
	src := h.series[product]
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// Len returns the number of samples held for product.
func (h *PriceHistory) Len(product string) int {
	return len(h.series[product])
}

// Products returns every product with at least one sample, sorted.
func (h *PriceHistory) Products() []string {
	names := make([]string, 0, len(h.series))
	for n, s := range h.series {
		if len(s) > 0 {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of every non-empty series.
func (h *PriceHistory) Snapshot() map[string][]float64 {
	out := make(map[string][]float64, len(h.series))
	for _, n := range h.Products() {
		out[n] = h.Read(n)
	}
	return out
}

// restore installs a decoded series, keeping only the newest capacity values.
func (h *PriceHistory) restore(product string, values []float64) {
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			kept = append(kept, v)
		}
	}
	if limit := h.capacity(product); len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	if len(kept) == 0 {
		return
	}
	h.series[product] = kept
}

// view returns the live series without copying. Callers must not modify it.
func (h *PriceHistory) view(product string) []float64 {
	return h.series[product]
}

func (h *PriceHistory) capacity(product string) int {
	if h.caps == nil {
		return DefaultCapacity
	}
	if n := h.caps.Capacity(product); n > 0 {
		return n
	}
	return 1
}
