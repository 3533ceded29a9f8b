package strategy

import (
	"fmt"
	"sort"
	"strings"
)

// ProductClass selects which pricing rule drives a product.
type ProductClass string

const (
	// ClassFixed prices the product at a constant.
	ClassFixed ProductClass = "fixed"
	// ClassShortMemory uses the median of the most recent Window samples.
	ClassShortMemory ProductClass = "short_memory"
	// ClassLongMemory blends the medians of the last Window and ShortWindow samples.
	ClassLongMemory ProductClass = "long_memory"
	// ClassMeanReversion trades a fixed size on z-score excursions.
	ClassMeanReversion ProductClass = "mean_reversion"
	// ClassDeviation trades a fixed size on percentage moves away from the moving average.
	ClassDeviation ProductClass = "deviation"
	// ClassPassive records history but never trades.
	ClassPassive ProductClass = "passive"
	// ClassUnclassified is applied to products missing from the table.
	ClassUnclassified ProductClass = "unclassified"
)

// ParseProductClass converts a configuration string to a ProductClass.
func ParseProductClass(s string) (ProductClass, error) {
	switch c := ProductClass(strings.ToLower(strings.TrimSpace(s))); c {
	case ClassFixed, ClassShortMemory, ClassLongMemory, ClassMeanReversion,
		ClassDeviation, ClassPassive, ClassUnclassified:
		return c, nil
	default:
		return "", fmt.Errorf("strategy: unknown product class %q", s)
	}
}

// Windowed reports whether the class reads a window of history.
func (c ProductClass) Windowed() bool {
	switch c {
	case ClassShortMemory, ClassLongMemory, ClassMeanReversion, ClassDeviation:
		return true
	}
	return false
}

// ObservationKind selects how a tick's book is reduced to one history sample.
type ObservationKind string

const (
	// ObserveMid records the best bid/ask mid price.
	ObserveMid ObservationKind = "mid"
	// ObserveBookMedian records the mean of the median bid and median ask
	// levels, ignoring levels thinner than MinLevelVolume.
	ObserveBookMedian ObservationKind = "book_median"
)

const (
	// DefaultCapacity bounds history for products without an explicit capacity.
	DefaultCapacity = 100
	// DefaultFallback is the fair price of unclassified products.
	DefaultFallback = 10.0
)

// Rule is the per-product pricing record.
type Rule struct {
	Class          ProductClass    `json:"class"`
	Capacity       int             `json:"capacity"`
	Window         int             `json:"window,omitempty"`
	ShortWindow    int             `json:"short_window,omitempty"`
	Fallback       float64         `json:"fallback"`
	Threshold      float64         `json:"threshold,omitempty"`
	TradeSize      int             `json:"trade_size,omitempty"`
	Observation    ObservationKind `json:"observation,omitempty"`
	MinLevelVolume int             `json:"min_level_volume,omitempty"`
}

// UnclassifiedRule returns the rule applied to products the table does not know.
func UnclassifiedRule(capacity int) Rule {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return Rule{
		Class:       ClassUnclassified,
		Capacity:    capacity,
		Fallback:    DefaultFallback,
		Observation: ObserveMid,
	}
}

// largestWindow returns the widest window the rule will ever read.
func (r Rule) largestWindow() int {
	if r.ShortWindow > r.Window {
		return r.ShortWindow
	}
	return r.Window
}

// Validate reports every inconsistency in the rule.
func (r Rule) Validate() error {
	var errs []string
	if _, err := ParseProductClass(string(r.Class)); err != nil {
		errs = append(errs, err.Error())
	}
	if r.Capacity <= 0 {
		errs = append(errs, "capacity must be > 0")
	}
	if r.Class.Windowed() && r.Window <= 0 {
		errs = append(errs, fmt.Sprintf("class %s requires window > 0", r.Class))
	}
	if r.Class == ClassLongMemory && r.ShortWindow <= 0 {
		errs = append(errs, "class long_memory requires short_window > 0")
	}
	if r.Capacity > 0 && r.largestWindow() > r.Capacity {
		errs = append(errs, fmt.Sprintf("capacity %d is smaller than window %d", r.Capacity, r.largestWindow()))
	}
	if r.Class == ClassMeanReversion || r.Class == ClassDeviation {
		if r.Threshold < 0 {
			errs = append(errs, "threshold must be >= 0")
		}
		if r.TradeSize <= 0 {
			errs = append(errs, "trade_size must be > 0")
		}
	}
	switch r.Observation {
	case "", ObserveMid:
	case ObserveBookMedian:
		if r.MinLevelVolume < 0 {
			errs = append(errs, "min_level_volume must be >= 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown observation %q", r.Observation))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// RuleTable is the immutable product to rule mapping used for a trader's
// lifetime. Capacities never change after construction.
type RuleTable struct {
	rules    map[string]Rule
	fallback Rule
}

// NewRuleTable validates and copies rules. Products without a capacity get
// defaultCapacity, or the smallest capacity that fits their windows when that
// is larger.
func NewRuleTable(rules map[string]Rule, defaultCapacity int) (*RuleTable, error) {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultCapacity
	}
	t := &RuleTable{
		rules:    make(map[string]Rule, len(rules)),
		fallback: UnclassifiedRule(defaultCapacity),
	}
	var errs []string
	for product, r := range rules {
		if r.Capacity == 0 {
			r.Capacity = max(defaultCapacity, r.largestWindow())
		}
		if r.Observation == "" {
			r.Observation = ObserveMid
		}
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", product, err))
			continue
		}
		t.rules[product] = r
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("strategy: invalid rules:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return t, nil
}

// Lookup returns the rule for product, or the unclassified rule.
func (t *RuleTable) Lookup(product string) Rule {
	if r, ok := t.rules[product]; ok {
		return r
	}
	return t.fallback
}

// Known reports whether product has an explicit rule.
func (t *RuleTable) Known(product string) bool {
	_, ok := t.rules[product]
	return ok
}

// Capacity returns the history bound for product.
func (t *RuleTable) Capacity(product string) int {
	return t.Lookup(product).Capacity
}

// Products returns the configured product names in sorted order.
func (t *RuleTable) Products() []string {
	names := make([]string, 0, len(t.rules))
	for n := range t.rules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Rules returns a copy of the configured rules.
func (t *RuleTable) Rules() map[string]Rule {
	out := make(map[string]Rule, len(t.rules))
	for k, v := range t.rules {
		out[k] = v
	}
	return out
}
