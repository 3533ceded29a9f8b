package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Built-in profile names.
const (
	ProfileFairValue     = "fair_value"
	ProfileHalfVolume    = "half_volume"
	ProfileMeanReversion = "mean_reversion"
)

// Profile is a complete trader parameter set: product rules, baskets and
// the constants returned with every result.
type Profile struct {
	Name            string          `json:"name"`
	Rules           map[string]Rule `json:"rules"`
	DefaultCapacity int             `json:"default_capacity"`
	Baskets         []BasketSpec    `json:"baskets"`
	Conversions     int             `json:"conversions"`
	VolumeFraction  float64         `json:"volume_fraction"`
}

// Clone returns a deep copy so callers can override fields freely.
func (p Profile) Clone() Profile {
	out := p
	out.Rules = make(map[string]Rule, len(p.Rules))
	for k, v := range p.Rules {
		out.Rules[k] = v
	}
	out.Baskets = make([]BasketSpec, len(p.Baskets))
	for i, b := range p.Baskets {
		out.Baskets[i] = BasketSpec{Composite: b.Composite, Legs: append([]Leg(nil), b.Legs...), Threshold: b.Threshold}
	}
	return out
}

// FairValueProfile trades resin against a constant, kelp against a short
// median and squid ink against a blended median, and arbitrages both picnic
// baskets. Basket legs are left to the basket engine.
func FairValueProfile() Profile {
	return Profile{
		Name: ProfileFairValue,
		Rules: map[string]Rule{
			"RAINFOREST_RESIN": {Class: ClassFixed, Fallback: 10000},
			"KELP":             {Class: ClassShortMemory, Capacity: 50, Window: 50, Fallback: 10000},
			"SQUID_INK":        {Class: ClassLongMemory, Capacity: 25000, Window: 200, ShortWindow: 100, Fallback: 10000},
			"CROISSANTS":       {Class: ClassPassive},
			"JAMS":             {Class: ClassPassive},
			"DJEMBES":          {Class: ClassPassive},
		},
		DefaultCapacity: DefaultCapacity,
		Baskets: []BasketSpec{
			{
				Composite: "PICNIC_BASKET1",
				Legs:      []Leg{{Product: "CROISSANTS", Ratio: 6}, {Product: "JAMS", Ratio: 3}, {Product: "DJEMBES", Ratio: 1}},
				Threshold: 5,
			},
			{
				Composite: "PICNIC_BASKET2",
				Legs:      []Leg{{Product: "CROISSANTS", Ratio: 4}, {Product: "JAMS", Ratio: 2}},
				Threshold: 0,
			},
		},
		Conversions:    1,
		VolumeFraction: 1,
	}
}

// HalfVolumeProfile is FairValueProfile with half-size crossings and
// volume-filtered book medians for the drifting products.
func HalfVolumeProfile() Profile {
	p := FairValueProfile().Clone()
	p.Name = ProfileHalfVolume
	p.VolumeFraction = 0.5
	for _, product := range []string{"KELP", "SQUID_INK"} {
		r := p.Rules[product]
		r.Observation = ObserveBookMedian
		r.MinLevelVolume = 10
		p.Rules[product] = r
	}
	return p
}

// MeanReversionProfile trades single units on statistical excursions and
// leaves resin alone.
func MeanReversionProfile() Profile {
	return Profile{
		Name: ProfileMeanReversion,
		Rules: map[string]Rule{
			"RAINFOREST_RESIN": {Class: ClassPassive, Capacity: 50},
			"SQUID_INK":        {Class: ClassMeanReversion, Capacity: 50, Window: 20, Threshold: 1.5, TradeSize: 1},
			"KELP":             {Class: ClassDeviation, Capacity: 50, Window: 10, Threshold: 0.01, TradeSize: 1},
		},
		DefaultCapacity: 50,
		Conversions:     0,
		VolumeFraction:  1,
	}
}

// Registry manages named profiles. It is safe for concurrent use.
type Registry struct {
	profiles map[string]Profile
	mu       sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

// DefaultRegistry returns a registry holding the built-in profiles.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FairValueProfile())
	r.Register(HalfVolumeProfile())
	r.Register(MeanReversionProfile())
	return r
}

// Register adds or replaces a profile under its name.
func (r *Registry) Register(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name] = p.Clone()
}

// Get returns a copy of the named profile.
func (r *Registry) Get(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q: not registered", name)
	}
	return p.Clone(), nil
}

// List returns the names of all registered profiles in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
