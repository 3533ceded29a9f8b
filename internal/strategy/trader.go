package strategy

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// Trader is the per-tick decision function. It holds only immutable
// configuration; all cross-tick memory travels in TradingState.TraderData,
// so one Trader can serve many sessions concurrently.
type Trader struct {
	profile Profile
	rules   *RuleTable
	baskets *BasketArb
	driver  *Driver
	codec   *StateCodec
	logger  *slog.Logger
}

// NewTrader validates p and builds a Trader. A nil codec writes unsealed state.
func NewTrader(p Profile, codec *StateCodec, logger *slog.Logger) (*Trader, error) {
	if p.VolumeFraction < 0 || p.VolumeFraction > 1 || math.IsNaN(p.VolumeFraction) {
		return nil, fmt.Errorf("strategy: profile %s: volume_fraction must be within [0, 1]", p.Name)
	}
	rules, err := NewRuleTable(p.Rules, p.DefaultCapacity)
	if err != nil {
		return nil, fmt.Errorf("strategy: profile %s: %w", p.Name, err)
	}
	baskets, err := NewBasketArb(p.Baskets, p.VolumeFraction)
	if err != nil {
		return nil, fmt.Errorf("strategy: profile %s: %w", p.Name, err)
	}
	if codec == nil {
		codec = NewStateCodec(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trader{
		profile: p.Clone(),
		rules:   rules,
		baskets: baskets,
		driver:  NewDriver(rules, p.VolumeFraction),
		codec:   codec,
		logger:  logger.With(slog.String("component", "trader"), slog.String("profile", p.Name)),
	}, nil
}

// Profile returns a copy of the trader's parameters.
func (t *Trader) Profile() Profile {
	return t.profile.Clone()
}

// Run processes one tick.
func (t *Trader) Run(state domain.TradingState) domain.Result {
	res := t.RunDetailed(state)
	return domain.Result{
		Orders:      res.Orders,
		Conversions: res.Conversions,
		TraderData:  res.TraderData,
	}
}

// RunDetailed processes one tick and also reports every basket decision.
// It never fails: corrupt state restarts from an empty history and an
// internal fault degrades to no orders.
func (t *Trader) RunDetailed(state domain.TradingState) (res domain.TickResult) {
	history, err := t.codec.Decode(state.TraderData, t.rules)
	if err != nil {
		t.logger.Warn("discarding unreadable trader state",
			slog.Int64("timestamp", state.Timestamp),
			slog.Int("bytes", len(state.TraderData)),
			slog.String("error", err.Error()),
		)
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tick aborted, returning no orders",
				slog.Int64("timestamp", state.Timestamp),
				slog.String("panic", fmt.Sprint(r)),
			)
			blob := state.TraderData
			if err != nil {
				blob = t.codec.Encode(nil)
			}
			res = domain.TickResult{
				Orders:      map[string][]domain.Order{},
				Conversions: t.profile.Conversions,
				TraderData:  blob,
				Baskets:     []domain.BasketDecision{},
			}
		}
	}()

	products := make([]string, 0, len(state.OrderDepths))
	for p := range state.OrderDepths {
		products = append(products, p)
	}
	sort.Strings(products)

	for _, p := range products {
		v, ok := Observe(t.rules.Lookup(p), state.OrderDepths[p])
		history.Update(p, v, ok)
	}

	orders := make(map[string][]domain.Order)
	decisions := t.baskets.Evaluate(state.OrderDepths)
	for _, d := range decisions {
		for _, o := range d.Orders {
			orders[o.Symbol] = append(orders[o.Symbol], o)
		}
		if len(d.Orders) > 0 {
			t.logger.Debug("basket mispriced",
				slog.String("composite", d.Composite),
				slog.String("direction", string(d.Direction)),
				slog.Float64("mid", d.CompositeMid),
				slog.Float64("theoretical", d.Theoretical),
				slog.String("leg_group_id", d.LegGroupID),
			)
		}
	}

	composites := t.baskets.Composites()
	for _, p := range products {
		if composites[p] {
			continue
		}
		for _, o := range t.driver.Decide(p, state.OrderDepths[p], history.view(p)) {
			orders[p] = append(orders[p], o)
			t.logger.Debug("order",
				slog.String("symbol", o.Symbol),
				slog.Int("price", o.Price),
				slog.Int("quantity", o.Quantity),
			)
		}
	}

	return domain.TickResult{
		Orders:      orders,
		Conversions: t.profile.Conversions,
		TraderData:  t.codec.Encode(history),
		Baskets:     decisions,
	}
}
