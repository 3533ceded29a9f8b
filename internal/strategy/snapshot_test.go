package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

func book(bids, asks map[int]int) domain.OrderDepth {
	return domain.OrderDepth{BuyOrders: bids, SellOrders: asks}
}

func TestBestBidAndAsk(t *testing.T) {
	d := book(map[int]int{99: 4, 100: 7, 98: 20}, map[int]int{103: -2, 101: -5, 104: -9})

	price, vol, ok := BestBid(d)
	require.True(t, ok)
	require.Equal(t, 100, price)
	require.Equal(t, 7, vol)

	price, vol, ok = BestAsk(d)
	require.True(t, ok)
	require.Equal(t, 101, price)
	require.Equal(t, 5, vol, "ask volume must be reported as a magnitude")
}

func TestBestSideEmpty(t *testing.T) {
	_, _, ok := BestBid(domain.OrderDepth{})
	require.False(t, ok)
	_, _, ok = BestAsk(book(map[int]int{10: 1}, nil))
	require.False(t, ok)
}

func TestMidPrice(t *testing.T) {
	cases := []struct {
		name  string
		depth domain.OrderDepth
		want  float64
		ok    bool
	}{
		{"both sides", book(map[int]int{100: 1}, map[int]int{103: -1}), 101.5, true},
		{"bids only", book(map[int]int{100: 1, 97: 3}, nil), 100, true},
		{"asks only", book(nil, map[int]int{105: -1, 104: -1}), 104, true},
		{"empty", book(map[int]int{}, map[int]int{}), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MidPrice(tc.depth)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBookMedianMidFiltersThinLevels(t *testing.T) {
	d := book(
		map[int]int{100: 15, 99: 2, 98: 30},
		map[int]int{102: -1, 103: -12, 105: -40},
	)
	// Bids kept: 98, 100 -> 99. Asks kept: 103, 105 -> 104.
	got, ok := BookMedianMid(d, 10)
	require.True(t, ok)
	require.Equal(t, 101.5, got)

	_, ok = BookMedianMid(d, 50)
	require.False(t, ok)
}

func TestObserveUsesRuleObservation(t *testing.T) {
	d := book(map[int]int{100: 1, 90: 20}, map[int]int{102: -1, 110: -20})

	v, ok := Observe(Rule{Observation: ObserveMid}, d)
	require.True(t, ok)
	require.Equal(t, 101.0, v)

	v, ok = Observe(Rule{Observation: ObserveBookMedian, MinLevelVolume: 10}, d)
	require.True(t, ok)
	require.Equal(t, 100.0, v)
}
