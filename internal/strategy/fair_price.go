package strategy

import (
	"math"
	"sort"
)

// longMemoryWeight is the share of the wide-window median in a long_memory
// blend; the short-window median takes the rest.
const longMemoryWeight = 0.5

// FairPrice maps a product's rule and history to its reference price.
// Windowed rules return the fallback until the history holds enough samples;
// they never compute over a partial window.
func FairPrice(rule Rule, history []float64) float64 {
	switch rule.Class {
	case ClassShortMemory:
		if len(history) < rule.Window {
			return rule.Fallback
		}
		return median(tail(history, rule.Window))
	case ClassLongMemory:
		if len(history) < rule.largestWindow() {
			return rule.Fallback
		}
		wide := median(tail(history, rule.Window))
		short := median(tail(history, rule.ShortWindow))
		return longMemoryWeight*wide + (1-longMemoryWeight)*short
	default:
		return rule.Fallback
	}
}

// ZScore returns how many population standard deviations the latest sample
// sits from the mean of the last window samples. A flat window scores zero.
// ok is false until window samples are available.
func ZScore(history []float64, window int) (z float64, ok bool) {
	if window <= 0 || len(history) < window {
		return 0, false
	}
	w := tail(history, window)
	avg := mean(w)
	var variance float64
	for _, v := range w {
		d := v - avg
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(w)))
	if sd == 0 {
		return 0, true
	}
	return (w[len(w)-1] - avg) / sd, true
}

// Deviation returns the fractional distance of the latest sample from the
// mean of the last window samples. A zero mean yields zero.
func Deviation(history []float64, window int) (d float64, ok bool) {
	if window <= 0 || len(history) < window {
		return 0, false
	}
	w := tail(history, window)
	avg := mean(w)
	if avg == 0 {
		return 0, true
	}
	return (w[len(w)-1] - avg) / avg, true
}

func tail(s []float64, n int) []float64 {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// median sorts a copy of s; even lengths average the two middle values.
func median(s []float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	c := make([]float64, n)
	copy(c, s)
	sort.Float64s(c)
	if n%2 == 1 {
		return c[n/2]
	}
	return (c[n/2-1] + c[n/2]) / 2
}
