package generator

import (
	"math"
	"math/rand/v2"
)

// uniform draws from [lo, hi).
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// uniformInt draws from [lo, hi].
func uniformInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

// poisson draws a Poisson variate with Knuth's method. lambda stays small
// (a handful of delays per line per day) so the loop is short.
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := rng.Float64()
	for p > limit {
		k++
		p *= rng.Float64()
	}
	return k
}

// stochasticRound rounds x up with probability equal to its fractional part,
// so the expected value of the result is x.
func stochasticRound(rng *rand.Rand, x float64) int {
	if x <= 0 {
		return 0
	}
	whole, frac := math.Modf(x)
	n := int(whole)
	if rng.Float64() < frac {
		n++
	}
	return n
}

// weightedIndex picks an index with probability proportional to weights[i].
// cum must be the running sum of the weights.
func weightedIndex(rng *rand.Rand, cum []float64) int {
	x := rng.Float64() * cum[len(cum)-1]
	lo, hi := 0, len(cum)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cum[mid] > x {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func cumulative(weights []float64) []float64 {
	out := make([]float64, len(weights))
	sum := 0.0
	for i, w := range weights {
		sum += w
		out[i] = sum
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
