// Package stats computes the exact hypergeometric enrichment probability
// used to rank overlap results.
//
// Everything is done in log space via log-gamma so that large population and
// set sizes never overflow; the library deliberately avoids external
// statistics packages to keep the computation reproducible.
package stats

import "math"

// lchoose returns log(C(n, k)). Assumes 0 <= k <= n.
func lchoose(n, k int) float64 {
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}

// HypergeometricTail returns P(X >= observed) for
// X ~ Hypergeometric(population, successes, draws): the probability of at
// least observed overlaps when drawing draws genes without replacement from
// a population in which successes genes belong to the set.
//
// The result is always finite and clamped to [0, 1].
func HypergeometricTail(population, successes, draws, observed int) float64 {
	if population <= 0 || successes < 0 || draws < 0 {
		return 1
	}

	// Support of X is [max(0, draws-(population-successes)), min(successes, draws)].
	lo := draws - (population - successes)
	if lo < 0 {
		lo = 0
	}
	hi := successes
	if draws < hi {
		hi = draws
	}
	if observed <= lo {
		return 1
	}
	if observed > hi {
		return 0
	}

	denom := lchoose(population, draws)

	// Streaming log-sum-exp over the tail terms.
	sum := math.Inf(-1)
	for i := observed; i <= hi; i++ {
		term := lchoose(successes, i) + lchoose(population-successes, draws-i) - denom
		if term > sum {
			sum = term + math.Log1p(math.Exp(sum-term))
		} else {
			sum += math.Log1p(math.Exp(term - sum))
		}
	}

	p := math.Exp(sum)
	if p > 1 {
		p = 1
	}
	if p < 0 || math.IsNaN(p) {
		p = 0
	}
	return p
}
