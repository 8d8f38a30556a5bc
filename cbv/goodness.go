// Public domain.

package cbv

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"tcor/lightcurve"
)

// Rand is the random source used by the overfit metric.  An interface
// so the caller can choose between a randomly seeded generator and a
// constant-seeded one for repeatable runs.
type Rand interface {
	Float64() float64
}

// Goodness holds the two fit quality scores for one prior strength.
// Both scores are in [0,1]; 1 is good.  Over near 0 means the fit
// injected noise into the corrected series, Under near 0 means
// systematic signal correlated with the basis remains.
type Goodness struct {
	Alpha, Over, Under float64
}

// segments sampled by the overfit metric and their length in cadences
const (
	overfitSegments = 20
	overfitSegLen   = 50
)

// Overfit scores noise injected by the correction.  It compares the
// first-difference scatter of the input and corrected series over
// randomly placed segments; a correction that only removes slow
// systematics leaves short-timescale scatter alone and scores 1.
func (c *Corrector) Overfit(corrected *lightcurve.LightCurve, rnd Rand) float64 {
	n := c.LC.Len()
	segLen := overfitSegLen
	if segLen > n {
		segLen = n
	}
	if segLen < 3 {
		return 1
	}
	var sum float64
	for s := 0; s < overfitSegments; s++ {
		start := int(rnd.Float64() * float64(n-segLen+1))
		s0 := segScatter(c.LC.Flux[start : start+segLen])
		s1 := segScatter(corrected.Flux[start : start+segLen])
		switch {
		case s1 <= s0 || s1 == 0:
			sum += 1
		default:
			sum += s0 / s1
		}
	}
	return clamp01(sum / overfitSegments)
}

// Underfit scores systematic signal left in the corrected series: one
// minus the largest absolute correlation between the corrected flux
// and any selected basis vector.
func (c *Corrector) Underfit(corrected *lightcurve.LightCurve, indices []int) float64 {
	var worst float64
	for _, ix := range indices {
		r := stat.Correlation(corrected.Flux, c.Set.Vectors[ix-1], nil)
		if math.IsNaN(r) {
			continue
		}
		if r = math.Abs(r); r > worst {
			worst = r
		}
	}
	return clamp01(1 - worst)
}

// Scan fits the light curve at each prior strength and reports both
// goodness scores, for diagnosing the overfit/underfit tradeoff.
func (c *Corrector) Scan(indices []int, alphas []float64, rnd Rand) ([]Goodness, error) {
	out := make([]Goodness, len(alphas))
	for i, a := range alphas {
		corrected, _, err := c.FitCorrect(indices, a)
		if err != nil {
			return nil, err
		}
		out[i] = Goodness{
			Alpha: a,
			Over:  c.Overfit(corrected, rnd),
			Under: c.Underfit(corrected, indices),
		}
	}
	return out, nil
}

// search bounds for the prior strength, refined geometrically
const (
	alphaMin        = 1e-8
	alphaMax        = 1e8
	alphaIterations = 32
)

// SearchAlpha finds a prior strength meeting both target scores.
//
// Increasing alpha weakens the correction: the overfit score rises and
// the underfit score falls.  The search refines a geometric interval,
// moving toward larger alpha while the fit is too aggressive and
// toward smaller alpha while systematics remain, and keeps the best
// scoring strength seen in case no alpha satisfies both targets.
func (c *Corrector) SearchAlpha(indices []int, targetOver, targetUnder float64, rnd Rand) (Goodness, error) {
	lo, hi := alphaMin, alphaMax
	best := Goodness{Over: -1, Under: -1}
	bestMargin := math.Inf(-1)
	for i := 0; i < alphaIterations; i++ {
		mid := math.Sqrt(lo * hi)
		corrected, _, err := c.FitCorrect(indices, mid)
		if err != nil {
			return Goodness{}, err
		}
		g := Goodness{
			Alpha: mid,
			Over:  c.Overfit(corrected, rnd),
			Under: c.Underfit(corrected, indices),
		}
		margin := math.Min(g.Over-targetOver, g.Under-targetUnder)
		if margin > bestMargin {
			bestMargin = margin
			best = g
		}
		switch {
		case g.Over >= targetOver && g.Under >= targetUnder:
			return g, nil
		case g.Over < targetOver:
			lo = mid
		default:
			hi = mid
		}
	}
	return best, nil
}

func segScatter(x []float64) float64 {
	d := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		d[i-1] = x[i] - x[i-1]
	}
	return stat.StdDev(d, nil) / math.Sqrt2
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
