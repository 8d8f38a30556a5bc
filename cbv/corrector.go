// Public domain.

package cbv

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"tcor/lightcurve"
)

// Corrector fits basis vectors to a light curve and subtracts the
// fitted model.  The set must already be aligned to the light curve
// cadences (Set.Aligned).
type Corrector struct {
	LC  *lightcurve.LightCurve
	Set *Set
}

// NewCorrector validates the pairing of light curve and aligned set.
func NewCorrector(lc *lightcurve.LightCurve, set *Set) (*Corrector, error) {
	if err := lc.Validate(); err != nil {
		return nil, err
	}
	if len(set.Time) != lc.Len() {
		return nil, fmt.Errorf("cbv: basis has %d cadences, light curve %d (align first)",
			len(set.Time), lc.Len())
	}
	return &Corrector{LC: lc, Set: set}, nil
}

// Coeffs holds fitted coefficients: one per selected basis vector in
// selection order, then the constant term.
type Coeffs []float64

// Fit solves for basis vector coefficients by regularized least
// squares.  The normal equations pick up alpha on the diagonal for the
// basis vector terms, which is the Gaussian prior of the upstream
// engine: larger alpha pulls coefficients toward zero.  The constant
// term carries no prior.
func (c *Corrector) Fit(indices []int, alpha float64) (Coeffs, error) {
	if err := c.Set.checkIndices(indices); err != nil {
		return nil, err
	}
	if alpha < 0 {
		return nil, fmt.Errorf("cbv: negative prior strength %g", alpha)
	}
	n := c.LC.Len()
	nb := len(indices) + 1
	cols := make([][]float64, nb)
	for k, ix := range indices {
		cols[k] = c.Set.Vectors[ix-1]
	}
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	cols[nb-1] = ones

	ata := mat.NewSymDense(nb, nil)
	atb := mat.NewVecDense(nb, nil)
	for j := 0; j < nb; j++ {
		for k := j; k < nb; k++ {
			var dot float64
			for i := 0; i < n; i++ {
				dot += cols[j][i] * cols[k][i]
			}
			if j == k && j < nb-1 {
				dot += alpha
			}
			ata.SetSym(j, k, dot)
		}
		var dot float64
		for i := 0; i < n; i++ {
			dot += cols[j][i] * c.LC.Flux[i]
		}
		atb.SetVec(j, dot)
	}

	var ch mat.Cholesky
	if !ch.Factorize(ata) {
		return nil, fmt.Errorf("cbv: normal equations not positive definite")
	}
	x := mat.NewVecDense(nb, nil)
	if err := ch.SolveVecTo(x, atb); err != nil {
		return nil, fmt.Errorf("cbv: solving normal equations: %v", err)
	}
	coeffs := make(Coeffs, nb)
	for j := 0; j < nb; j++ {
		coeffs[j] = x.AtVec(j)
	}
	return coeffs, nil
}

// Correct subtracts the fitted basis model from the flux.  The
// constant term stays in, so the corrected series keeps the flux level
// of the input.  Flux errors are unchanged: the model is deterministic
// in the basis.
func (c *Corrector) Correct(indices []int, coeffs Coeffs) (*lightcurve.LightCurve, error) {
	if len(coeffs) != len(indices)+1 {
		return nil, fmt.Errorf("cbv: %d coefficients for %d vectors",
			len(coeffs), len(indices))
	}
	n := c.LC.Len()
	out := &lightcurve.LightCurve{
		Time:    append([]float64{}, c.LC.Time...),
		Flux:    make([]float64, n),
		FluxErr: append([]float64{}, c.LC.FluxErr...),
	}
	for i := 0; i < n; i++ {
		model := 0.
		for k, ix := range indices {
			model += coeffs[k] * c.Set.Vectors[ix-1][i]
		}
		out.Flux[i] = c.LC.Flux[i] - model
	}
	return out, nil
}

// FitCorrect is the common fit-then-subtract path.
func (c *Corrector) FitCorrect(indices []int, alpha float64) (*lightcurve.LightCurve, Coeffs, error) {
	coeffs, err := c.Fit(indices, alpha)
	if err != nil {
		return nil, nil, err
	}
	lc, err := c.Correct(indices, coeffs)
	if err != nil {
		return nil, nil, err
	}
	return lc, coeffs, nil
}
