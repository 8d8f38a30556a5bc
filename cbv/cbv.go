// Public domain.

// Package cbv implements cotrending basis vector correction of a TESS
// light curve: regression of a selected set of basis vectors against
// the flux with a Gaussian prior on the coefficients, plus overfit and
// underfit goodness metrics and an automatic search for the prior
// strength.
package cbv

import (
	"fmt"
	"sort"

	"tcor/fits"
)

// CBV product types.
const (
	SingleScale = "single-scale"
	MultiScale  = "multi-scale"
	Spike       = "spike"
)

// Set is a group of cotrending basis vectors sampled on a common
// cadence grid.
type Set struct {
	Sector, Camera, CCD int
	Type                string
	Band                int // multi-scale band, 0 otherwise
	Time                []float64
	Vectors             [][]float64 // Vectors[j] is basis vector j+1
}

// ExtName returns the FITS extension name of a CBV set in a TESS CBV
// file.
func ExtName(cbvType string, band, cam, ccd int) string {
	if cbvType == MultiScale {
		return fmt.Sprintf("CBV.%s-band-%d.%d.%d", cbvType, band, cam, ccd)
	}
	return fmt.Sprintf("CBV.%s.%d.%d", cbvType, cam, ccd)
}

// ReadSet reads one basis vector set from a CBV file.  Vector columns
// are named VECTOR_1, VECTOR_2, ... in the product; reading stops at
// the first missing index.
func ReadSet(f *fits.File, cbvType string, band, cam, ccd int) (*Set, error) {
	h, err := f.HDU(ExtName(cbvType, band, cam, ccd))
	if err != nil {
		return nil, err
	}
	tab, err := h.Table()
	if err != nil {
		return nil, err
	}
	s := &Set{Camera: cam, CCD: ccd, Type: cbvType, Band: band}
	if sec, err := f.Primary().Header.Int("SECTOR"); err == nil {
		s.Sector = sec
	}
	if s.Time, err = tab.FloatCol("TIME"); err != nil {
		return nil, err
	}
	for j := 1; ; j++ {
		v, err := tab.FloatCol(fmt.Sprintf("VECTOR_%d", j))
		if err != nil {
			break
		}
		s.Vectors = append(s.Vectors, v)
	}
	if len(s.Vectors) == 0 {
		return nil, fmt.Errorf("cbv: %s: no basis vector columns",
			ExtName(cbvType, band, cam, ccd))
	}
	return s, nil
}

// Aligned interpolates the basis vectors onto the cadence times of a
// light curve.  Times outside the CBV time range are an error: the
// correction is only defined where the basis is.
func (s *Set) Aligned(time []float64) (*Set, error) {
	if len(s.Time) < 2 {
		return nil, fmt.Errorf("cbv: basis has %d cadences", len(s.Time))
	}
	if len(time) == 0 {
		return nil, fmt.Errorf("cbv: no cadence times to align to")
	}
	if time[0] < s.Time[0] || time[len(time)-1] > s.Time[len(s.Time)-1] {
		return nil, fmt.Errorf("cbv: cadence range [%g,%g] outside basis range [%g,%g]",
			time[0], time[len(time)-1], s.Time[0], s.Time[len(s.Time)-1])
	}
	out := &Set{
		Sector: s.Sector, Camera: s.Camera, CCD: s.CCD,
		Type: s.Type, Band: s.Band,
		Time:    append([]float64{}, time...),
		Vectors: make([][]float64, len(s.Vectors)),
	}
	for j, v := range s.Vectors {
		out.Vectors[j] = interp(s.Time, v, time)
	}
	return out, nil
}

// interp linearly interpolates y(x) at points xq.  x must be strictly
// ascending and cover xq.
func interp(x, y, xq []float64) []float64 {
	out := make([]float64, len(xq))
	for i, q := range xq {
		j := sort.SearchFloat64s(x, q)
		switch {
		case j < len(x) && x[j] == q:
			out[i] = y[j]
		case j == 0:
			out[i] = y[0]
		case j == len(x):
			out[i] = y[len(y)-1]
		default:
			t := (q - x[j-1]) / (x[j] - x[j-1])
			out[i] = y[j-1] + t*(y[j]-y[j-1])
		}
	}
	return out
}

// checkIndices validates 1-based basis vector indices against the set.
func (s *Set) checkIndices(indices []int) error {
	if len(indices) == 0 {
		return fmt.Errorf("cbv: no basis vector indices selected")
	}
	for _, ix := range indices {
		if ix < 1 || ix > len(s.Vectors) {
			return fmt.Errorf("cbv: vector index %d outside 1..%d",
				ix, len(s.Vectors))
		}
	}
	return nil
}
