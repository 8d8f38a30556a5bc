// Public domain.

// Package lightcurve models a photometric time series and extracts one
// from target pixel file data by simple aperture photometry.
package lightcurve

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quality bitmasks for cadence filtering.  Cadences with any masked
// flag bit set are dropped.
const (
	QualityNone    = 0
	QualityDefault = 175
	QualityHard    = 7407
)

// Aperture image flag bits.
const (
	PixelCollected = 1 // pixel was collected by the spacecraft
	PixelAperture  = 2 // pixel is in the optimal photometric aperture
)

// LightCurve is a time series triple.  The three slices are parallel:
// sample i of each refers to the same cadence.
type LightCurve struct {
	Time, Flux, FluxErr []float64
}

// Len returns the number of cadences.
func (lc *LightCurve) Len() int { return len(lc.Time) }

// Validate checks the series invariants: equal lengths, at least one
// cadence, and strictly ascending time.
func (lc *LightCurve) Validate() error {
	n := len(lc.Time)
	if n == 0 {
		return fmt.Errorf("lightcurve: empty series")
	}
	if len(lc.Flux) != n || len(lc.FluxErr) != n {
		return fmt.Errorf("lightcurve: length mismatch: %d time, %d flux, %d flux_err",
			n, len(lc.Flux), len(lc.FluxErr))
	}
	for i := 1; i < n; i++ {
		if !(lc.Time[i] > lc.Time[i-1]) {
			return fmt.Errorf("lightcurve: time not ascending at sample %d", i)
		}
	}
	return nil
}

// ApertureMask flattens an aperture image row-major and selects pixels
// with the optimal-aperture bit set.  The flat layout matches the FLUX
// image columns of a target pixel file.
func ApertureMask(img [][]int) []bool {
	var mask []bool
	for _, row := range img {
		for _, v := range row {
			mask = append(mask, v&PixelAperture != 0)
		}
	}
	return mask
}

// FromPixels extracts a simple aperture photometry light curve.
//
// flux and fluxErr hold one flattened pixel image per cadence.  mask
// selects the pixels summed into the aperture.  Flux is the sum of
// selected pixels, flux error the quadrature sum.  A NaN in any
// selected pixel makes the whole cadence NaN; use DropInvalid to
// remove such cadences.
func FromPixels(time []float64, flux, fluxErr [][]float64, mask []bool) (*LightCurve, error) {
	n := len(time)
	if len(flux) != n || len(fluxErr) != n {
		return nil, fmt.Errorf("lightcurve: %d cadence times, %d flux images, %d error images",
			n, len(flux), len(fluxErr))
	}
	npix := 0
	for _, m := range mask {
		if m {
			npix++
		}
	}
	if npix == 0 {
		return nil, fmt.Errorf("lightcurve: empty aperture")
	}
	lc := &LightCurve{
		Time:    append([]float64{}, time...),
		Flux:    make([]float64, n),
		FluxErr: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		if len(flux[i]) != len(mask) || len(fluxErr[i]) != len(mask) {
			return nil, fmt.Errorf("lightcurve: cadence %d: %d pixels, aperture has %d",
				i, len(flux[i]), len(mask))
		}
		var sum, esq float64
		for p, m := range mask {
			if !m {
				continue
			}
			sum += flux[i][p]
			esq += fluxErr[i][p] * fluxErr[i][p]
		}
		lc.Flux[i] = sum
		lc.FluxErr[i] = math.Sqrt(esq)
	}
	return lc, nil
}

// MaskQuality returns a new light curve keeping only cadences whose
// quality flags have no bit of bitmask set.  quality must be parallel
// to the series.
func (lc *LightCurve) MaskQuality(quality []int, bitmask int) (*LightCurve, error) {
	if len(quality) != lc.Len() {
		return nil, fmt.Errorf("lightcurve: %d quality flags for %d cadences",
			len(quality), lc.Len())
	}
	out := &LightCurve{}
	for i, q := range quality {
		if q&bitmask != 0 {
			continue
		}
		out.Time = append(out.Time, lc.Time[i])
		out.Flux = append(out.Flux, lc.Flux[i])
		out.FluxErr = append(out.FluxErr, lc.FluxErr[i])
	}
	return out, nil
}

// DropInvalid returns a new light curve with NaN and infinite flux
// cadences removed.
func (lc *LightCurve) DropInvalid() *LightCurve {
	out := &LightCurve{}
	for i, f := range lc.Flux {
		if math.IsNaN(f) || math.IsInf(f, 0) ||
			math.IsNaN(lc.FluxErr[i]) || math.IsNaN(lc.Time[i]) {
			continue
		}
		out.Time = append(out.Time, lc.Time[i])
		out.Flux = append(out.Flux, f)
		out.FluxErr = append(out.FluxErr, lc.FluxErr[i])
	}
	return out
}

// Mean returns the mean flux.
func (lc *LightCurve) Mean() float64 {
	return stat.Mean(lc.Flux, nil)
}

// Median returns the median flux, the average of the two middle values
// for series of even length.
func (lc *LightCurve) Median() float64 {
	return Median(lc.Flux)
}

// Median of a sequence.  Panics on empty input; callers validate first.
func Median(x []float64) float64 {
	s := append([]float64{}, x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Normalize returns a copy with flux and flux error divided by the
// mean flux.  The error denominator is the unnormalized mean, so the
// relative uncertainty of every sample is preserved.
func (lc *LightCurve) Normalize() *LightCurve {
	m := lc.Mean()
	out := &LightCurve{Time: append([]float64{}, lc.Time...)}
	out.Flux = make([]float64, lc.Len())
	out.FluxErr = make([]float64, lc.Len())
	for i := range lc.Flux {
		out.Flux[i] = lc.Flux[i] / m
		out.FluxErr[i] = lc.FluxErr[i] / m
	}
	return out
}

// Scatter estimates per-cadence noise from first differences.  For
// white noise the standard deviation of successive differences is
// sqrt(2) times the per-sample scatter, and slow astrophysical trends
// mostly cancel in the differencing.
func (lc *LightCurve) Scatter() float64 {
	if lc.Len() < 3 {
		return 0
	}
	d := make([]float64, lc.Len()-1)
	for i := 1; i < lc.Len(); i++ {
		d[i-1] = lc.Flux[i] - lc.Flux[i-1]
	}
	return stat.StdDev(d, nil) / math.Sqrt2
}
