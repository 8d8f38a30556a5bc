// Public domain.

// Package crowd applies the crowding and aperture-loss correction to a
// systematics-corrected flux series and exports the normalized result
// as whitespace-delimited text.
//
// The correction uses two calibration constants from the target pixel
// file header: CROWDSAP, the fraction of in-aperture flux belonging to
// the target, and FLFRCSAP, the fraction of the target's total flux
// captured by the aperture.  Contamination is treated as constant in
// time; the excess is estimated from the median flux and subtracted,
// then both flux and error are rescaled by 1/FLFRCSAP.  The division
// is an affine transform with a constant divisor, so the error series
// picks up only the scale factor.
package crowd

import (
	"bufio"
	"fmt"
	"os"

	"tcor/lightcurve"
)

// Correct applies the crowding and aperture-loss correction.
//
// flux and fluxErr must be parallel and non-empty.  crowdsap and
// flfrcsap must lie in (0,1].  Violations fail before any computation;
// in particular flfrcsap = 0 would divide by zero and is rejected as a
// domain error rather than propagating infinities.
func Correct(flux, fluxErr []float64, crowdsap, flfrcsap float64) (fluxCorr, fluxErrCorr []float64, err error) {
	if len(flux) == 0 {
		return nil, nil, fmt.Errorf("crowd: empty flux series, median undefined")
	}
	if len(flux) != len(fluxErr) {
		return nil, nil, fmt.Errorf("crowd: %d flux values, %d flux errors",
			len(flux), len(fluxErr))
	}
	if !(crowdsap >= 0 && crowdsap <= 1) {
		return nil, nil, fmt.Errorf("crowd: CROWDSAP %g outside [0,1]", crowdsap)
	}
	if !(flfrcsap > 0 && flfrcsap <= 1) {
		return nil, nil, fmt.Errorf("crowd: FLFRCSAP %g outside (0,1]", flfrcsap)
	}
	medianFlux := lightcurve.Median(flux)
	excessFlux := (1 - crowdsap) * medianFlux
	fluxCorr = make([]float64, len(flux))
	fluxErrCorr = make([]float64, len(flux))
	for i, f := range flux {
		fluxCorr[i] = (f - excessFlux) / flfrcsap
		fluxErrCorr[i] = fluxErr[i] / flfrcsap
	}
	return fluxCorr, fluxErrCorr, nil
}

// Normalize divides flux and flux error by the mean of the corrected,
// unnormalized flux.  Dividing the error by the same denominator keeps
// the relative uncertainty of every sample unchanged.  A zero mean is
// a domain error: dividing by it would fill the output with infinities.
func Normalize(flux, fluxErr []float64) (f, e []float64, err error) {
	var mean float64
	for _, v := range flux {
		mean += v
	}
	mean /= float64(len(flux))
	if mean == 0 {
		return nil, nil, fmt.Errorf("crowd: mean flux is zero, cannot normalize")
	}
	f = make([]float64, len(flux))
	e = make([]float64, len(flux))
	for i := range flux {
		f[i] = flux[i] / mean
		e[i] = fluxErr[i] / mean
	}
	return f, e, nil
}

// Export writes one line per sample: time, normalized flux, normalized
// flux error, space separated with a trailing space, no header row.
// Samples are written in index order.
func Export(w *bufio.Writer, time, f, e []float64) error {
	for i := range time {
		if _, err := fmt.Fprintf(w, "%g %g %g \n", time[i], f[i], e[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteFile corrects, normalizes and exports a light curve, creating
// or truncating the file at path.  The file is only created after the
// correction has succeeded, so a domain error leaves no output behind.
func WriteFile(path string, lc *lightcurve.LightCurve, crowdsap, flfrcsap float64) error {
	fc, ec, err := Correct(lc.Flux, lc.FluxErr, crowdsap, flfrcsap)
	if err != nil {
		return err
	}
	f, e, err := Normalize(fc, ec)
	if err != nil {
		return err
	}
	of, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Export(bufio.NewWriter(of), lc.Time, f, e); err != nil {
		of.Close()
		return err
	}
	return of.Close()
}
