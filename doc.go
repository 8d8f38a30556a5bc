/*
Command tcor corrects a TESS light curve for instrument systematics and
aperture crowding, and exports the result as plain text.

Contents

Version 0.3

  Program overview
  Command line usage
  Configuring file locations
  File formats
  Algorithm outline


Program overview

Input is a TESS target identified by its TIC number and sector.  Output
is a whitespace-delimited text file with one line per cadence: time,
normalized flux, normalized flux error.

The program downloads the target pixel file for the requested sector
from the MAST archive, sums the pixels of the pipeline aperture into a
simple aperture photometry light curve, drops cadences with bad quality
flags, and fits cotrending basis vectors to the flux to remove common
instrumental trends.  The fit uses a Gaussian prior on the basis
coefficients; the prior strength is either set in the configuration
file or found automatically from overfit and underfit goodness scores.

Fluxes from simple aperture photometry include light from neighboring
stars and miss a fraction of the target's own light.  The mission
pipeline quantifies both effects in two header constants: CROWDSAP,
the fraction of flux in the aperture belonging to the target, and
FLFRCSAP, the fraction of the target's flux captured by the aperture.
tcor subtracts the estimated contaminating flux, constant in time and
computed from the median flux, and rescales flux and flux error by
1/FLFRCSAP before normalizing and writing the output.

Sample run:

  tcor -s 38 307210830

Output:

  tcor version 0.3 Go source.
  Target:              TIC 307210830
  RA, Dec:             15ʰ19ᵐ0ˢ  -60°50'24"
  T mag:               9.80
  Sector:              38, camera 2, CCD 1
  Observed:            29 Apr 2021 - 26 May 2021
  Cadences:            17469 of 18317 after quality mask
  CROWDSAP, FLFRCSAP:  0.9605 0.9312
  CBV fit:             single-scale [1 2 3 4], alpha 12.3
  Overfit, underfit:   0.91 0.82
  Scatter:             182.1 -> 141.9 e-/s
  Output:              tic307210830_s38.txt


Command line usage

The main executable is tcor.  Invoking the program without command line
arguments (or with invalid arguments) shows this usage prompt.

  Usage: tcor [options] <TIC>    correct and export one target
         tcor -h                 display help and quick reference
         tcor -v                 display version and copyright

  Options:
       -s <sector>
       -o <output-file>
       -b <cbv-cache-file>
       -c <config-file>
       -f <target-pixel-file>
       -p <path>
       -n                      offline, use local files only

With -f the target pixel file is read from a local path and nothing is
downloaded for it.  With -n the program uses local files only and
terminates rather than contact the archive.


Configuring file locations

Besides the target pixel file, tcor reads a binary cache of cotrending
basis vectors and an optional configuration file.  By default both live
in the current directory.

	File         Command line option
	tcor.cbv     -b
	tcor.config  -c

A configuration file is required to be present if -c is used.

The -p option specifies a common path for files accessed by their
default names.  A path given with -b or -c takes precedence; it is not
joined with -p.

If the basis vector cache is missing, or was built for a different
sector, camera or CCD, tcor downloads the CBV file for the sector and
rebuilds the cache.  This normally happens the first time a sector is
processed.  The companion command cbvprep builds the cache ahead of
time, which is useful before offline runs.


File formats

The output file is plain text, one line per cadence,

  <time> <flux> <flux_err>

space separated, ordered by ascending time, with no header row.  Times
are BTJD as in the input product.  Flux and flux error are normalized
by the mean corrected flux, which preserves the relative uncertainty of
every cadence.

tcor.cbv is a binary file generated by cbvprep or by tcor itself, as
described above.

tcor.config, the optional configuration file, is a text file with a
simple format.  Empty lines and lines beginning with # are ignored.
Other lines must contain either a keyword or a key=value setting.

Allowable keywords:

   headings
   noheadings
   scan
   noscan
   repeatable
   random
   single-scale
   multi-scale
   spike

Headings can be turned off if desired.  Keyword scan prints a table of
overfit and underfit scores over a grid of prior strengths before the
run.  The program estimates the overfit score with randomly placed
sample segments.  By default the random number generator is seeded
randomly; keyword repeatable reseeds it with a constant for repeatable
scores.  The keywords single-scale, multi-scale and spike select the
basis vector type; band=<n> selects the multi-scale band.

Allowable settings:

   band=<n>
   indices=<n,n,...>
   alpha=<x>
   targetover=<x>
   targetunder=<x>
   quality=(none|default|hard)

Indices selects which basis vectors enter the fit, 1-based, default
1,2,3,4.  If alpha is set the fit uses that prior strength directly;
otherwise the program searches for a strength whose overfit and
underfit scores meet targetover and targetunder, default 0.8 and 0.5.
Quality selects the cadence quality bitmask.


Algorithm outline

1.  The target pixel file supplies per-cadence pixel images, quality
flags, the pipeline aperture mask, and the CROWDSAP and FLFRCSAP
calibration constants.

2.  Pixels flagged as belonging to the optimal aperture are summed per
cadence; errors are summed in quadrature.  Cadences with masked
quality bits, or with undefined flux, are dropped.

3.  The cotrending basis vectors of the target's sector, camera and
CCD are interpolated onto the cadence times and fit to the flux by
least squares with a Gaussian prior on the coefficients.  The fitted
model, less its constant term, is subtracted.

4.  Goodness of the fit is scored in [0,1] two ways.  The overfit
score compares short-timescale scatter before and after correction
over randomly placed segments; injected noise pulls it below 1.  The
underfit score is one minus the largest remaining correlation between
the corrected flux and a fitted basis vector.  If no prior strength is
configured, a geometric interval search finds one meeting both target
scores.

5.  The median of the corrected flux estimates the contaminating flux
as (1-CROWDSAP) x median, which is subtracted as a constant.  Flux and
flux error are then divided by FLFRCSAP, normalized by the mean, and
written to the output file.

-------------
Public domain.
*/
package main
