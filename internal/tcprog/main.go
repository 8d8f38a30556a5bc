// Public domain.

// Package tcprog implements the tcor command: download a TESS target
// pixel file, extract a simple aperture photometry light curve, remove
// systematics with a cotrending basis vector fit, apply the crowding
// and aperture-loss correction, and write the normalized series as
// whitespace-delimited text.
package tcprog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/exit"
	"github.com/soniakeys/meeus/v3/julian"
	sexa "github.com/soniakeys/sexagesimal"
	xrand "golang.org/x/exp/rand"

	"tcor/cbv"
	"tcor/cbvbin"
	"tcor/crowd"
	"tcor/fits"
	"tcor/lightcurve"
	"tcor/mast"
)

const versionString = "tcor version 0.3 Go source."
const copyrightString = "Public domain."

// offset of TESS barycentric julian date from julian date
const btjdEpoch = 2457000

func Main() {
	defer exit.Handler()

	cl := parseCommandLine()
	cfg := readConfig(cl)

	client := mast.NewClient()

	// target metadata.  offline runs report the TIC alone.
	var target *mast.Target
	if !cl.offline {
		var err error
		if target, err = client.ResolveTIC(cl.tic); err != nil {
			exit.Log(err)
		}
	}

	tpf := readTPF(cl, client)
	lc := extract(tpf, cfg)

	set := readCBV(cl, client, tpf, cfg)
	aligned, err := set.Aligned(lc.Time)
	if err != nil {
		exit.Log(err)
	}
	corrector, err := cbv.NewCorrector(lc, aligned)
	if err != nil {
		exit.Log(err)
	}

	rnd := xrand.New(&xrand.PCGSource{})
	if cfg.repeatable {
		rnd.Seed(3)
	} else {
		rnd.Seed(uint64(time.Now().UnixNano()))
	}

	if cfg.scan {
		printScan(corrector, cfg, rnd)
	}

	var g cbv.Goodness
	var corrected *lightcurve.LightCurve
	if cfg.alphaSet {
		corrected, _, err = corrector.FitCorrect(cfg.indices, cfg.alpha)
		if err != nil {
			exit.Log(err)
		}
		g = cbv.Goodness{
			Alpha: cfg.alpha,
			Over:  corrector.Overfit(corrected, rnd),
			Under: corrector.Underfit(corrected, cfg.indices),
		}
	} else {
		if g, err = corrector.SearchAlpha(cfg.indices,
			cfg.targetOver, cfg.targetUnder, rnd); err != nil {
			exit.Log(err)
		}
		if corrected, _, err = corrector.FitCorrect(cfg.indices, g.Alpha); err != nil {
			exit.Log(err)
		}
	}

	out := cl.fnOut
	if out == "" {
		out = fmt.Sprintf("tic%d_s%d.txt", tpf.tic, tpf.sector)
	}
	if err = crowd.WriteFile(out, corrected, tpf.crowdsap, tpf.flfrcsap); err != nil {
		exit.Log(err)
	}

	printReport(cfg, target, tpf, lc, corrected, g, out)
}

// tpfData is everything the pipeline reads from a target pixel file.
type tpfData struct {
	tic, sector, camera, ccd int
	object                   string
	crowdsap, flfrcsap       float64
	time                     []float64
	flux, fluxErr            [][]float64
	quality                  []int
	aperture                 [][]int
}

// readTPF locates the target pixel file, downloading it if necessary,
// and parses the pieces the pipeline needs.
func readTPF(cl *commandLine, client *mast.Client) *tpfData {
	fn := cl.fnTPF
	if fn == "" {
		if cl.offline {
			exit.Log("no local target pixel file (-f) in offline mode (-n)")
		}
		uri, err := client.SearchTPF(cl.tic, cl.sector)
		if err != nil {
			exit.Log(err)
		}
		fn = filepath.Join(cl.dp, fmt.Sprintf("tic%d_s%d_tp.fits", cl.tic, cl.sector))
		if _, err := os.Stat(fn); err != nil {
			if err = client.Download(uri, fn); err != nil {
				exit.Log(err)
			}
		}
	}
	f, err := fits.ReadFile(fn)
	if err != nil {
		exit.Log(err)
	}
	return parseTPF(f)
}

func parseTPF(f *fits.File) *tpfData {
	d := &tpfData{}
	var err error
	ph := &f.Primary().Header
	if d.tic, err = ph.Int("TICID"); err != nil {
		exit.Log(err)
	}
	if d.sector, err = ph.Int("SECTOR"); err != nil {
		exit.Log(err)
	}
	if d.camera, err = ph.Int("CAMERA"); err != nil {
		exit.Log(err)
	}
	if d.ccd, err = ph.Int("CCD"); err != nil {
		exit.Log(err)
	}
	if s, err := ph.Str("OBJECT"); err == nil {
		d.object = s
	}

	h, err := f.HDU("PIXELS")
	if err != nil {
		exit.Log(err)
	}
	// the two crowding calibration constants, fixed for the run
	if d.crowdsap, err = h.Header.Float("CROWDSAP"); err != nil {
		exit.Log(err)
	}
	if d.flfrcsap, err = h.Header.Float("FLFRCSAP"); err != nil {
		exit.Log(err)
	}
	tab, err := h.Table()
	if err != nil {
		exit.Log(err)
	}
	if d.time, err = tab.FloatCol("TIME"); err != nil {
		exit.Log(err)
	}
	if d.flux, err = tab.CubeCol("FLUX"); err != nil {
		exit.Log(err)
	}
	if d.fluxErr, err = tab.CubeCol("FLUX_ERR"); err != nil {
		exit.Log(err)
	}
	if d.quality, err = tab.IntCol("QUALITY"); err != nil {
		exit.Log(err)
	}
	ah, err := f.HDU("APERTURE")
	if err != nil {
		exit.Log(err)
	}
	if d.aperture, err = ah.IntImage(); err != nil {
		exit.Log(err)
	}
	return d
}

// extract builds the quality-filtered SAP light curve.
func extract(tpf *tpfData, cfg *config) *lightcurve.LightCurve {
	mask := lightcurve.ApertureMask(tpf.aperture)
	lc, err := lightcurve.FromPixels(tpf.time, tpf.flux, tpf.fluxErr, mask)
	if err != nil {
		exit.Log(err)
	}
	if lc, err = lc.MaskQuality(tpf.quality, cfg.quality); err != nil {
		exit.Log(err)
	}
	lc = lc.DropInvalid()
	if err = lc.Validate(); err != nil {
		exit.Log(err)
	}
	return lc
}

// readCBV loads the basis vector cache, fetching and converting the
// CBV product first when the cache is missing or stale for this
// sector, camera and CCD.
func readCBV(cl *commandLine, client *mast.Client, tpf *tpfData, cfg *config) *cbv.Set {
	cfn := cl.fixupCP(cl.fnCBV, cbvbin.Cfn)
	set, readErr := cbvbin.ReadFile(cfn)
	if readErr == nil && cacheValid(set, tpf, cfg) {
		return set
	}
	if cl.offline {
		if readErr != nil {
			log.Println(readErr)
		}
		exit.Log("no usable CBV cache in offline mode; run cbvprep first")
	}
	// that didn't work.  fetch a fresh product and rebuild the cache.
	uri, err := client.SearchCBV(tpf.sector, tpf.camera, tpf.ccd)
	if err != nil {
		exit.Log(err)
	}
	ffn := filepath.Join(cl.dp, fmt.Sprintf("s%d_%d_%d_cbv.fits",
		tpf.sector, tpf.camera, tpf.ccd))
	if err = client.Download(uri, ffn); err != nil {
		exit.Log(err)
	}
	f, err := fits.ReadFile(ffn)
	if err != nil {
		exit.Log(err)
	}
	if set, err = cbv.ReadSet(f, cfg.cbvType, cfg.band,
		tpf.camera, tpf.ccd); err != nil {
		exit.Log(err)
	}
	set.Sector = tpf.sector
	if err = cbvbin.Write(cfn, set); err != nil {
		exit.Log(err)
	}
	return set
}

// cacheValid reports whether a cached basis vector set matches both the
// target pixel file and the configured basis selection.  A cache of the
// wrong type or band would fit a basis the report never names.
func cacheValid(set *cbv.Set, tpf *tpfData, cfg *config) bool {
	return set.Sector == tpf.sector && set.Camera == tpf.camera &&
		set.CCD == tpf.ccd && set.Type == cfg.cbvType && set.Band == cfg.band
}

type commandLine struct {
	dc      string // config file
	fnCBV   string // CBV cache file
	fnTPF   string // local target pixel file
	fnOut   string // output file
	dp      string // common path
	tic     int
	sector  int
	offline bool
}

func parseCommandLine() *commandLine {
	var cl commandLine
	cl.dp = "."
	dh := flag.Bool("h", false, "")
	dv := flag.Bool("v", false, "")
	flag.StringVar(&cl.dc, "c", "", "")
	flag.StringVar(&cl.fnCBV, "b", "", "")
	flag.StringVar(&cl.fnTPF, "f", "", "")
	flag.StringVar(&cl.fnOut, "o", "", "")
	flag.StringVar(&cl.dp, "p", cl.dp, "")
	flag.IntVar(&cl.sector, "s", 0, "")
	flag.BoolVar(&cl.offline, "n", false, "")
	flag.Usage = func() {
		os.Stderr.WriteString(`
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
`)
	}
	flag.Parse()
	switch {
	case *dh:
		printHelp()
		os.Exit(0)
	case *dv:
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	case flag.NArg() != 1:
		flag.Usage()
		os.Exit(1)
	}
	tic, err := strconv.Atoi(strings.TrimPrefix(flag.Arg(0), "TIC"))
	if err != nil || tic <= 0 {
		exit.Log("Invalid TIC: " + flag.Arg(0))
	}
	cl.tic = tic
	if cl.sector == 0 && cl.fnTPF == "" {
		exit.Log("Sector (-s) required unless a local file (-f) is given.")
	}
	return &cl
}

// config holds the settings read from the tcor.config keyword file.
type config struct {
	cbvType     string
	band        int
	indices     []int
	alpha       float64
	alphaSet    bool
	targetOver  float64
	targetUnder float64
	quality     int
	repeatable  bool
	headings    bool
	scan        bool
}

// readConfig applies the optional keyword configuration file.  Empty
// lines and lines beginning with # are ignored.  Other lines must hold
// a known keyword or key=value setting.
func readConfig(cl *commandLine) *config {
	cfg := &config{
		cbvType:     cbv.SingleScale,
		indices:     []int{1, 2, 3, 4},
		targetOver:  .8,
		targetUnder: .5,
		quality:     lightcurve.QualityDefault,
		headings:    true,
	}
	fn := cl.fixupCP(cl.dc, "tcor.config")
	b, err := os.ReadFile(fn)
	if err != nil {
		if cl.dc == "" {
			return cfg // config file is optional unless -c was given
		}
		exit.Log(err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		ls := strings.TrimSpace(line)
		switch {
		case ls == "" || ls[0] == '#':
			continue
		case ls == "headings":
			cfg.headings = true
			continue
		case ls == "noheadings":
			cfg.headings = false
			continue
		case ls == "scan":
			cfg.scan = true
			continue
		case ls == "noscan":
			cfg.scan = false
			continue
		case ls == "repeatable":
			cfg.repeatable = true
			continue
		case ls == "random":
			cfg.repeatable = false
			continue
		case ls == cbv.SingleScale, ls == cbv.MultiScale, ls == cbv.Spike:
			cfg.cbvType = ls
			continue
		}
		k, v, ok := strings.Cut(ls, "=")
		if !ok {
			exit.Log("Unrecognized line in config file: " + ls)
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if errStr := cfg.setKV(k, v); errStr != "" {
			exit.Log(fmt.Sprintf("%s\nConfig file line: %s", errStr, ls))
		}
	}
	return cfg
}

func (cfg *config) setKV(k, v string) string {
	switch k {
	case "alpha":
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err.Error()
		}
		if a < 0 {
			return "Negative alpha not allowed."
		}
		cfg.alpha = a
		cfg.alphaSet = true
	case "targetover", "targetunder":
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err.Error()
		}
		if t < 0 || t > 1 {
			return "Target score must be in [0,1]."
		}
		if k == "targetover" {
			cfg.targetOver = t
		} else {
			cfg.targetUnder = t
		}
	case "band":
		b, err := strconv.Atoi(v)
		if err != nil {
			return err.Error()
		}
		cfg.band = b
	case "indices":
		var ix []int
		for _, s := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		}) {
			i, err := strconv.Atoi(s)
			if err != nil {
				return err.Error()
			}
			ix = append(ix, i)
		}
		if len(ix) == 0 {
			return "Empty index list."
		}
		cfg.indices = ix
	case "quality":
		switch v {
		case "none":
			cfg.quality = lightcurve.QualityNone
		case "default":
			cfg.quality = lightcurve.QualityDefault
		case "hard":
			cfg.quality = lightcurve.QualityHard
		default:
			return "Quality must be none, default or hard."
		}
	default:
		return "Unrecognized keyword: " + k
	}
	return ""
}

func (cl *commandLine) fixupCP(fnSpec, fnDefault string) string {
	if fnSpec > "" {
		return fnSpec
	}
	return filepath.Join(cl.dp, fnDefault)
}

// btjdDate formats a BTJD time as a calendar date.
func btjdDate(t float64) string {
	y, m, d := julian.JDToCalendar(t + btjdEpoch)
	return fmt.Sprintf("%.0f %s %d", d, time.Month(m).String()[:3], y)
}

func printScan(c *cbv.Corrector, cfg *config, rnd cbv.Rand) {
	alphas := []float64{1e-4, 1e-2, 1, 1e2, 1e4}
	gs, err := c.Scan(cfg.indices, alphas, rnd)
	if err != nil {
		exit.Log(err)
	}
	if cfg.headings {
		fmt.Println("    Alpha  Over Under")
	}
	for _, g := range gs {
		fmt.Printf("%9.0e  %.2f  %.2f\n", g.Alpha, g.Over, g.Under)
	}
	fmt.Println()
}

func printReport(cfg *config, target *mast.Target, tpf *tpfData,
	lc, corrected *lightcurve.LightCurve, g cbv.Goodness, out string) {

	if cfg.headings {
		fmt.Println(versionString)
	}
	name := tpf.object
	if name == "" {
		name = fmt.Sprintf("TIC %d", tpf.tic)
	}
	fmt.Println("Target:             ", name)
	if target != nil {
		fmt.Println("RA, Dec:            ", sexa.FmtRA(target.RA),
			sexa.FmtAngle(target.Dec))
		fmt.Printf("T mag:               %.2f\n", target.TMag)
	}
	fmt.Printf("Sector:              %d, camera %d, CCD %d\n",
		tpf.sector, tpf.camera, tpf.ccd)
	fmt.Printf("Observed:            %s - %s\n",
		btjdDate(lc.Time[0]), btjdDate(lc.Time[lc.Len()-1]))
	fmt.Printf("Cadences:            %d of %d after quality mask\n",
		lc.Len(), len(tpf.time))
	fmt.Printf("CROWDSAP, FLFRCSAP:  %.4f %.4f\n", tpf.crowdsap, tpf.flfrcsap)
	fmt.Printf("CBV fit:             %s %v, alpha %.3g\n",
		cfg.cbvType, cfg.indices, g.Alpha)
	fmt.Printf("Overfit, underfit:   %.2f %.2f\n", g.Over, g.Under)
	fmt.Printf("Scatter:             %.1f -> %.1f e-/s\n",
		lc.Scatter(), corrected.Scatter())
	fmt.Println("Output:             ", out)
}

func printHelp() {
	fmt.Println(`
Tcor downloads a TESS target pixel file, extracts a simple aperture
photometry light curve, removes systematics by fitting cotrending
basis vectors with a Gaussian prior, applies the crowding correction
from the CROWDSAP and FLFRCSAP calibration constants, and writes the
normalized light curve as whitespace-delimited text.

Config file keywords:
   headings
   noheadings
   scan
   noscan
   repeatable
   random
   single-scale
   multi-scale
   spike
   band=<n>
   indices=<n,n,...>
   alpha=<x>
   targetover=<x>
   targetunder=<x>
   quality=(none|default|hard)

For full documentation:
   go doc tcor`)
}
