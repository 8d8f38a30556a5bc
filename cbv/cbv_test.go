// Public domain.

package cbv_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	xrand "golang.org/x/exp/rand"

	"tcor/cbv"
	"tcor/fits"
	"tcor/lightcurve"
)

// synthetic basis: a slow trend and a slow sinusoid over n cadences
func testSet(n int) *cbv.Set {
	s := &cbv.Set{Sector: 38, Camera: 1, CCD: 1, Type: cbv.SingleScale}
	v1 := make([]float64, n)
	v2 := make([]float64, n)
	s.Time = make([]float64, n)
	for i := 0; i < n; i++ {
		s.Time[i] = float64(i) * .02
		v1[i] = float64(i)/float64(n-1) - .5
		v2[i] = math.Sin(2 * math.Pi * float64(i) / float64(n))
	}
	s.Vectors = [][]float64{v1, v2}
	return s
}

// light curve built from the basis plus fast deterministic jitter
func testLC(s *cbv.Set, c1, c2 float64) *lightcurve.LightCurve {
	n := len(s.Time)
	lc := &lightcurve.LightCurve{
		Time:    append([]float64{}, s.Time...),
		Flux:    make([]float64, n),
		FluxErr: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		jitter := .01 * math.Sin(17.3*float64(i))
		lc.Flux[i] = 1000 + c1*s.Vectors[0][i] + c2*s.Vectors[1][i] + jitter
		lc.FluxErr[i] = .01
	}
	return lc
}

type fixedRand struct{ v float64 }

func (r fixedRand) Float64() float64 { return r.v }

func TestFitRecoversCoefficients(t *testing.T) {
	s := testSet(200)
	lc := testLC(s, 3, -2)
	c, err := cbv.NewCorrector(lc, s)
	if err != nil {
		t.Fatal(err)
	}
	coeffs, err := c.Fit([]int{1, 2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(coeffs[0]-3) > .05 || math.Abs(coeffs[1]+2) > .05 {
		t.Fatal("coefficients", coeffs)
	}
	if math.Abs(coeffs[2]-1000) > .05 {
		t.Fatal("constant term", coeffs[2])
	}
}

func TestCorrectRemovesTrend(t *testing.T) {
	s := testSet(200)
	lc := testLC(s, 3, -2)
	c, err := cbv.NewCorrector(lc, s)
	if err != nil {
		t.Fatal(err)
	}
	corrected, _, err := c.FitCorrect([]int{1, 2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if corrected.Len() != lc.Len() {
		t.Fatal("length changed")
	}
	// flux level kept: constant term is not subtracted
	if math.Abs(corrected.Mean()-1000) > .01 {
		t.Fatal("flux level", corrected.Mean())
	}
	// trend removed: corrected spread far below input spread
	spread := func(x []float64) float64 {
		lo, hi := x[0], x[0]
		for _, v := range x {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		return hi - lo
	}
	if spread(corrected.Flux) > spread(lc.Flux)/10 {
		t.Fatal("trend not removed", spread(corrected.Flux), spread(lc.Flux))
	}
}

func TestStrongPriorShrinksFit(t *testing.T) {
	s := testSet(200)
	lc := testLC(s, 3, -2)
	c, _ := cbv.NewCorrector(lc, s)
	coeffs, err := c.Fit([]int{1, 2}, 1e8)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(coeffs[0]) > .01 || math.Abs(coeffs[1]) > .01 {
		t.Fatal("prior did not shrink coefficients", coeffs)
	}
}

func TestFitErrors(t *testing.T) {
	s := testSet(50)
	lc := testLC(s, 1, 1)
	c, _ := cbv.NewCorrector(lc, s)
	if _, err := c.Fit(nil, 0); err == nil {
		t.Fatal("expected error for empty index list")
	}
	if _, err := c.Fit([]int{3}, 0); err == nil {
		t.Fatal("expected error for index out of range")
	}
	if _, err := c.Fit([]int{1}, -1); err == nil {
		t.Fatal("expected error for negative alpha")
	}
	short := &lightcurve.LightCurve{
		Time:    []float64{1, 2},
		Flux:    []float64{1, 2},
		FluxErr: []float64{1, 1},
	}
	if _, err := cbv.NewCorrector(short, s); err == nil {
		t.Fatal("expected alignment error")
	}
}

func TestGoodness(t *testing.T) {
	s := testSet(300)
	lc := testLC(s, 5, -4)
	c, _ := cbv.NewCorrector(lc, s)
	corrected, _, err := c.FitCorrect([]int{1, 2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	rnd := fixedRand{.5}
	over := c.Overfit(corrected, rnd)
	if over < .9 || over > 1 {
		t.Fatal("overfit score", over)
	}
	under := c.Underfit(corrected, []int{1, 2})
	if under < .8 || under > 1 {
		t.Fatal("underfit score", under)
	}
	// an uncorrected series still carries the basis signal
	if u := c.Underfit(lc, []int{1, 2}); u > .5 {
		t.Fatal("underfit of uncorrected series", u)
	}
}

func TestScan(t *testing.T) {
	s := testSet(200)
	lc := testLC(s, 3, -2)
	c, _ := cbv.NewCorrector(lc, s)
	alphas := []float64{1e-4, 1, 1e4}
	gs, err := c.Scan([]int{1, 2}, alphas, fixedRand{.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(gs) != 3 {
		t.Fatal("scan length", len(gs))
	}
	for i, g := range gs {
		if g.Alpha != alphas[i] {
			t.Fatal("alpha order", gs)
		}
		if g.Over < 0 || g.Over > 1 || g.Under < 0 || g.Under > 1 {
			t.Fatal("score range", g)
		}
	}
}

func TestSearchAlpha(t *testing.T) {
	s := testSet(300)
	lc := testLC(s, 5, -4)
	c, _ := cbv.NewCorrector(lc, s)
	rnd := xrand.New(&xrand.PCGSource{})
	rnd.Seed(3)
	g, err := c.SearchAlpha([]int{1, 2}, .5, .5, rnd)
	if err != nil {
		t.Fatal(err)
	}
	if g.Alpha <= 0 {
		t.Fatal("alpha", g.Alpha)
	}
	if g.Over < .5 || g.Under < .5 {
		t.Fatal("targets not met", g)
	}
}

func TestAligned(t *testing.T) {
	s := testSet(10)
	// query midway between basis cadences
	q := []float64{.01, .03, .05}
	a, err := s.Aligned(q)
	if err != nil {
		t.Fatal(err)
	}
	// linear basis interpolates exactly
	for i, tq := range q {
		want := tq/(.02*9) - .5
		if math.Abs(a.Vectors[0][i]-want) > 1e-12 {
			t.Fatal("interpolation", a.Vectors[0])
		}
	}
	if _, err := s.Aligned([]float64{-1}); err == nil {
		t.Fatal("expected range error")
	}
	if _, err := s.Aligned(nil); err == nil {
		t.Fatal("expected empty query error")
	}
}

func TestExtName(t *testing.T) {
	if n := cbv.ExtName(cbv.SingleScale, 0, 1, 2); n != "CBV.single-scale.1.2" {
		t.Fatal(n)
	}
	if n := cbv.ExtName(cbv.MultiScale, 2, 3, 4); n != "CBV.multi-scale-band-2.3.4" {
		t.Fatal(n)
	}
}

// minimal CBV file bytes: primary header + one single-scale extension
func cbvFile() []byte {
	card := func(key, value string) []byte {
		s := key + strings.Repeat(" ", 8-len(key)) + "= " + value
		return []byte(s + strings.Repeat(" ", 80-len(s)))
	}
	bare := func(key string) []byte {
		return []byte(key + strings.Repeat(" ", 80-len(key)))
	}
	block := func(b []byte) []byte {
		for len(b)%2880 != 0 {
			b = append(b, ' ')
		}
		return b
	}
	var b []byte
	b = append(b, card("SIMPLE", "T")...)
	b = append(b, card("BITPIX", "8")...)
	b = append(b, card("NAXIS", "0")...)
	b = append(b, card("SECTOR", "38")...)
	b = append(b, bare("END")...)
	b = block(b)

	b = append(b, card("XTENSION", "'BINTABLE'")...)
	b = append(b, card("BITPIX", "8")...)
	b = append(b, card("NAXIS", "2")...)
	b = append(b, card("NAXIS1", "24")...)
	b = append(b, card("NAXIS2", "4")...)
	b = append(b, card("PCOUNT", "0")...)
	b = append(b, card("GCOUNT", "1")...)
	b = append(b, card("TFIELDS", "3")...)
	b = append(b, card("TTYPE1", "'TIME'")...)
	b = append(b, card("TFORM1", "'1D'")...)
	b = append(b, card("TTYPE2", "'VECTOR_1'")...)
	b = append(b, card("TFORM2", "'1D'")...)
	b = append(b, card("TTYPE3", "'VECTOR_2'")...)
	b = append(b, card("TFORM3", "'1D'")...)
	b = append(b, card("EXTNAME", "'CBV.single-scale.1.1'")...)
	b = append(b, bare("END")...)
	b = block(b)

	var d bytes.Buffer
	for r := 0; r < 4; r++ {
		binary.Write(&d, binary.BigEndian, float64(r))
		binary.Write(&d, binary.BigEndian, float64(r)*.1)
		binary.Write(&d, binary.BigEndian, -float64(r)*.1)
	}
	b = append(b, d.Bytes()...)
	for len(b)%2880 != 0 {
		b = append(b, 0)
	}
	return b
}

func TestReadSet(t *testing.T) {
	f, err := fits.Read(bytes.NewReader(cbvFile()))
	if err != nil {
		t.Fatal(err)
	}
	s, err := cbv.ReadSet(f, cbv.SingleScale, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if s.Sector != 38 || len(s.Vectors) != 2 || len(s.Time) != 4 {
		t.Fatal("set shape", s.Sector, len(s.Vectors), len(s.Time))
	}
	if s.Vectors[1][2] != -.2 {
		t.Fatal("vector value", s.Vectors[1])
	}
	if _, err := cbv.ReadSet(f, cbv.SingleScale, 0, 2, 2); err == nil {
		t.Fatal("expected error for missing extension")
	}
}
