// Public domain.

package fits_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"tcor/fits"
)

// card formats one 80 column header card.
func card(key, value string) []byte {
	s := key + strings.Repeat(" ", 8-len(key)) + "= " + value
	return []byte(s + strings.Repeat(" ", 80-len(s)))
}

func bare(key string) []byte {
	return []byte(key + strings.Repeat(" ", 80-len(key)))
}

// block pads header cards or data bytes to a 2880 byte boundary.
func block(b []byte) []byte {
	for len(b)%2880 != 0 {
		b = append(b, ' ')
	}
	return b
}

func dataBlock(b []byte) []byte {
	for len(b)%2880 != 0 {
		b = append(b, 0)
	}
	return b
}

// testFile builds a three HDU file shaped like a target pixel file:
// primary header, a PIXELS binary table with TIME, QUALITY and FLUX
// columns, and an APERTURE int32 image.
func testFile() []byte {
	var b []byte
	b = append(b, card("SIMPLE", "T")...)
	b = append(b, card("BITPIX", "8")...)
	b = append(b, card("NAXIS", "0")...)
	b = append(b, card("TICID", "307210830")...)
	b = append(b, card("SECTOR", "38")...)
	b = append(b, card("OBJECT", "'TIC 307210830'")...)
	b = append(b, bare("END")...)
	b = block(b)

	// binary table: 3 rows of 1D + 1J + 4E = 28 bytes
	b = append(b, card("XTENSION", "'BINTABLE'")...)
	b = append(b, card("BITPIX", "8")...)
	b = append(b, card("NAXIS", "2")...)
	b = append(b, card("NAXIS1", "28")...)
	b = append(b, card("NAXIS2", "3")...)
	b = append(b, card("PCOUNT", "0")...)
	b = append(b, card("GCOUNT", "1")...)
	b = append(b, card("TFIELDS", "3")...)
	b = append(b, card("TTYPE1", "'TIME'")...)
	b = append(b, card("TFORM1", "'1D'")...)
	b = append(b, card("TTYPE2", "'QUALITY'")...)
	b = append(b, card("TFORM2", "'1J'")...)
	b = append(b, card("TTYPE3", "'FLUX'")...)
	b = append(b, card("TFORM3", "'4E'")...)
	b = append(b, card("EXTNAME", "'PIXELS'")...)
	b = append(b, card("CROWDSAP", "0.96")...)
	b = append(b, card("FLFRCSAP", "0.93")...)
	b = append(b, bare("END")...)
	b = block(b)

	var d bytes.Buffer
	for r := 0; r < 3; r++ {
		binary.Write(&d, binary.BigEndian, 1816.5+float64(r))
		binary.Write(&d, binary.BigEndian, int32(r*8))
		for i := 0; i < 4; i++ {
			binary.Write(&d, binary.BigEndian, float32(100*r+i))
		}
	}
	b = append(b, dataBlock(d.Bytes())...)

	// aperture image, 2 x 2 int32
	b = append(b, card("XTENSION", "'IMAGE'")...)
	b = append(b, card("BITPIX", "32")...)
	b = append(b, card("NAXIS", "2")...)
	b = append(b, card("NAXIS1", "2")...)
	b = append(b, card("NAXIS2", "2")...)
	b = append(b, card("PCOUNT", "0")...)
	b = append(b, card("GCOUNT", "1")...)
	b = append(b, card("EXTNAME", "'APERTURE'")...)
	b = append(b, bare("END")...)
	b = block(b)

	d.Reset()
	for _, v := range []int32{3, 2, 2, 0} {
		binary.Write(&d, binary.BigEndian, v)
	}
	return append(b, dataBlock(d.Bytes())...)
}

func TestRead(t *testing.T) {
	f, err := fits.Read(bytes.NewReader(testFile()))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.HDUs) != 3 {
		t.Fatal("HDU count", len(f.HDUs))
	}
	if tic, err := f.Primary().Header.Int("TICID"); err != nil || tic != 307210830 {
		t.Fatal("TICID", tic, err)
	}
	if obj, err := f.Primary().Header.Str("OBJECT"); err != nil || obj != "TIC 307210830" {
		t.Fatal("OBJECT", obj, err)
	}
	if _, err := f.HDU("NOSUCH"); err == nil {
		t.Fatal("expected error for missing extension")
	}
}

func TestTable(t *testing.T) {
	f, err := fits.Read(bytes.NewReader(testFile()))
	if err != nil {
		t.Fatal(err)
	}
	h, err := f.HDU("PIXELS")
	if err != nil {
		t.Fatal(err)
	}
	if c, err := h.Header.Float("CROWDSAP"); err != nil || c != .96 {
		t.Fatal("CROWDSAP", c, err)
	}
	tab, err := h.Table()
	if err != nil {
		t.Fatal(err)
	}
	if tab.Rows() != 3 {
		t.Fatal("rows", tab.Rows())
	}
	tm, err := tab.FloatCol("TIME")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1816.5, 1817.5, 1818.5}
	for i, v := range tm {
		if v != want[i] {
			t.Fatal("TIME", tm)
		}
	}
	q, err := tab.IntCol("QUALITY")
	if err != nil {
		t.Fatal(err)
	}
	if q[0] != 0 || q[1] != 8 || q[2] != 16 {
		t.Fatal("QUALITY", q)
	}
	fl, err := tab.CubeCol("FLUX")
	if err != nil {
		t.Fatal(err)
	}
	if len(fl) != 3 || len(fl[0]) != 4 {
		t.Fatal("FLUX shape")
	}
	if math.Abs(fl[2][3]-203) > 1e-9 {
		t.Fatal("FLUX value", fl[2][3])
	}
	if _, err := tab.FloatCol("FLUX"); err == nil {
		t.Fatal("expected scalar error for vector column")
	}
	if _, err := tab.FloatCol("NOSUCH"); err == nil {
		t.Fatal("expected error for missing column")
	}
}

func TestImage(t *testing.T) {
	f, err := fits.Read(bytes.NewReader(testFile()))
	if err != nil {
		t.Fatal(err)
	}
	h, err := f.HDU("APERTURE")
	if err != nil {
		t.Fatal(err)
	}
	img, err := h.IntImage()
	if err != nil {
		t.Fatal(err)
	}
	if len(img) != 2 || len(img[0]) != 2 {
		t.Fatal("image shape")
	}
	if img[0][0] != 3 || img[1][1] != 0 {
		t.Fatal("image values", img)
	}
}

func TestTruncated(t *testing.T) {
	b := testFile()
	if _, err := fits.Read(bytes.NewReader(b[:len(b)-100])); err == nil {
		t.Fatal("expected truncation error")
	}
	if _, err := fits.Read(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty input")
	}
}
