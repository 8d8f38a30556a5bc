// Public domain.

// Package fits reads the subset of the FITS format used by TESS data
// products: 80 column ASCII header cards in 2880 byte blocks, big-endian
// binary table extensions, and integer image extensions.
//
// This is not a general FITS library.  It reads exactly what the tcor
// pipeline consumes, a target pixel file and a CBV file, and treats
// anything outside that subset as a hard error.
package fits

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// File is a sequence of header-data units as read from a FITS file.
type File struct {
	HDUs []*HDU
}

// HDU is a single header-data unit.  Name is the EXTNAME keyword,
// empty for the primary HDU.
type HDU struct {
	Name   string
	Header Header
	data   []byte
}

// Header holds parsed header cards in file order.
type Header struct {
	cards []Card
}

// Card is one parsed header card.  String values are stored unquoted.
type Card struct {
	Key, Value string
}

// ReadFile reads every HDU of the named file.
func ReadFile(fn string) (*File, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read reads every HDU from r until EOF.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	f := &File{}
	for {
		h, err := readHDU(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		f.HDUs = append(f.HDUs, h)
	}
	if len(f.HDUs) == 0 {
		return nil, fmt.Errorf("fits: no HDUs")
	}
	return f, nil
}

// HDU returns the extension with the given EXTNAME.
func (f *File) HDU(name string) (*HDU, error) {
	for _, h := range f.HDUs {
		if h.Name == name {
			return h, nil
		}
	}
	return nil, fmt.Errorf("fits: no extension %s", name)
}

// Primary returns the primary HDU.
func (f *File) Primary() *HDU {
	return f.HDUs[0]
}

func readHDU(br *bufio.Reader) (*HDU, error) {
	hdr, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	h := &HDU{Header: *hdr}
	if s, err := hdr.Str("EXTNAME"); err == nil {
		h.Name = s
	}
	n, err := dataSize(hdr)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		padded := (n + blockSize - 1) / blockSize * blockSize
		buf := make([]byte, padded)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("fits: truncated data unit: %v", err)
		}
		h.data = buf[:n]
	}
	return h, nil
}

// readHeader reads 2880 byte blocks of cards up to and including the
// block holding the END card.  io.EOF before the first block means a
// clean end of file; EOF anywhere else is corruption.
func readHeader(br *bufio.Reader) (*Header, error) {
	var hdr Header
	block := make([]byte, blockSize)
	for first := true; ; first = false {
		_, err := io.ReadFull(br, block)
		switch {
		case err == io.EOF && first:
			return nil, io.EOF
		case err != nil:
			return nil, fmt.Errorf("fits: truncated header: %v", err)
		}
		for i := 0; i < blockSize; i += cardSize {
			card := string(block[i : i+cardSize])
			key := strings.TrimRight(card[:8], " ")
			switch key {
			case "END":
				return &hdr, nil
			case "", "COMMENT", "HISTORY":
				continue
			}
			if card[8:10] != "= " {
				continue // keyword without a value, ignored
			}
			hdr.cards = append(hdr.cards, Card{key, parseValue(card[10:])})
		}
	}
}

// parseValue extracts the value token from the value field of a card,
// stripping any inline comment.  Quoted strings have their quotes
// removed and the doubled quote escape collapsed.
func parseValue(field string) string {
	s := strings.TrimLeft(field, " ")
	if len(s) > 0 && s[0] == '\'' {
		// scan for the closing quote, honoring the '' escape
		var b strings.Builder
		for i := 1; i < len(s); i++ {
			if s[i] != '\'' {
				b.WriteByte(s[i])
				continue
			}
			if i+1 < len(s) && s[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			break
		}
		return strings.TrimRight(b.String(), " ")
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// dataSize computes the size in bytes of the data unit following a
// header, per the standard sizing rule.
func dataSize(hdr *Header) (int, error) {
	bitpix, err := hdr.Int("BITPIX")
	if err != nil {
		return 0, err
	}
	naxis, err := hdr.Int("NAXIS")
	if err != nil {
		return 0, err
	}
	if naxis == 0 {
		return 0, nil
	}
	n := 1
	for i := 1; i <= naxis; i++ {
		ax, err := hdr.Int(fmt.Sprintf("NAXIS%d", i))
		if err != nil {
			return 0, err
		}
		n *= ax
	}
	pcount := 0
	if p, err := hdr.Int("PCOUNT"); err == nil {
		pcount = p
	}
	gcount := 1
	if g, err := hdr.Int("GCOUNT"); err == nil && g > 0 {
		gcount = g
	}
	bpp := bitpix
	if bpp < 0 {
		bpp = -bpp
	}
	return bpp / 8 * gcount * (pcount + n), nil
}

// Get returns the raw value of a keyword and whether it is present.
func (h *Header) Get(key string) (string, bool) {
	for _, c := range h.cards {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Str returns a keyword value as a string.
func (h *Header) Str(key string) (string, error) {
	v, ok := h.Get(key)
	if !ok {
		return "", fmt.Errorf("fits: keyword %s missing", key)
	}
	return v, nil
}

// Int returns a keyword value as an int.
func (h *Header) Int(key string) (int, error) {
	v, ok := h.Get(key)
	if !ok {
		return 0, fmt.Errorf("fits: keyword %s missing", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("fits: keyword %s: invalid integer (%s)", key, v)
	}
	return i, nil
}

// Float returns a keyword value as a float64.
func (h *Header) Float(key string) (float64, error) {
	v, ok := h.Get(key)
	if !ok {
		return 0, fmt.Errorf("fits: keyword %s missing", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("fits: keyword %s: invalid float (%s)", key, v)
	}
	return f, nil
}

// Logical returns a keyword value as a bool.
func (h *Header) Logical(key string) (bool, error) {
	v, ok := h.Get(key)
	if !ok {
		return false, fmt.Errorf("fits: keyword %s missing", key)
	}
	switch v {
	case "T":
		return true, nil
	case "F":
		return false, nil
	}
	return false, fmt.Errorf("fits: keyword %s: invalid logical (%s)", key, v)
}

// IntImage returns the data unit of an integer image extension as rows
// of pixel values.  BITPIX 8, 16 and 32 are supported; that covers the
// aperture extension of a target pixel file.
func (h *HDU) IntImage() ([][]int, error) {
	naxis, err := h.Header.Int("NAXIS")
	if err != nil {
		return nil, err
	}
	if naxis != 2 {
		return nil, fmt.Errorf("fits: %s: image with NAXIS=%d, want 2",
			h.Name, naxis)
	}
	w, err := h.Header.Int("NAXIS1")
	if err != nil {
		return nil, err
	}
	ht, err := h.Header.Int("NAXIS2")
	if err != nil {
		return nil, err
	}
	bitpix, err := h.Header.Int("BITPIX")
	if err != nil {
		return nil, err
	}
	img := make([][]int, ht)
	d := h.data
	for r := 0; r < ht; r++ {
		row := make([]int, w)
		for c := 0; c < w; c++ {
			switch bitpix {
			case 8:
				row[c] = int(d[0])
				d = d[1:]
			case 16:
				row[c] = int(int16(binary.BigEndian.Uint16(d)))
				d = d[2:]
			case 32:
				row[c] = int(int32(binary.BigEndian.Uint32(d)))
				d = d[4:]
			default:
				return nil, fmt.Errorf("fits: %s: BITPIX %d not supported",
					h.Name, bitpix)
			}
		}
		img[r] = row
	}
	return img, nil
}

// f64 reassembles a big-endian float64.
func f64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func f32(b []byte) float64 {
	return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
}
