// Public domain.

package fits

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Table is a parsed binary table extension.
type Table struct {
	Header Header
	Name   string
	rows   int
	rowLen int
	cols   []col
	data   []byte
}

type col struct {
	name   string
	typ    byte
	repeat int
	off    int // byte offset within a row
}

// sizes of TFORM data types in bytes
var typSize = map[byte]int{
	'L': 1, 'B': 1, 'A': 1, 'I': 2, 'J': 4, 'E': 4, 'K': 8, 'D': 8,
}

// Table interprets the HDU as a binary table extension.
func (h *HDU) Table() (*Table, error) {
	xt, err := h.Header.Str("XTENSION")
	if err != nil {
		return nil, err
	}
	if xt != "BINTABLE" {
		return nil, fmt.Errorf("fits: %s: XTENSION %s, want BINTABLE",
			h.Name, xt)
	}
	t := &Table{Header: h.Header, Name: h.Name, data: h.data}
	if t.rowLen, err = h.Header.Int("NAXIS1"); err != nil {
		return nil, err
	}
	if t.rows, err = h.Header.Int("NAXIS2"); err != nil {
		return nil, err
	}
	nf, err := h.Header.Int("TFIELDS")
	if err != nil {
		return nil, err
	}
	off := 0
	for i := 1; i <= nf; i++ {
		name, err := h.Header.Str(fmt.Sprintf("TTYPE%d", i))
		if err != nil {
			return nil, err
		}
		form, err := h.Header.Str(fmt.Sprintf("TFORM%d", i))
		if err != nil {
			return nil, err
		}
		repeat, typ, err := parseTForm(form)
		if err != nil {
			return nil, fmt.Errorf("fits: %s column %s: %v", h.Name, name, err)
		}
		t.cols = append(t.cols, col{name, typ, repeat, off})
		off += repeat * typSize[typ]
	}
	if off != t.rowLen {
		return nil, fmt.Errorf("fits: %s: columns span %d bytes, NAXIS1=%d",
			h.Name, off, t.rowLen)
	}
	if t.rows*t.rowLen > len(t.data) {
		return nil, fmt.Errorf("fits: %s: data unit short for %d rows",
			h.Name, t.rows)
	}
	return t, nil
}

// parseTForm splits a TFORM value such as "1D" or "144E" into repeat
// count and type letter.
func parseTForm(form string) (repeat int, typ byte, err error) {
	i := 0
	for i < len(form) && form[i] >= '0' && form[i] <= '9' {
		i++
	}
	repeat = 1
	if i > 0 {
		if repeat, err = strconv.Atoi(form[:i]); err != nil {
			return 0, 0, fmt.Errorf("invalid TFORM (%s)", form)
		}
	}
	if i == len(form) {
		return 0, 0, fmt.Errorf("invalid TFORM (%s)", form)
	}
	typ = form[i]
	if _, ok := typSize[typ]; !ok {
		return 0, 0, fmt.Errorf("TFORM type %c not supported", typ)
	}
	return repeat, typ, nil
}

// Rows returns the number of table rows.
func (t *Table) Rows() int { return t.rows }

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

func (t *Table) column(name string) (*col, error) {
	for i := range t.cols {
		if t.cols[i].name == name {
			return &t.cols[i], nil
		}
	}
	return nil, fmt.Errorf("fits: %s: no column %s", t.Name, name)
}

// FloatCol returns a scalar numeric column as float64 values.
func (t *Table) FloatCol(name string) ([]float64, error) {
	c, err := t.column(name)
	if err != nil {
		return nil, err
	}
	if c.repeat != 1 {
		return nil, fmt.Errorf("fits: %s column %s: repeat %d, want scalar",
			t.Name, name, c.repeat)
	}
	v := make([]float64, t.rows)
	for r := 0; r < t.rows; r++ {
		v[r] = t.cell(c, r, 0)
	}
	return v, nil
}

// IntCol returns a scalar integer column.  Values are truncated from
// the stored representation; use it for flag and cadence columns.
func (t *Table) IntCol(name string) ([]int, error) {
	f, err := t.FloatCol(name)
	if err != nil {
		return nil, err
	}
	v := make([]int, len(f))
	for i, x := range f {
		v[i] = int(x)
	}
	return v, nil
}

// CubeCol returns a vector-valued column, one slice of repeat values
// per row.  This is the layout of the FLUX and FLUX_ERR image columns
// of a target pixel file.
func (t *Table) CubeCol(name string) ([][]float64, error) {
	c, err := t.column(name)
	if err != nil {
		return nil, err
	}
	v := make([][]float64, t.rows)
	for r := 0; r < t.rows; r++ {
		row := make([]float64, c.repeat)
		for i := 0; i < c.repeat; i++ {
			row[i] = t.cell(c, r, i)
		}
		v[r] = row
	}
	return v, nil
}

// cell decodes element i of column c in row r.
func (t *Table) cell(c *col, r, i int) float64 {
	b := t.data[r*t.rowLen+c.off+i*typSize[c.typ]:]
	switch c.typ {
	case 'D':
		return f64(b)
	case 'E':
		return f32(b)
	case 'B', 'L', 'A':
		return float64(b[0])
	case 'I':
		return float64(int16(binary.BigEndian.Uint16(b)))
	case 'J':
		return float64(int32(binary.BigEndian.Uint32(b)))
	case 'K':
		return float64(int64(binary.BigEndian.Uint64(b)))
	}
	return 0
}
