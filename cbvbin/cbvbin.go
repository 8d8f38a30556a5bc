// Public domain.

// Package cbvbin stores a cotrending basis vector set in a small
// binary cache file, written by the cbvprep command and read by tcor.
// Caching avoids re-downloading and re-parsing the CBV FITS product on
// every run against the same sector.
package cbvbin

import (
	"encoding/gob"
	"fmt"
	"os"

	"tcor/cbv"
)

// Cfn is the default cache file name.
const Cfn = "tcor.cbv"

// Write encodes a basis vector set to the named file.
func Write(fn string, s *cbv.Set) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	enc := gob.NewEncoder(f)
	if err := enc.Encode(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile decodes a basis vector set from a cache file.
func ReadFile(fn string) (*cbv.Set, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s cbv.Set
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("cbvbin: %s corrupt: %v", fn, err)
	}
	if len(s.Vectors) == 0 || len(s.Time) == 0 {
		return nil, fmt.Errorf("cbvbin: %s holds no basis vectors", fn)
	}
	return &s, nil
}
