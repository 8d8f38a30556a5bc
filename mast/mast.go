// Public domain.

// Package mast is a minimal client for the MAST archive: TIC target
// resolution, product lookup for TESS target pixel and CBV files, and
// file download.  The archive is public, so there is no auth, and per
// the pipeline's error model there are no retries: any failure here is
// terminal for the run.
package mast

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/soniakeys/unit"
)

// DefaultBaseURL is the MAST service root.
const DefaultBaseURL = "https://mast.stsci.edu"

// Client accesses the archive.  The zero value is not usable; call
// NewClient.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the public archive.
func NewClient() *Client {
	return &Client{BaseURL: DefaultBaseURL, HTTPClient: http.DefaultClient}
}

// Target is catalog metadata for one TIC entry.
type Target struct {
	TIC  int
	RA   unit.RA
	Dec  unit.Angle
	TMag float64
}

// ticResponse is the catalog service payload.
type ticResponse struct {
	ID   int     `json:"ID"`
	RA   float64 `json:"ra"`
	Dec  float64 `json:"dec"`
	TMag float64 `json:"Tmag"`
}

// ResolveTIC looks a target up in the TESS input catalog.
func (c *Client) ResolveTIC(tic int) (*Target, error) {
	u := fmt.Sprintf("%s/api/v0.1/catalogs/tic/%d", c.BaseURL, tic)
	var tr ticResponse
	if err := c.getJSON(u, &tr); err != nil {
		return nil, fmt.Errorf("mast: resolving TIC %d: %v", tic, err)
	}
	if tr.ID != tic {
		return nil, fmt.Errorf("mast: TIC %d not found", tic)
	}
	return &Target{
		TIC:  tr.ID,
		RA:   unit.RAFromDeg(tr.RA),
		Dec:  unit.AngleFromDeg(tr.Dec),
		TMag: tr.TMag,
	}, nil
}

// product is one entry of the product lookup payload.
type product struct {
	URI    string `json:"dataURI"`
	Type   string `json:"productSubGroupDescription"`
	Sector int    `json:"sequence_number"`
}

// SearchTPF returns the archive URI of the target pixel file for one
// target and sector.
func (c *Client) SearchTPF(tic, sector int) (string, error) {
	u := fmt.Sprintf("%s/api/v0.1/tess/products?tic=%d&sector=%d",
		c.BaseURL, tic, sector)
	var ps []product
	if err := c.getJSON(u, &ps); err != nil {
		return "", fmt.Errorf("mast: product search TIC %d sector %d: %v",
			tic, sector, err)
	}
	for _, p := range ps {
		if p.Type == "TP" && p.Sector == sector {
			return p.URI, nil
		}
	}
	return "", fmt.Errorf("mast: no target pixel file for TIC %d sector %d",
		tic, sector)
}

// SearchCBV returns the archive URI of the CBV file for a sector,
// camera and CCD.
func (c *Client) SearchCBV(sector, cam, ccd int) (string, error) {
	u := fmt.Sprintf("%s/api/v0.1/tess/products?sector=%d&cam=%d&ccd=%d",
		c.BaseURL, sector, cam, ccd)
	var ps []product
	if err := c.getJSON(u, &ps); err != nil {
		return "", fmt.Errorf("mast: CBV search sector %d %d-%d: %v",
			sector, cam, ccd, err)
	}
	for _, p := range ps {
		if p.Type == "CBV" {
			return p.URI, nil
		}
	}
	return "", fmt.Errorf("mast: no CBV file for sector %d camera %d ccd %d",
		sector, cam, ccd)
}

// Download fetches an archive URI to a local file, decompressing
// transparently when the URI names a gzipped product.
func (c *Client) Download(uri, path string) error {
	u := uri
	if !strings.HasPrefix(u, "http") {
		u = fmt.Sprintf("%s/api/v0.1/Download/file?uri=%s",
			c.BaseURL, url.QueryEscape(uri))
	}
	r, err := c.HTTPClient.Get(u)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return fmt.Errorf("mast: download %s: %s", uri, r.Status)
	}
	var body io.Reader = r.Body
	if strings.HasSuffix(uri, ".gz") {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		body = gz
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *Client) getJSON(u string, v interface{}) error {
	r, err := c.HTTPClient.Get(u)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", r.Status)
	}
	return json.NewDecoder(r.Body).Decode(v)
}
