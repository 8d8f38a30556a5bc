// Public domain.

// Command cbvprep builds the cotrending basis vector cache read by
// tcor.  It downloads the CBV FITS product for a sector, camera and
// CCD from the MAST archive, or reads a local copy, extracts one basis
// vector set and writes it to the binary cache file.
//
// Sample run:
//
//	cbvprep -s 38 -cam 2 -ccd 1
//
// writes tcor.cbv in the current directory.  See the tcor
// documentation for how the cache is used and when tcor rebuilds it
// itself.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soniakeys/exit"

	"tcor/cbv"
	"tcor/cbvbin"
	"tcor/fits"
	"tcor/mast"
)

const versionString = "cbvprep version 0.3 Go source."
const copyrightString = "Public domain."

func main() {
	defer exit.Handler()

	sector := flag.Int("s", 0, "sector")
	cam := flag.Int("cam", 1, "camera")
	ccd := flag.Int("ccd", 1, "CCD")
	local := flag.String("a", "", "local CBV FITS file, skip download")
	dp := flag.String("p", ".", "output path")
	cbvType := flag.String("t", cbv.SingleScale, "basis vector type")
	band := flag.Int("band", 0, "multi-scale band")
	vers := flag.Bool("v", false, "display version and copyright")
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
  cbvprep -s <sector> [-cam <n>] [-ccd <n>]   Download and build cache.
  cbvprep -s <sector> -a <cbv-fits-file>      Build cache from local file.
  cbvprep -v                                  Display version and copyright.

Options:
`)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if *sector <= 0 || flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	fn := *local
	if fn == "" {
		client := mast.NewClient()
		uri, err := client.SearchCBV(*sector, *cam, *ccd)
		if err != nil {
			exit.Log(err)
		}
		fn = filepath.Join(*dp, fmt.Sprintf("s%d_%d_%d_cbv.fits",
			*sector, *cam, *ccd))
		fmt.Println("Fetching", uri)
		if err = client.Download(uri, fn); err != nil {
			exit.Log(err)
		}
	}

	fmt.Println("Reading", fn)
	f, err := fits.ReadFile(fn)
	if err != nil {
		exit.Log(err)
	}
	set, err := cbv.ReadSet(f, *cbvType, *band, *cam, *ccd)
	if err != nil {
		exit.Log(err)
	}
	set.Sector = *sector

	cfn := filepath.Join(*dp, cbvbin.Cfn)
	fmt.Println("Writing", cfn)
	if err = cbvbin.Write(cfn, set); err != nil {
		exit.Log(err)
	}
	fmt.Printf("%d basis vectors, %d cadences.\n",
		len(set.Vectors), len(set.Time))
}
