// Package assemble merges ordered window results into output artifacts
// with a fixed, index-derived band order. Naming and file I/O belong to
// the writer; this package only decides band content and order.
package assemble

import (
	"errors"
	"fmt"

	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/pipeline"
	"github.com/urbanveg/vcover/internal/raster"
	"github.com/urbanveg/vcover/internal/schedule"
)

// ErrNoData reports an artifact whose every window failed or was empty.
// There is no reference grid to shape sentinel bands from, so the artifact
// is skipped; the ledger still records every window.
var ErrNoData = errors.New("no window produced data")

// Band is one output band, attributed to exactly one window by its index.
type Band struct {
	Name        string
	WindowIndex int
	Grid        *raster.Grid
}

// Composite is one physical output artifact: bands in non-decreasing
// window-index order, VC before NDVI within a window, gaps filled with
// fully masked sentinel bands, never reordered.
type Composite struct {
	Label string // artifact identity: pair label for bi-weekly, "annual" for monthly
	Bands []Band
}

// Monthly assembles the single per-run artifact: one VC band per scheduled
// window, with an interleaved NDVI band per window when cfg.ExportNDVI.
// The band count equals the scheduled window count, not a fixed twelve.
func Monthly(results []pipeline.WindowResult, cfg config.Config) (*Composite, error) {
	bands, err := windowBands(results, cfg.ExportNDVI)
	if err != nil {
		return nil, err
	}
	return &Composite{Label: "annual", Bands: bands}, nil
}

// Biweekly assembles one artifact per consecutive month pair: two VC bands,
// or four interleaved VC/NDVI bands with cfg.ExportNDVI. A pair containing
// any data still emits its full band set, with failed windows masked.
func Biweekly(results []pipeline.WindowResult, cfg config.Config) ([]Composite, error) {
	windows := make([]schedule.Window, len(results))
	for i, r := range results {
		windows[i] = r.Window
	}

	var out []Composite
	for i, pair := range schedule.Pairs(windows) {
		bands, err := windowBands(results[i*2:i*2+2], cfg.ExportNDVI)
		if errors.Is(err, ErrNoData) {
			// Pair-local failure: still one sentinel error per artifact,
			// but a shape from a sibling pair lets us keep cardinality.
			if ref := referenceGrid(results); ref != nil {
				bands = sentinelBands(results[i*2:i*2+2], cfg.ExportNDVI, ref)
				err = nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", pair.Label, err)
		}
		out = append(out, Composite{Label: pair.Label, Bands: bands})
	}
	return out, nil
}

// windowBands builds the ordered band sequence for a result slice. Window
// results arrive sorted by index; every window contributes its band slot
// whether it succeeded or not.
func windowBands(results []pipeline.WindowResult, exportNDVI bool) ([]Band, error) {
	ref := referenceGrid(results)
	if ref == nil {
		return nil, ErrNoData
	}
	return sentinelBands(results, exportNDVI, ref), nil
}

func sentinelBands(results []pipeline.WindowResult, exportNDVI bool, ref *raster.Grid) []Band {
	bands := make([]Band, 0, len(results)*2)
	for _, r := range results {
		vc, ndvi := r.VC, r.NDVI
		if r.Status != pipeline.StatusOK {
			vc = raster.NewLike(ref)
			ndvi = raster.NewLike(ref)
		}
		bands = append(bands, Band{
			Name:        r.Window.Label() + "_vc",
			WindowIndex: r.Window.Index,
			Grid:        vc,
		})
		if exportNDVI {
			bands = append(bands, Band{
				Name:        r.Window.Label() + "_ndvi",
				WindowIndex: r.Window.Index,
				Grid:        ndvi,
			})
		}
	}
	return bands
}

// referenceGrid finds a grid to shape sentinel bands from.
func referenceGrid(results []pipeline.WindowResult) *raster.Grid {
	for _, r := range results {
		if r.Status == pipeline.StatusOK && r.VC != nil {
			return r.VC
		}
	}
	return nil
}
