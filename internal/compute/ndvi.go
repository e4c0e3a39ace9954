// Package compute derives vegetation indices from composite reflectance.
// All functions are pure per-pixel math over raster grids; no I/O happens
// here.
package compute

import (
	"math"

	"github.com/urbanveg/vcover/internal/raster"
)

// NDVI computes (NIR-RED)/(NIR+RED) per pixel. A pixel is invalid in the
// output when either input pixel is invalid or the denominator is zero;
// invalid pixels never carry NaN into downstream bands.
func NDVI(red, nir *raster.Grid) (*raster.Grid, error) {
	if err := raster.CheckShape(red, nir); err != nil {
		return nil, err
	}

	out := raster.NewLike(red)
	for i := range red.Data {
		if !red.Valid[i] || !nir.Valid[i] {
			continue
		}
		r := float64(red.Data[i])
		n := float64(nir.Data[i])
		denom := n + r
		if denom == 0 {
			continue
		}
		out.Set(i, float32((n-r)/denom))
	}
	return out, nil
}

// Threshold derives the vegetation-cover band: 1 where NDVI >= t, else 0,
// preserving the invalid-pixel mask. The caller validates t against [-1, 1]
// at configuration time.
func Threshold(ndvi *raster.Grid, t float64) *raster.Grid {
	out := raster.NewLike(ndvi)
	for i := range ndvi.Data {
		if !ndvi.Valid[i] {
			continue
		}
		if float64(ndvi.Data[i]) >= t {
			out.Set(i, 1)
		} else {
			out.Set(i, 0)
		}
	}
	return out
}

// Stats summarizes one window's derived bands.
type Stats struct {
	ValidFraction float64 // share of pixels carrying data
	NDVIMin       float64
	NDVIMax       float64
	NDVIMean      float64
	CoverFraction float64 // share of valid pixels classified as vegetation
}

// Summarize computes per-window statistics over matching NDVI and VC grids.
// Min/max/mean are over valid pixels only; an all-invalid window reports
// zeroed stats.
func Summarize(ndvi, vc *raster.Grid) Stats {
	var s Stats
	var sum float64
	var valid, covered int
	s.NDVIMin = math.Inf(1)
	s.NDVIMax = math.Inf(-1)

	for i := range ndvi.Data {
		if !ndvi.Valid[i] {
			continue
		}
		v := float64(ndvi.Data[i])
		valid++
		sum += v
		if v < s.NDVIMin {
			s.NDVIMin = v
		}
		if v > s.NDVIMax {
			s.NDVIMax = v
		}
		if vc.Valid[i] && vc.Data[i] == 1 {
			covered++
		}
	}
	if valid == 0 {
		return Stats{}
	}
	s.ValidFraction = float64(valid) / float64(len(ndvi.Data))
	s.NDVIMean = sum / float64(valid)
	s.CoverFraction = float64(covered) / float64(valid)
	return s
}
