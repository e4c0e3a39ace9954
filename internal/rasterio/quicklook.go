package rasterio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/urbanveg/vcover/internal/assemble"
)

// quicklookMaxDim caps the longer quicklook edge; full-resolution exports
// can run to tens of thousands of pixels per side.
const quicklookMaxDim = 512

// WriteQuicklook renders the composite's first band as a small PNG
// preview: vegetated pixels green, bare pixels grey, masked pixels
// transparent.
func WriteQuicklook(path string, comp *assemble.Composite) error {
	if len(comp.Bands) == 0 {
		return fmt.Errorf("quicklook %s: composite has no bands", path)
	}
	g := comp.Bands[0].Grid

	full := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i := range g.Data {
		x, y := i%g.Width, i/g.Width
		if !g.Valid[i] {
			full.SetNRGBA(x, y, color.NRGBA{})
			continue
		}
		if g.Data[i] >= 0.5 {
			full.SetNRGBA(x, y, color.NRGBA{R: 34, G: 139, B: 34, A: 255})
		} else {
			full.SetNRGBA(x, y, color.NRGBA{R: 190, G: 180, B: 160, A: 255})
		}
	}

	w, h := g.Width, g.Height
	if w > quicklookMaxDim || h > quicklookMaxDim {
		if w >= h {
			h = h * quicklookMaxDim / w
			w = quicklookMaxDim
		} else {
			w = w * quicklookMaxDim / h
			h = quicklookMaxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), full, full.Bounds(), draw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("quicklook %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("quicklook %s: encode: %w", path, err)
	}
	return nil
}
