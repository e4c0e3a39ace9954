package raster

import "fmt"

// Grid is a single-band float32 raster with a per-pixel validity mask.
// It is the payload unit exchanged between the imagery client, the index
// computer, the assembler and the writers. Pixels are stored row-major,
// north-up; Valid[i] == false marks nodata regardless of Data[i].
type Grid struct {
	Width  int
	Height int
	Data   []float32
	Valid  []bool

	// Georeferencing: origin is the outer corner of the top-left pixel,
	// PixelSize is in CRS units (meters for projected systems).
	OriginX   float64
	OriginY   float64
	PixelSize float64
	EPSG      int
}

// New returns a grid of the given dimensions with every pixel invalid.
func New(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
		Valid:  make([]bool, width*height),
	}
}

// NewLike returns an all-invalid grid sharing g's dimensions and
// georeferencing. Used for sentinel bands and derived layers.
func NewLike(g *Grid) *Grid {
	out := New(g.Width, g.Height)
	out.OriginX, out.OriginY = g.OriginX, g.OriginY
	out.PixelSize = g.PixelSize
	out.EPSG = g.EPSG
	return out
}

// Set writes a valid pixel value at index i.
func (g *Grid) Set(i int, v float32) {
	g.Data[i] = v
	g.Valid[i] = true
}

// ValidFraction reports the share of pixels carrying data, in [0, 1].
func (g *Grid) ValidFraction() float64 {
	if len(g.Valid) == 0 {
		return 0
	}
	n := 0
	for _, ok := range g.Valid {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(g.Valid))
}

// CheckShape verifies that two grids can participate in per-pixel math.
func CheckShape(a, b *Grid) error {
	if a.Width != b.Width || a.Height != b.Height {
		return fmt.Errorf("grid shape mismatch: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}
