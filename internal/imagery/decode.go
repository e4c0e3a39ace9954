package imagery

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/urbanveg/vcover/internal/raster"
)

// compositeResponse is the service's wire format for one reduced window.
// Band pixels are base64-encoded little-endian float32, row-major; the
// mask is one byte per pixel, nonzero meaning valid. A missing mask means
// every pixel is valid.
type compositeResponse struct {
	ImageIDs        []string          `json:"imageIds"`
	SceneCloudCover []float64         `json:"sceneCloudCover"`
	Width           int               `json:"width"`
	Height          int               `json:"height"`
	OriginX         float64           `json:"originX"`
	OriginY         float64           `json:"originY"`
	PixelSize       float64           `json:"pixelSize"`
	EPSG            int               `json:"epsg"`
	Bands           map[string]string `json:"bands"`
	Mask            string            `json:"mask"`
}

func decodeComposite(body []byte) (*Composite, error) {
	var resp compositeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	comp := &Composite{
		ImageIDs:        resp.ImageIDs,
		SceneCloudCover: resp.SceneCloudCover,
	}
	if len(resp.ImageIDs) == 0 {
		// Empty candidate set: a valid outcome, no pixel payload expected.
		return comp, nil
	}

	if resp.Width <= 0 || resp.Height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrMalformed, resp.Width, resp.Height)
	}
	npix := resp.Width * resp.Height

	var mask []bool
	if resp.Mask != "" {
		raw, err := base64.StdEncoding.DecodeString(resp.Mask)
		if err != nil {
			return nil, fmt.Errorf("%w: mask: %v", ErrMalformed, err)
		}
		if len(raw) != npix {
			return nil, fmt.Errorf("%w: mask has %d pixels, want %d", ErrMalformed, len(raw), npix)
		}
		mask = make([]bool, npix)
		for i, b := range raw {
			mask[i] = b != 0
		}
	}

	decodeBand := func(name string) (*raster.Grid, error) {
		enc, ok := resp.Bands[name]
		if !ok {
			return nil, fmt.Errorf("%w: band %s missing", ErrMalformed, name)
		}
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: band %s: %v", ErrMalformed, name, err)
		}
		if len(raw) != npix*4 {
			return nil, fmt.Errorf("%w: band %s has %d bytes, want %d", ErrMalformed, name, len(raw), npix*4)
		}

		g := raster.New(resp.Width, resp.Height)
		g.OriginX, g.OriginY = resp.OriginX, resp.OriginY
		g.PixelSize = resp.PixelSize
		g.EPSG = resp.EPSG
		for i := 0; i < npix; i++ {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			v := math.Float32frombits(bits)
			if mask != nil && !mask[i] {
				continue
			}
			if math.IsNaN(float64(v)) {
				continue
			}
			g.Set(i, v)
		}
		return g, nil
	}

	var err error
	if comp.Red, err = decodeBand(BandRed); err != nil {
		return nil, err
	}
	if comp.NIR, err = decodeBand(BandNIR); err != nil {
		return nil, err
	}
	return comp, nil
}
