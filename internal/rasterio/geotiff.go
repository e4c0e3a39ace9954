// Package rasterio writes output artifacts: multi-band float32 GeoTIFFs
// and PNG quicklooks. It is the raster-writer boundary; band content and
// order are decided by the assembler and taken as-is.
package rasterio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/urbanveg/vcover/internal/assemble"
)

// NoData is the pixel value written for invalid (masked) pixels, recorded
// in the GDAL nodata tag so GIS tools treat it as transparent.
const NoData = -9999

// TIFF tag ids used by the encoder.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

const (
	typeShort  = 3
	typeLong   = 4
	typeASCII  = 2
	typeDouble = 12
)

// WriteGeoTIFF encodes the composite as a little-endian striped TIFF: one
// strip per band, planar layout, 32-bit IEEE float samples, georeferencing
// from the first band's grid. Band order is exactly the composite's band
// order.
func WriteGeoTIFF(path string, comp *assemble.Composite) error {
	if len(comp.Bands) == 0 {
		return fmt.Errorf("write %s: composite has no bands", path)
	}
	ref := comp.Bands[0].Grid
	width, height := ref.Width, ref.Height
	for _, b := range comp.Bands {
		if b.Grid.Width != width || b.Grid.Height != height {
			return fmt.Errorf("write %s: band %s is %dx%d, want %dx%d",
				path, b.Name, b.Grid.Width, b.Grid.Height, width, height)
		}
	}

	nBands := len(comp.Bands)
	npix := width * height
	stripSize := npix * 4
	le := binary.LittleEndian

	// Layout: 8-byte header, band strips, IFD, then out-of-line arrays.
	dataStart := 8
	ifdOffset := dataStart + nBands*stripSize

	type entry struct {
		tag, typ int
		count    int
		value    uint32 // inline value or offset, patched below
		extra    []byte // out-of-line payload, nil when the value fits inline
	}

	shorts := func(vals ...uint16) []byte {
		b := make([]byte, len(vals)*2)
		for i, v := range vals {
			le.PutUint16(b[i*2:], v)
		}
		return b
	}
	longs := func(vals ...uint32) []byte {
		b := make([]byte, len(vals)*4)
		for i, v := range vals {
			le.PutUint32(b[i*4:], v)
		}
		return b
	}
	doubles := func(vals ...float64) []byte {
		b := make([]byte, len(vals)*8)
		for i, v := range vals {
			le.PutUint64(b[i*8:], math.Float64bits(v))
		}
		return b
	}

	stripOffsets := make([]uint32, nBands)
	stripCounts := make([]uint32, nBands)
	for i := range stripOffsets {
		stripOffsets[i] = uint32(dataStart + i*stripSize)
		stripCounts[i] = uint32(stripSize)
	}

	bps := make([]uint16, nBands)
	sf := make([]uint16, nBands)
	for i := range bps {
		bps[i] = 32
		sf[i] = 3 // IEEE floating point
	}

	// GeoTIFF key directory: projected model, area pixels, EPSG code.
	geoKeys := shorts(
		1, 1, 0, 3,
		1024, 0, 1, 1,
		1025, 0, 1, 1,
		3072, 0, 1, uint16(ref.EPSG),
	)

	nodata := append([]byte("-9999"), 0)

	entries := []entry{
		{tagImageWidth, typeLong, 1, uint32(width), nil},
		{tagImageLength, typeLong, 1, uint32(height), nil},
		{tagBitsPerSample, typeShort, nBands, 0, shorts(bps...)},
		{tagCompression, typeShort, 1, 1, nil},
		{tagPhotometric, typeShort, 1, 1, nil},
		{tagStripOffsets, typeLong, nBands, 0, longs(stripOffsets...)},
		{tagSamplesPerPixel, typeShort, 1, uint32(nBands), nil},
		{tagRowsPerStrip, typeLong, 1, uint32(height), nil},
		{tagStripByteCounts, typeLong, nBands, 0, longs(stripCounts...)},
		{tagPlanarConfig, typeShort, 1, 2, nil},
		{tagSampleFormat, typeShort, nBands, 0, shorts(sf...)},
		{tagModelPixelScale, typeDouble, 3, 0, doubles(ref.PixelSize, ref.PixelSize, 0)},
		{tagModelTiepoint, typeDouble, 6, 0, doubles(0, 0, 0, ref.OriginX, ref.OriginY, 0)},
		{tagGeoKeyDirectory, typeShort, len(geoKeys) / 2, 0, geoKeys},
		{tagGDALNoData, typeASCII, len(nodata), 0, nodata},
	}

	// Values of at most 4 bytes are stored inline in the entry.
	typeSize := map[int]int{typeShort: 2, typeLong: 4, typeASCII: 1, typeDouble: 8}
	for i := range entries {
		e := &entries[i]
		if e.extra != nil && e.count*typeSize[e.typ] <= 4 {
			var v [4]byte
			copy(v[:], e.extra)
			e.value = le.Uint32(v[:])
			e.extra = nil
		}
	}

	ifdSize := 2 + len(entries)*12 + 4
	extraOffset := ifdOffset + ifdSize
	for i := range entries {
		e := &entries[i]
		if e.extra == nil {
			continue
		}
		e.value = uint32(extraOffset)
		extraOffset += len(e.extra)
		if extraOffset%2 == 1 {
			extraOffset++
		}
	}

	buf := make([]byte, extraOffset)
	buf[0], buf[1] = 'I', 'I'
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], uint32(ifdOffset))

	for bi, b := range comp.Bands {
		strip := buf[dataStart+bi*stripSize:]
		for i := 0; i < npix; i++ {
			v := float32(NoData)
			if b.Grid.Valid[i] {
				v = b.Grid.Data[i]
			}
			le.PutUint32(strip[i*4:], math.Float32bits(v))
		}
	}

	le.PutUint16(buf[ifdOffset:], uint16(len(entries)))
	for i, e := range entries {
		off := ifdOffset + 2 + i*12
		le.PutUint16(buf[off:], uint16(e.tag))
		le.PutUint16(buf[off+2:], uint16(e.typ))
		le.PutUint32(buf[off+4:], uint32(e.count))
		le.PutUint32(buf[off+8:], e.value)
		if e.extra != nil {
			copy(buf[e.value:], e.extra)
		}
	}
	// Next-IFD pointer stays zero: single-directory file.

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
