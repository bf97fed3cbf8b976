package capture

import "fmt"

// ScaleConverter is a dependency-free nearest-neighbour converter that turns
// packed Gray8, BGR24, RGB24, BGRA32 or YUYV frames into BGRA32. The
// production path uses the OpenCV converter in package cv; this one keeps the
// mock backend and tests free of cgo.
type ScaleConverter struct {
	// Column lookup cached per (srcWidth, dstWidth) pair.
	srcWidth, dstWidth int
	xmap               []int
}

// NewScaleConverter returns a converter with an empty lookup cache.
func NewScaleConverter() *ScaleConverter {
	return &ScaleConverter{}
}

func (c *ScaleConverter) Convert(src *RawFrame, dst []byte, dstWidth, dstHeight int, dstFormat PixelFormat) error {
	if dstFormat != PixelFormatBGRA32 {
		return fmt.Errorf("scale to %s: %w", dstFormat, ErrUnsupportedFormat)
	}
	CheckCapacity(dst, dstWidth, dstHeight, dstFormat)

	if src == nil || src.Width <= 0 || src.Height <= 0 {
		return fmt.Errorf("scale: empty source frame")
	}
	bpp := src.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("scale from %s: %w", src.Format, ErrUnsupportedFormat)
	}
	// YUYV pixels come in pairs sharing chroma.
	if src.Format == PixelFormatYUYV && src.Width%2 != 0 {
		return fmt.Errorf("scale from %s with odd width %d: %w", src.Format, src.Width, ErrUnsupportedFormat)
	}
	stride := src.RowStride()
	if len(src.Data) < stride*(src.Height-1)+src.Width*bpp {
		return fmt.Errorf("scale: source buffer too short (%d bytes for %dx%d %s)",
			len(src.Data), src.Width, src.Height, src.Format)
	}

	c.buildColumnMap(src.Width, dstWidth)

	// Fixed-point 16.16 row step
	yRatio := (src.Height << 16) / dstHeight

	for y := 0; y < dstHeight; y++ {
		sy := (y * yRatio) >> 16
		srcRow := src.Data[sy*stride:]
		dstRow := dst[y*dstWidth*4 : (y+1)*dstWidth*4]

		for x := 0; x < dstWidth; x++ {
			sx := c.xmap[x]
			b, g, r := readPixel(srcRow, sx, src.Format)
			o := x * 4
			dstRow[o] = b
			dstRow[o+1] = g
			dstRow[o+2] = r
			dstRow[o+3] = 0xff
		}
	}

	return nil
}

func (c *ScaleConverter) Close() error {
	c.xmap = nil
	c.srcWidth, c.dstWidth = 0, 0
	return nil
}

func (c *ScaleConverter) buildColumnMap(srcWidth, dstWidth int) {
	if c.srcWidth == srcWidth && c.dstWidth == dstWidth && c.xmap != nil {
		return
	}
	xRatio := (srcWidth << 16) / dstWidth
	c.xmap = make([]int, dstWidth)
	for x := range c.xmap {
		c.xmap[x] = (x * xRatio) >> 16
	}
	c.srcWidth, c.dstWidth = srcWidth, dstWidth
}

// readPixel returns the B, G, R components of pixel x in a packed row.
func readPixel(row []byte, x int, format PixelFormat) (b, g, r byte) {
	switch format {
	case PixelFormatGray8:
		v := row[x]
		return v, v, v
	case PixelFormatBGR24:
		p := row[x*3:]
		return p[0], p[1], p[2]
	case PixelFormatRGB24:
		p := row[x*3:]
		return p[2], p[1], p[0]
	case PixelFormatBGRA32:
		p := row[x*4:]
		return p[0], p[1], p[2]
	case PixelFormatYUYV:
		// Y0 U Y1 V macropixel shared by two columns
		p := row[(x/2)*4:]
		yv := p[0]
		if x%2 == 1 {
			yv = p[2]
		}
		return yuvToBGR(yv, p[1], p[3])
	}
	return 0, 0, 0
}

// yuvToBGR converts one BT.601 limited-range sample.
func yuvToBGR(y, u, v byte) (b, g, r byte) {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128

	r = clamp((298*c + 409*e + 128) >> 8)
	g = clamp((298*c - 100*d - 208*e + 128) >> 8)
	b = clamp((298*c + 516*d + 128) >> 8)
	return b, g, r
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
