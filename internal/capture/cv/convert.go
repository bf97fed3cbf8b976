package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/camrelay/internal/capture"
)

// Converter turns raw frames into BGRA32 at the requested size with OpenCV.
// Mats are kept between calls; a Converter belongs to one capture run.
// YUYV and strided input go through capture.ScaleConverter instead.
type Converter struct {
	color    gocv.Mat
	resized  gocv.Mat
	fallback *capture.ScaleConverter
}

// NewConverter allocates the working matrices.
func NewConverter() *Converter {
	return &Converter{
		color:    gocv.NewMat(),
		resized:  gocv.NewMat(),
		fallback: capture.NewScaleConverter(),
	}
}

func (c *Converter) Convert(src *capture.RawFrame, dst []byte, dstWidth, dstHeight int, dstFormat capture.PixelFormat) error {
	if dstFormat != capture.PixelFormatBGRA32 {
		return fmt.Errorf("convert to %s: %w", dstFormat, capture.ErrUnsupportedFormat)
	}
	capture.CheckCapacity(dst, dstWidth, dstHeight, dstFormat)

	if src == nil || src.Width <= 0 || src.Height <= 0 {
		return fmt.Errorf("convert: empty source frame")
	}

	matType, code, ok := matLayout(src.Format)
	packed := src.Width * src.Format.BytesPerPixel()
	if !ok || src.RowStride() != packed {
		return c.fallback.Convert(src, dst, dstWidth, dstHeight, dstFormat)
	}

	size := packed * src.Height
	if len(src.Data) < size {
		return fmt.Errorf("convert: source buffer too short (%d bytes for %dx%d %s)",
			len(src.Data), src.Width, src.Height, src.Format)
	}

	in, err := gocv.NewMatFromBytes(src.Height, src.Width, matType, src.Data[:size])
	if err != nil {
		return fmt.Errorf("convert: wrap source: %w", err)
	}
	defer in.Close()

	bgra := in
	if src.Format != capture.PixelFormatBGRA32 {
		gocv.CvtColor(in, &c.color, code)
		bgra = c.color
	}

	out := bgra
	if src.Width != dstWidth || src.Height != dstHeight {
		gocv.Resize(bgra, &c.resized, image.Pt(dstWidth, dstHeight), 0, 0, gocv.InterpolationLinear)
		out = c.resized
	}

	if out.Empty() {
		return fmt.Errorf("convert: OpenCV produced an empty frame")
	}
	if n := copy(dst, out.ToBytes()); n != len(dst) {
		return fmt.Errorf("convert: got %d bytes, want %d", n, len(dst))
	}
	return nil
}

func (c *Converter) Close() error {
	c.fallback.Close()
	if err := c.color.Close(); err != nil {
		return err
	}
	return c.resized.Close()
}

// matLayout maps a packed format onto an OpenCV mat type and the color
// conversion that yields BGRA.
func matLayout(f capture.PixelFormat) (gocv.MatType, gocv.ColorConversionCode, bool) {
	switch f {
	case capture.PixelFormatGray8:
		return gocv.MatTypeCV8UC1, gocv.ColorGrayToBGRA, true
	case capture.PixelFormatBGR24:
		return gocv.MatTypeCV8UC3, gocv.ColorBGRToBGRA, true
	case capture.PixelFormatRGB24:
		// Swapping R and B while adding alpha turns RGB into BGRA.
		return gocv.MatTypeCV8UC3, gocv.ColorBGRToRGBA, true
	case capture.PixelFormatBGRA32:
		return gocv.MatTypeCV8UC4, 0, true
	default:
		return 0, 0, false
	}
}

// frameMat wraps a BGRA32 frame in a new Mat. The caller closes it.
func frameMat(f *capture.Frame) (gocv.Mat, error) {
	if f.Format != capture.PixelFormatBGRA32 {
		return gocv.Mat{}, fmt.Errorf("frame format %s: %w", f.Format, capture.ErrUnsupportedFormat)
	}
	if len(f.Data) != capture.BufferSize(f.Width, f.Height, f.Format) {
		return gocv.Mat{}, fmt.Errorf("frame buffer is %d bytes for %dx%d", len(f.Data), f.Width, f.Height)
	}
	return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC4, f.Data)
}
