package cv

import (
	"bytes"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/camrelay/internal/capture"
)

// DefaultJPEGQuality is used when JPEGEncoder.Quality is zero.
const DefaultJPEGQuality = 80

// JPEGEncoder compresses delivered frames for the MJPEG preview stream.
type JPEGEncoder struct {
	Quality int
}

// Encode returns the frame as a JPEG image.
func (e JPEGEncoder) Encode(f *capture.Frame) ([]byte, error) {
	mat, err := frameMat(f)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorBGRAToBGR)

	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, bgr, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}
