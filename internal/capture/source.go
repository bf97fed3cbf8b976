// Package capture defines the camera-facing contracts of camrelay: frame
// sources, frame converters and the frame types that flow between them.
package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrDeviceUnavailable is returned by Open when the device cannot be acquired.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrUnsupportedFormat is returned when a converter cannot handle a pixel format.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
)

// FrameSource opens a capture device and yields decoded frames.
//
// Pull returns (nil, nil) when no frame is ready yet; that is not an error.
// A non-nil error means a frame arrived but could not be decoded.
// Width, Height and Format are only meaningful after a successful Open.
type FrameSource interface {
	Open() error
	Close() error
	Pull() (*RawFrame, error)
	Width() int
	Height() int
	Format() PixelFormat
}

// FrameConverter scales and converts a raw frame into a caller-owned buffer.
// dst must hold exactly BufferSize(dstWidth, dstHeight, dstFormat) bytes.
type FrameConverter interface {
	Convert(src *RawFrame, dst []byte, dstWidth, dstHeight int, dstFormat PixelFormat) error
	Close() error
}

// SourceFactory builds a fresh FrameSource for each capture run.
type SourceFactory func() FrameSource

// ConverterFactory builds a conversion context for one run.
type ConverterFactory func() FrameConverter

// CheckCapacity panics on a destination buffer of the wrong size; that is a
// programming error in the caller, not a runtime condition.
func CheckCapacity(dst []byte, width, height int, format PixelFormat) {
	if want := BufferSize(width, height, format); len(dst) != want {
		panic(fmt.Sprintf("capture: destination buffer is %d bytes, want %d", len(dst), want))
	}
}
