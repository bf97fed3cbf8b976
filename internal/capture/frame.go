package capture

import (
	"fmt"
	"time"
)

// PixelFormat identifies the memory layout of a frame.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatGray8               // 1 byte per pixel
	PixelFormatBGR24               // Packed BGR, 3 bytes per pixel (OpenCV native)
	PixelFormatRGB24               // Packed RGB, 3 bytes per pixel
	PixelFormatBGRA32              // Packed BGRA, 4 bytes per pixel
	PixelFormatYUYV                // Packed YUV 4:2:2, 2 bytes per pixel
)

// TargetFormat is the layout every delivered frame is converted to.
// In memory it matches a little-endian 0xAARRGGBB word, so consumers can
// treat the buffer as 32-bit RGB.
const TargetFormat = PixelFormatBGRA32

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatGray8:
		return "GRAY8"
	case PixelFormatBGR24:
		return "BGR24"
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatBGRA32:
		return "BGRA32"
	case PixelFormatYUYV:
		return "YUYV"
	default:
		return "Unknown"
	}
}

// BytesPerPixel returns the packed pixel size, or 0 for unknown formats.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelFormatGray8:
		return 1
	case PixelFormatYUYV:
		return 2
	case PixelFormatBGR24, PixelFormatRGB24:
		return 3
	case PixelFormatBGRA32:
		return 4
	default:
		return 0
	}
}

// BufferSize returns the number of bytes a packed width x height frame needs.
func BufferSize(width, height int, format PixelFormat) int {
	return width * height * format.BytesPerPixel()
}

// RawFrame is a decoded frame as produced by a FrameSource.
// Data is owned by the source and is only valid until the next Pull.
type RawFrame struct {
	Data      []byte
	Stride    int // Bytes per row; 0 means tightly packed
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
}

// RowStride returns the effective stride in bytes.
func (f *RawFrame) RowStride() int {
	if f.Stride > 0 {
		return f.Stride
	}
	return f.Width * f.Format.BytesPerPixel()
}

// Frame is a converted frame handed to a delivery sink.
// Receivers must copy Data before returning; the capture loop reuses it.
type Frame struct {
	Seq       uint64
	Width     int
	Height    int
	Format    PixelFormat
	Data      []byte
	Timestamp time.Time
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	clone := *f
	clone.Data = make([]byte, len(f.Data))
	copy(clone.Data, f.Data)
	return &clone
}

// Resolution is a target frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}
