// Package v4l reads frames straight from Video4Linux2 devices with go4vl,
// bypassing OpenCV's capture layer. MJPEG frames are decoded with GoCV; YUYV
// frames are handed to the converter as is.
package v4l

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults for Config.
const (
	DefaultDevice      = "/dev/video0"
	DefaultBufferSize  = 4
	DefaultFPS         = 30
	DefaultPollTimeout = 100 * time.Millisecond
)

// ErrUnsupportedPlatform is returned on systems without V4L2.
var ErrUnsupportedPlatform = errors.New("v4l2 capture is only available on linux")

// Encoding is the stream format requested from the driver.
type Encoding string

const (
	EncodingMJPEG Encoding = "mjpeg"
	EncodingYUYV  Encoding = "yuyv"
)

// ParseEncoding accepts "mjpeg" or "yuyv" in any case. Empty means MJPEG.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingMJPEG:
		return EncodingMJPEG, nil
	case EncodingYUYV:
		return EncodingYUYV, nil
	default:
		return "", fmt.Errorf("unknown v4l2 encoding %q", s)
	}
}

// Config describes a V4L2 stream.
type Config struct {
	Device     string
	Width      int
	Height     int
	Encoding   Encoding
	BufferSize int
	FPS        int

	// PollTimeout bounds how long Pull waits for the driver before
	// reporting that no frame is ready.
	PollTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.Encoding == "" {
		c.Encoding = EncodingMJPEG
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
}

// DeviceInfo describes one capture node.
type DeviceInfo struct {
	Path    string   `json:"path"`
	Name    string   `json:"name"`
	Formats []string `json:"formats"`
}
