// Package cv provides the OpenCV (GoCV) implementations of the capture
// contracts: a camera source, a BGRA converter, a JPEG encoder for preview
// streams and a PNG snapshot sink.
package cv

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/camrelay/internal/capture"
)

// Default camera settings
const (
	DefaultFPS = 30
)

// Consecutive failed grabs back off linearly up to maxReadBackoff so a lost
// device does not spin the capture loop.
const (
	readBackoffStep = 10 * time.Millisecond
	maxReadBackoff  = 250 * time.Millisecond
)

var errReadFailed = errors.New("failed to read frame from camera")

// CameraConfig selects and configures a capture device.
type CameraConfig struct {
	// Device is a camera index ("0") or a path or URL OpenCV can open.
	Device string

	// Width and Height request a native capture size. Zero keeps the
	// driver default.
	Width  int
	Height int

	FPS int
}

// Camera is a capture.FrameSource backed by gocv.VideoCapture.
type Camera struct {
	cfg     CameraConfig
	capture *gocv.VideoCapture
	mat     gocv.Mat
	mu      sync.Mutex
	running bool
	width   int
	height  int

	readFailures int
}

// NewCamera creates a closed Camera for the given device.
func NewCamera(cfg CameraConfig) *Camera {
	if cfg.Device == "" {
		cfg.Device = "0"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	return &Camera{cfg: cfg}
}

// Open opens the device and applies the requested size and frame rate.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var device interface{} = c.cfg.Device
	if id, err := strconv.Atoi(c.cfg.Device); err == nil {
		device = id
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", capture.ErrDeviceUnavailable, c.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: %s", capture.ErrDeviceUnavailable, c.cfg.Device)
	}

	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	}
	vc.Set(gocv.VideoCaptureFPS, float64(c.cfg.FPS))

	c.capture = vc
	c.mat = gocv.NewMat()
	c.width = int(vc.Get(gocv.VideoCaptureFrameWidth))
	c.height = int(vc.Get(gocv.VideoCaptureFrameHeight))
	c.readFailures = 0
	c.running = true

	return nil
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	c.mat.Close()
	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// Pull grabs and decodes the next frame. An empty grab is reported as no
// frame yet; a failed grab is an error and delays the caller by
// readBackoff.
func (c *Camera) Pull() (*capture.RawFrame, error) {
	frame, backoff, err := c.grab()
	if backoff > 0 {
		time.Sleep(backoff)
	}
	return frame, err
}

func (c *Camera) grab() (*capture.RawFrame, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, 0, capture.ErrCameraNotOpen
	}

	if ok := c.capture.Read(&c.mat); !ok {
		c.readFailures++
		return nil, readBackoff(c.readFailures), errReadFailed
	}
	c.readFailures = 0
	if c.mat.Empty() {
		return nil, 0, nil
	}

	format := formatForChannels(c.mat.Channels())
	if format == capture.PixelFormatUnknown {
		return nil, 0, fmt.Errorf("camera frame with %d channels: %w", c.mat.Channels(), capture.ErrUnsupportedFormat)
	}

	c.width, c.height = c.mat.Cols(), c.mat.Rows()
	return &capture.RawFrame{
		Data:      c.mat.ToBytes(),
		Width:     c.width,
		Height:    c.height,
		Format:    format,
		Timestamp: time.Now(),
	}, 0, nil
}

// readBackoff is the pause after the n-th consecutive failed grab.
func readBackoff(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := time.Duration(n) * readBackoffStep
	if d > maxReadBackoff {
		return maxReadBackoff
	}
	return d
}

func (c *Camera) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

func (c *Camera) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Format reports packed BGR, the layout OpenCV decodes camera frames to.
func (c *Camera) Format() capture.PixelFormat { return capture.PixelFormatBGR24 }

// IsOpen returns true if the camera is currently open.
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func formatForChannels(n int) capture.PixelFormat {
	switch n {
	case 1:
		return capture.PixelFormatGray8
	case 3:
		return capture.PixelFormatBGR24
	case 4:
		return capture.PixelFormatBGRA32
	default:
		return capture.PixelFormatUnknown
	}
}
