//go:build linux

package v4l

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"gocv.io/x/gocv"

	"github.com/ayusman/camrelay/internal/capture"
)

var errStreamClosed = errors.New("v4l2 stream closed")

// Source is a capture.FrameSource reading from a V4L2 device.
type Source struct {
	cfg Config

	mu      sync.Mutex
	dev     *device.Device
	cancel  context.CancelFunc
	timer   *time.Timer
	width   int
	height  int
	stride  int
	running bool
}

// NewSource creates a closed Source.
func NewSource(cfg Config) *Source {
	cfg.setDefaults()
	return &Source{cfg: cfg}
}

func (s *Source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	pixFmt := v4l2.PixFormat{
		PixelFormat: v4l2.PixelFmtMJPEG,
		Width:       uint32(s.cfg.Width),
		Height:      uint32(s.cfg.Height),
		Field:       v4l2.FieldNone,
	}
	if s.cfg.Encoding == EncodingYUYV {
		pixFmt.PixelFormat = v4l2.PixelFmtYUYV
	}

	opts := []device.Option{
		device.WithBufferSize(uint32(s.cfg.BufferSize)),
		device.WithFPS(uint32(s.cfg.FPS)),
	}
	if s.cfg.Width > 0 && s.cfg.Height > 0 {
		opts = append(opts, device.WithPixFormat(pixFmt))
	}

	dev, err := device.Open(s.cfg.Device, opts...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", capture.ErrDeviceUnavailable, s.cfg.Device, err)
	}

	actual, err := dev.GetPixFormat()
	if err != nil {
		dev.Close()
		return fmt.Errorf("%w: %s: read format: %v", capture.ErrDeviceUnavailable, s.cfg.Device, err)
	}
	if actual.PixelFormat != pixFmt.PixelFormat {
		dev.Close()
		return fmt.Errorf("%s does not stream %s: %w", s.cfg.Device, s.cfg.Encoding, capture.ErrUnsupportedFormat)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := dev.Start(ctx); err != nil {
		cancel()
		dev.Close()
		return fmt.Errorf("%w: %s: start stream: %v", capture.ErrDeviceUnavailable, s.cfg.Device, err)
	}

	s.dev = dev
	s.cancel = cancel
	s.timer = time.NewTimer(s.cfg.PollTimeout)
	s.width = int(actual.Width)
	s.height = int(actual.Height)
	s.stride = int(actual.BytesPerLine)
	s.running = true
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.timer.Stop()
	s.cancel()
	err := s.dev.Close()
	s.dev = nil
	return err
}

// Pull waits up to PollTimeout for the next buffer from the driver.
func (s *Source) Pull() (*capture.RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, capture.ErrCameraNotOpen
	}

	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
	s.timer.Reset(s.cfg.PollTimeout)

	var data []byte
	select {
	case buf, ok := <-s.dev.GetOutput():
		if !ok {
			return nil, errStreamClosed
		}
		data = buf
	case <-s.timer.C:
		return nil, nil
	}
	if len(data) == 0 {
		return nil, nil
	}

	if s.cfg.Encoding == EncodingYUYV {
		return &capture.RawFrame{
			Data:      data,
			Stride:    s.stride,
			Width:     s.width,
			Height:    s.height,
			Format:    capture.PixelFormatYUYV,
			Timestamp: time.Now(),
		}, nil
	}
	return decodeJPEG(data)
}

func (s *Source) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

func (s *Source) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *Source) Format() capture.PixelFormat {
	if s.cfg.Encoding == EncodingYUYV {
		return capture.PixelFormatYUYV
	}
	return capture.PixelFormatBGR24
}

// decodeJPEG turns one MJPEG buffer into packed BGR.
func decodeJPEG(data []byte) (*capture.RawFrame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode mjpeg frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decode mjpeg frame: empty image (%d bytes)", len(data))
	}
	return &capture.RawFrame{
		Data:      mat.ToBytes(),
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Format:    capture.PixelFormatBGR24,
		Timestamp: time.Now(),
	}, nil
}

// ListDevices probes every /dev/video* node and reports the formats it
// offers. Nodes that cannot be opened are skipped.
func ListDevices() ([]DeviceInfo, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var devices []DeviceInfo
	for _, path := range paths {
		info, err := probe(path)
		if err != nil {
			continue
		}
		devices = append(devices, info)
	}
	return devices, nil
}

func probe(path string) (DeviceInfo, error) {
	dev, err := device.Open(path)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer dev.Close()

	descs, err := dev.GetFormatDescriptions()
	if err != nil {
		return DeviceInfo{}, err
	}

	info := DeviceInfo{Path: path, Name: sysfsName(path)}
	for _, d := range descs {
		info.Formats = append(info.Formats, d.Description)
	}
	return info, nil
}

func sysfsName(path string) string {
	name, err := os.ReadFile(filepath.Join("/sys/class/video4linux", filepath.Base(path), "name"))
	if err != nil {
		return filepath.Base(path)
	}
	return strings.TrimSpace(string(name))
}
