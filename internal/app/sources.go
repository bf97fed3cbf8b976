package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/capture/cv"
	"github.com/ayusman/camrelay/internal/capture/v4l"
	"github.com/ayusman/camrelay/internal/config"
)

// Mock backend geometry.
const (
	mockWidth  = 640
	mockHeight = 480
	mockFrames = 8
)

// SourceFactory returns a factory for the configured camera backend. Every
// run gets a fresh source so a device is never shared between runs.
func SourceFactory(cfg config.CameraConfig) (capture.SourceFactory, error) {
	switch cfg.Backend {
	case config.BackendGoCV:
		camCfg := cv.CameraConfig{
			Device: cfg.Device,
			Width:  cfg.Width,
			Height: cfg.Height,
			FPS:    cfg.FPS,
		}
		return func() capture.FrameSource { return cv.NewCamera(camCfg) }, nil

	case config.BackendV4L2:
		enc, err := v4l.ParseEncoding(cfg.Encoding)
		if err != nil {
			return nil, err
		}
		device := cfg.Device
		if n, err := strconv.Atoi(device); err == nil {
			device = fmt.Sprintf("/dev/video%d", n)
		}
		v4lCfg := v4l.Config{
			Device:   device,
			Width:    cfg.Width,
			Height:   cfg.Height,
			Encoding: enc,
			FPS:      cfg.FPS,
		}
		return func() capture.FrameSource { return v4l.NewSource(v4lCfg) }, nil

	case config.BackendMock:
		fps := cfg.FPS
		if fps <= 0 {
			fps = cv.DefaultFPS
		}
		interval := time.Second / time.Duration(fps)
		return func() capture.FrameSource {
			src := capture.NewPatternSource(mockWidth, mockHeight, mockFrames)
			src.SetFrameInterval(interval)
			return src
		}, nil
	}

	return nil, fmt.Errorf("unknown camera backend %q", cfg.Backend)
}

// ConverterFactory returns the frame converter for the configured backend.
// Real devices go through OpenCV; the mock backend uses the pure-Go scaler
// so it runs without native libraries.
func ConverterFactory(cfg config.CameraConfig) capture.ConverterFactory {
	if cfg.Backend == config.BackendMock {
		return func() capture.FrameConverter { return capture.NewScaleConverter() }
	}
	return func() capture.FrameConverter { return cv.NewConverter() }
}
