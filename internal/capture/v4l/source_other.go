//go:build !linux

package v4l

import "github.com/ayusman/camrelay/internal/capture"

// Source is unavailable off linux; Open always fails.
type Source struct {
	cfg Config
}

func NewSource(cfg Config) *Source {
	cfg.setDefaults()
	return &Source{cfg: cfg}
}

func (s *Source) Open() error                      { return ErrUnsupportedPlatform }
func (s *Source) Close() error                     { return nil }
func (s *Source) Pull() (*capture.RawFrame, error) { return nil, capture.ErrCameraNotOpen }
func (s *Source) Width() int                       { return 0 }
func (s *Source) Height() int                      { return 0 }
func (s *Source) Format() capture.PixelFormat      { return capture.PixelFormatUnknown }

func ListDevices() ([]DeviceInfo, error) {
	return nil, ErrUnsupportedPlatform
}
