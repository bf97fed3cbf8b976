package capture

import (
	"fmt"
	"sync"
	"time"
)

// MockSource plays back synthetic frames. It backs the "mock" camera backend
// and the engine tests.
type MockSource struct {
	width   int
	height  int
	format  PixelFormat
	frames  []*RawFrame
	index   int
	loop    bool
	openErr error
	mu      sync.Mutex
	running bool
	pulls   int

	interval time.Duration
	nextAt   time.Time
}

// NewMockSource creates a source that plays back frames in order.
// With loop set it starts over after the last frame; otherwise Pull reports
// "no frame yet" forever once the sequence is exhausted.
func NewMockSource(frames []*RawFrame, loop bool) *MockSource {
	s := &MockSource{
		frames: frames,
		loop:   loop,
	}
	if len(frames) > 0 {
		s.width = frames[0].Width
		s.height = frames[0].Height
		s.format = frames[0].Format
	}
	return s
}

// NewPatternSource creates a looping source of n color-bar frames.
func NewPatternSource(width, height, n int) *MockSource {
	frames := make([]*RawFrame, n)
	for i := range frames {
		frames[i] = ColorBars(width, height, i)
	}
	return NewMockSource(frames, true)
}

// SetFrameInterval paces Pull to one frame per d, like a real device would.
// Zero disables pacing.
func (s *MockSource) SetFrameInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
}

// FailOpen makes the next Open calls fail with err.
func (s *MockSource) FailOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openErr != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, s.openErr)
	}
	s.running = true
	s.index = 0
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *MockSource) Pull() (*RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrCameraNotOpen
	}
	s.pulls++

	if len(s.frames) == 0 {
		return nil, nil
	}
	if s.index >= len(s.frames) {
		if !s.loop {
			return nil, nil
		}
		s.index = 0
	}

	if s.interval > 0 {
		if wait := time.Until(s.nextAt); wait > 0 {
			time.Sleep(wait)
		}
		s.nextAt = time.Now().Add(s.interval)
	}

	frame := *s.frames[s.index]
	s.index++
	frame.Timestamp = time.Now()
	return &frame, nil
}

func (s *MockSource) Width() int          { return s.width }
func (s *MockSource) Height() int         { return s.height }
func (s *MockSource) Format() PixelFormat { return s.format }

// IsOpen returns true between a successful Open and Close.
func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pulls returns the number of Pull calls made while open.
func (s *MockSource) Pulls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls
}

// ColorBars renders eight vertical BGR24 bars, shifted by offset columns so
// consecutive frames differ.
func ColorBars(width, height, offset int) *RawFrame {
	bars := [8][3]byte{
		{255, 255, 255}, // white
		{0, 255, 255},   // yellow
		{255, 255, 0},   // cyan
		{0, 255, 0},     // green
		{255, 0, 255},   // magenta
		{0, 0, 255},     // red
		{255, 0, 0},     // blue
		{0, 0, 0},       // black
	}

	data := make([]byte, BufferSize(width, height, PixelFormatBGR24))
	barWidth := width / len(bars)
	if barWidth == 0 {
		barWidth = 1
	}
	for y := 0; y < height; y++ {
		row := data[y*width*3:]
		for x := 0; x < width; x++ {
			c := bars[((x+offset)/barWidth)%len(bars)]
			copy(row[x*3:x*3+3], c[:])
		}
	}

	return &RawFrame{
		Data:   data,
		Width:  width,
		Height: height,
		Format: PixelFormatBGR24,
	}
}
