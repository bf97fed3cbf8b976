package engine

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tracker counts sources across runs so tests can check that capture loops
// never overlap.
type tracker struct {
	built   atomic.Int32
	opened  atomic.Int32
	live    atomic.Int32
	maxLive atomic.Int32
}

func (t *tracker) open() {
	t.opened.Add(1)
	n := t.live.Add(1)
	for {
		m := t.maxLive.Load()
		if n <= m || t.maxLive.CompareAndSwap(m, n) {
			return
		}
	}
}

func (t *tracker) close() {
	t.live.Add(-1)
}

// fakeSource hands out a fixed BGR24 frame. pull, when set, decides what the
// n-th Pull (counting from 0) returns.
type fakeSource struct {
	tr      *tracker
	raw     *capture.RawFrame
	openErr error
	pull    func(n int) (*capture.RawFrame, error)

	mu     sync.Mutex
	n      int
	isOpen bool
}

func newFakeSource(tr *tracker) *fakeSource {
	return &fakeSource{
		tr:  tr,
		raw: capture.ColorBars(16, 8, 0),
	}
}

func (s *fakeSource) Open() error {
	if s.openErr != nil {
		return s.openErr
	}
	s.mu.Lock()
	s.isOpen = true
	s.mu.Unlock()
	if s.tr != nil {
		s.tr.open()
	}
	return nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	wasOpen := s.isOpen
	s.isOpen = false
	s.mu.Unlock()
	if wasOpen && s.tr != nil {
		s.tr.close()
	}
	return nil
}

func (s *fakeSource) Pull() (*capture.RawFrame, error) {
	s.mu.Lock()
	n := s.n
	s.n++
	s.mu.Unlock()

	if s.pull != nil {
		return s.pull(n)
	}
	return s.raw, nil
}

func (s *fakeSource) Width() int                  { return s.raw.Width }
func (s *fakeSource) Height() int                 { return s.raw.Height }
func (s *fakeSource) Format() capture.PixelFormat { return s.raw.Format }

func (s *fakeSource) pulls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *fakeSource) open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

// recordingSink keeps everything delivered to it.
type recordingSink struct {
	mu     sync.Mutex
	frames []*capture.Frame
	stats  []delivery.Stats
}

func (s *recordingSink) OnFrame(f *capture.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The forwarder recycles buffers after delivery.
	s.frames = append(s.frames, f.Clone())
}

func (s *recordingSink) OnStats(st delivery.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, st)
}

func (s *recordingSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSink) allFrames() []*capture.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*capture.Frame(nil), s.frames...)
}

func (s *recordingSink) allStats() []delivery.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery.Stats(nil), s.stats...)
}

func (s *recordingSink) lastStats() (delivery.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stats) == 0 {
		return delivery.Stats{}, false
	}
	return s.stats[len(s.stats)-1], true
}

// sizeConverter records the target size of every conversion.
type sizeConverter struct {
	inner capture.FrameConverter
	mu    *sync.Mutex
	sizes *[]capture.Resolution
}

func (c *sizeConverter) Convert(src *capture.RawFrame, dst []byte, w, h int, f capture.PixelFormat) error {
	c.mu.Lock()
	*c.sizes = append(*c.sizes, capture.Resolution{Width: w, Height: h})
	c.mu.Unlock()
	return c.inner.Convert(src, dst, w, h, f)
}

func (c *sizeConverter) Close() error { return c.inner.Close() }

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	if !cfg.Resolution.Valid() {
		cfg.Resolution = capture.Resolution{Width: 32, Height: 16}
	}
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	e := newTestEngine(t, Config{
		Source:     func() capture.FrameSource { return newFakeSource(nil) },
		Resolution: capture.Resolution{},
	})

	assert.Equal(t, StateStopped, e.State())
	assert.False(t, e.IsRunning())
	assert.Equal(t, capture.Resolution{Width: DefaultWidth, Height: DefaultHeight}, e.Resolution())
	assert.Zero(t, e.FrameCount())
	assert.Zero(t, e.ErrorCount())
}

func TestEngine_StartStop(t *testing.T) {
	tr := &tracker{}
	var src atomic.Pointer[fakeSource]
	sink := &recordingSink{}

	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(tr)
			src.Store(s)
			return s
		},
		Sink:         sink,
		EmitInterval: time.Millisecond,
	})

	e.Start()
	require.Eventually(t, e.IsRunning, waitFor, tick)
	require.Eventually(t, func() bool { return e.FrameCount() > 10 }, waitFor, tick)
	require.Eventually(t, func() bool { return sink.frameCount() > 0 }, waitFor, tick)

	e.Stop()
	require.Eventually(t, func() bool { return e.State() == StateStopped }, waitFor, tick)
	require.Eventually(t, func() bool { return tr.live.Load() == 0 }, waitFor, tick)

	assert.False(t, src.Load().open(), "source should be closed when the run ends")
	assert.Equal(t, int32(1), tr.opened.Load())
}

func TestEngine_FramesAreBGRAAtConfiguredSize(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, Config{
		Source:       func() capture.FrameSource { return newFakeSource(nil) },
		Sink:         sink,
		Resolution:   capture.Resolution{Width: 40, Height: 20},
		EmitInterval: time.Millisecond,
	})

	e.Start()
	require.Eventually(t, func() bool { return sink.frameCount() > 0 }, waitFor, tick)

	f := sink.allFrames()[0]
	assert.Equal(t, 40, f.Width)
	assert.Equal(t, 20, f.Height)
	assert.Equal(t, capture.PixelFormatBGRA32, f.Format)
	assert.Len(t, f.Data, 40*20*4)
	assert.NotZero(t, f.Seq)
}

func TestEngine_StartIsIdempotent(t *testing.T) {
	tr := &tracker{}
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			tr.built.Add(1)
			return newFakeSource(tr)
		},
	})

	e.Start()
	e.Start()
	e.Start()
	require.Eventually(t, e.IsRunning, waitFor, tick)

	// Give the supervisor time to chew through the queue.
	require.Eventually(t, func() bool { return e.queue.Len() == 0 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), tr.built.Load())
	assert.Equal(t, int32(1), tr.maxLive.Load())
}

func TestEngine_StopWhenStoppedIsNoop(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, Config{
		Source:            func() capture.FrameSource { return newFakeSource(nil) },
		Sink:              sink,
		HeartbeatInterval: 5 * time.Millisecond,
	})

	e.Stop()
	e.Stop()

	require.Eventually(t, func() bool { return len(sink.allStats()) >= 3 }, waitFor, tick)
	assert.Equal(t, StateStopped, e.State())
	for _, st := range sink.allStats() {
		assert.False(t, st.Active)
	}
}

func TestEngine_HeartbeatWhileIdle(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	sink := &recordingSink{}

	newTestEngine(t, Config{
		Source: func() capture.FrameSource { return newFakeSource(nil) },
		Sink:   sink,
		Clock:  fc,
	})

	// One heartbeat is published as soon as the supervisor starts.
	require.Eventually(t, func() bool { return len(sink.allStats()) == 1 }, waitFor, tick)

	for i := 2; i <= 4; i++ {
		require.Eventually(t, fc.HasWaiters, waitFor, tick)
		fc.Step(DefaultHeartbeatInterval)
		want := i
		require.Eventually(t, func() bool { return len(sink.allStats()) >= want }, waitFor, tick)
	}

	for _, st := range sink.allStats() {
		assert.False(t, st.Active)
		assert.Zero(t, st.FrameCount)
		assert.Zero(t, st.ErrorCount)
	}
}

func TestEngine_OpenFailure(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			s.openErr = capture.ErrDeviceUnavailable
			return s
		},
		Sink:              sink,
		HeartbeatInterval: 5 * time.Millisecond,
	})

	e.Start()

	require.Eventually(t, func() bool {
		st, ok := sink.lastStats()
		return ok && st.RunID != "" && !st.Active
	}, waitFor, tick)

	assert.Equal(t, StateStopped, e.State())
	assert.Zero(t, e.FrameCount())
	assert.Zero(t, e.ErrorCount(), "a failed open is not a frame error")
	assert.Zero(t, sink.frameCount())

	// A later Start tries again.
	e.Start()
	require.Eventually(t, func() bool {
		return e.queue.Len() == 0 && e.State() == StateStopped
	}, waitFor, tick)
	assert.Zero(t, e.ErrorCount())
}

func TestEngine_DecodeAndConvertErrorsAreCounted(t *testing.T) {
	bad := &capture.RawFrame{Width: 16, Height: 8, Format: capture.PixelFormatBGR24}
	good := capture.ColorBars(16, 8, 0)

	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			s.pull = func(n int) (*capture.RawFrame, error) {
				switch {
				case n >= 30:
					return nil, nil
				case n%3 == 0:
					return nil, errors.New("corrupt frame")
				case n%3 == 1:
					return bad, nil // empty buffer fails conversion
				default:
					return good, nil
				}
			}
			return s
		},
	})

	e.Start()
	require.Eventually(t, func() bool {
		return e.FrameCount()+e.ErrorCount() == 30
	}, waitFor, tick)

	assert.Equal(t, uint32(10), e.FrameCount())
	assert.Equal(t, uint32(20), e.ErrorCount())
}

func TestEngine_MissesAreNotCounted(t *testing.T) {
	var src atomic.Pointer[fakeSource]
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			s.pull = func(int) (*capture.RawFrame, error) { return nil, nil }
			src.Store(s)
			return s
		},
	})

	e.Start()
	require.Eventually(t, func() bool { s := src.Load(); return s != nil && s.pulls() > 100 }, waitFor, tick)

	assert.Zero(t, e.FrameCount())
	assert.Zero(t, e.ErrorCount())
}

func TestEngine_CountersResetOnStart(t *testing.T) {
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			s.pull = func(n int) (*capture.RawFrame, error) {
				if n < 5 {
					return nil, errors.New("corrupt frame")
				}
				return nil, nil
			}
			return s
		},
	})

	e.Start()
	require.Eventually(t, func() bool { return e.ErrorCount() == 5 }, waitFor, tick)
	firstRun := e.Stats().RunID

	e.Stop()
	require.Eventually(t, func() bool { return e.State() == StateStopped }, waitFor, tick)
	assert.Equal(t, uint32(5), e.ErrorCount(), "counters survive a stop")

	e.Start()
	require.Eventually(t, e.IsRunning, waitFor, tick)
	require.Eventually(t, func() bool { return e.ErrorCount() == 5 }, waitFor, tick)

	st := e.Stats()
	assert.NotEmpty(t, st.RunID)
	assert.NotEqual(t, firstRun, st.RunID)
}

func TestEngine_RateGate(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	sink := &recordingSink{}

	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			raw := s.raw
			s.pull = func(n int) (*capture.RawFrame, error) {
				if n >= 100 {
					return nil, nil
				}
				if n > 0 && n%20 == 0 {
					fc.Step(DefaultEmitInterval)
				}
				raw.Timestamp = fc.Now()
				return raw, nil
			}
			return s
		},
		Sink:      sink,
		QueueSize: 64,
		Clock:     fc,
	})

	e.Start()
	require.Eventually(t, func() bool { return e.FrameCount() == 100 }, waitFor, tick)

	require.NoError(t, e.Close())

	frames := sink.allFrames()
	require.Len(t, frames, 5)
	assert.Equal(t, uint64(1), frames[0].Seq)
	for i := 1; i < len(frames); i++ {
		assert.Equal(t, uint64(20*i+1), frames[i].Seq)
		assert.GreaterOrEqual(t, frames[i].Timestamp.Sub(frames[i-1].Timestamp), DefaultEmitInterval)
	}
}

func TestEngine_EmitCadenceBound(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	sink := &recordingSink{}

	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			raw := s.raw
			s.pull = func(n int) (*capture.RawFrame, error) {
				if n >= 1000 {
					return nil, nil
				}
				fc.Step(time.Millisecond)
				return raw, nil
			}
			return s
		},
		Sink:      sink,
		QueueSize: 128,
		Clock:     fc,
	})

	e.Start()
	require.Eventually(t, func() bool { return e.FrameCount() == 1000 }, waitFor, tick)
	require.NoError(t, e.Close())

	// 1000 frames over one second of fake time, one slot per 30ms.
	n := sink.frameCount()
	assert.LessOrEqual(t, n, 34)
	assert.GreaterOrEqual(t, n, 32)
}

func TestEngine_SetResolutionValidates(t *testing.T) {
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource { return newFakeSource(nil) },
	})

	for _, res := range [][2]int{{0, 480}, {640, 0}, {-1, -1}} {
		err := e.SetResolution(res[0], res[1])
		assert.ErrorIs(t, err, ErrInvalidResolution)
	}
	assert.Equal(t, capture.Resolution{Width: 32, Height: 16}, e.Resolution())
}

func TestEngine_SetResolutionEnqueuesRestart(t *testing.T) {
	for _, state := range []State{StateStopped, StateActive} {
		t.Run(state.String(), func(t *testing.T) {
			e, err := newEngine(Config{
				Source: func() capture.FrameSource { return newFakeSource(nil) },
				Logger: testLogger(),
			})
			require.NoError(t, err)
			t.Cleanup(e.forwarder.Close)
			e.state.Store(int32(state))

			require.NoError(t, e.SetResolution(800, 600))

			assert.Equal(t, []Command{CommandStop, CommandStart}, e.queue.TryPopAll())
			assert.Equal(t, capture.Resolution{Width: 800, Height: 600}, e.Resolution())
		})
	}
}

func TestEngine_SetResolutionWhileIdleStartsCapture(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource { return newFakeSource(nil) },
		Sink:   sink,
	})

	require.NoError(t, e.SetResolution(40, 20))

	require.Eventually(t, func() bool { return e.IsRunning() && sink.frameCount() > 0 }, waitFor, tick)
	assert.Equal(t, capture.Resolution{Width: 40, Height: 20}, e.Stats().Resolution)
}

// A Start that the supervisor is still applying when SetResolution runs must
// not leave a run at the old size behind.
func TestEngine_SetResolutionRacingPendingStart(t *testing.T) {
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource { return newFakeSource(nil) },
	})

	// Hold the resolution lock so the supervisor stalls inside applyStart,
	// after it has decided to start but before it snapshots the size.
	e.mu.Lock()
	e.Start()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, e.IsRunning())

	done := make(chan error, 1)
	go func() { done <- e.SetResolution(800, 600) }()
	time.Sleep(20 * time.Millisecond)
	e.mu.Unlock()

	require.NoError(t, <-done)
	require.Eventually(t, func() bool {
		st := e.Stats()
		return st.Active && st.Resolution == capture.Resolution{Width: 800, Height: 600} && e.queue.Len() == 0
	}, waitFor, tick)

	e.mu.Lock()
	runRes := e.runRes
	e.mu.Unlock()
	assert.Equal(t, capture.Resolution{Width: 800, Height: 600}, runRes)
}

func TestEngine_ResolutionChangeRestartsRun(t *testing.T) {
	tr := &tracker{}
	var mu sync.Mutex
	var runs []*[]capture.Resolution

	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource { return newFakeSource(tr) },
		Converter: func() capture.FrameConverter {
			sizes := &[]capture.Resolution{}
			mu.Lock()
			runs = append(runs, sizes)
			mu.Unlock()
			return &sizeConverter{inner: capture.NewScaleConverter(), mu: &mu, sizes: sizes}
		},
		Resolution:   capture.Resolution{Width: 64, Height: 48},
		EmitInterval: time.Millisecond,
	})

	e.Start()
	require.Eventually(t, func() bool { return e.FrameCount() > 5 }, waitFor, tick)
	firstRun := e.Stats().RunID

	require.NoError(t, e.SetResolution(80, 60))

	require.Eventually(t, func() bool {
		st := e.Stats()
		return st.Active && st.RunID != firstRun && st.FrameCount > 5
	}, waitFor, tick)

	st := e.Stats()
	assert.Equal(t, capture.Resolution{Width: 80, Height: 60}, st.Resolution)
	assert.Equal(t, int32(1), tr.maxLive.Load(), "capture loops must never overlap")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, runs, 2)
	for _, size := range *runs[0] {
		assert.Equal(t, capture.Resolution{Width: 64, Height: 48}, size)
	}
	for _, size := range *runs[1] {
		assert.Equal(t, capture.Resolution{Width: 80, Height: 60}, size)
	}
}

func TestEngine_AtMostOneLoopUnderChurn(t *testing.T) {
	tr := &tracker{}
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource { return newFakeSource(tr) },
	})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				e.Start()
				if i%7 == 0 {
					_ = e.SetResolution(32+i, 16+i)
				}
				e.Stop()
			}
		}()
	}
	wg.Wait()

	e.Start()
	require.Eventually(t, func() bool { return e.queue.Len() == 0 && e.IsRunning() }, waitFor, tick)
	require.NoError(t, e.Close())

	assert.Equal(t, int32(1), tr.maxLive.Load())
	assert.Equal(t, int32(0), tr.live.Load())
}

func TestEngine_CloseDuringPendingStop(t *testing.T) {
	release := make(chan struct{})
	var src atomic.Pointer[fakeSource]

	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			s.pull = func(n int) (*capture.RawFrame, error) {
				if n == 3 {
					<-release
				}
				return nil, nil
			}
			src.Store(s)
			return s
		},
	})

	e.Start()
	require.Eventually(t, func() bool { s := src.Load(); return s != nil && s.pulls() > 3 }, waitFor, tick)

	// The supervisor is now waiting on a loop stuck inside Pull.
	e.Stop()
	require.Eventually(t, func() bool { return e.State() == StateStopped }, waitFor, tick)

	time.AfterFunc(20*time.Millisecond, func() { close(release) })

	closed := make(chan struct{})
	go func() {
		_ = e.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close did not return while a Stop was pending")
	}

	assert.Equal(t, StateDestroying, e.State())
	assert.False(t, src.Load().open(), "capture loop should have released the device")
}

func TestEngine_CloseAbandonsStuckLoop(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var src atomic.Pointer[fakeSource]
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			s := newFakeSource(nil)
			s.pull = func(n int) (*capture.RawFrame, error) {
				if n == 0 {
					<-release
				}
				return nil, nil
			}
			src.Store(s)
			return s
		},
		TeardownTimeout: 20 * time.Millisecond,
	})

	e.Start()
	require.Eventually(t, func() bool { s := src.Load(); return s != nil && s.pulls() == 1 }, waitFor, tick)

	start := time.Now()
	require.NoError(t, e.Close())
	assert.Less(t, time.Since(start), waitFor)
}

func TestEngine_CommandsAfterClose(t *testing.T) {
	tr := &tracker{}
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource {
			tr.built.Add(1)
			return newFakeSource(tr)
		},
	})

	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "Close is idempotent")

	e.Start()
	e.Stop()
	assert.ErrorIs(t, e.SetResolution(640, 480), ErrClosed)

	assert.Equal(t, StateDestroying, e.State())
	assert.Zero(t, e.queue.Len())
	assert.Zero(t, tr.built.Load())
}

func TestEngine_CloseStopsActiveRun(t *testing.T) {
	tr := &tracker{}
	sink := &recordingSink{}
	e := newTestEngine(t, Config{
		Source: func() capture.FrameSource { return newFakeSource(tr) },
		Sink:   sink,
	})

	e.Start()
	require.Eventually(t, e.IsRunning, waitFor, tick)

	require.NoError(t, e.Close())
	assert.Equal(t, int32(0), tr.live.Load())

	st, ok := sink.lastStats()
	require.True(t, ok, "final heartbeat should be flushed")
	assert.False(t, st.Active)
}

func TestEngine_IndependentInstances(t *testing.T) {
	a := newTestEngine(t, Config{
		Source:     func() capture.FrameSource { return newFakeSource(nil) },
		Resolution: capture.Resolution{Width: 64, Height: 48},
	})
	b := newTestEngine(t, Config{
		Source:     func() capture.FrameSource { return newFakeSource(nil) },
		Resolution: capture.Resolution{Width: 32, Height: 24},
	})

	a.Start()
	require.Eventually(t, a.IsRunning, waitFor, tick)

	assert.False(t, b.IsRunning())
	assert.Zero(t, b.FrameCount())

	require.NoError(t, b.SetResolution(100, 50))
	assert.Equal(t, capture.Resolution{Width: 64, Height: 48}, a.Resolution())

	require.NoError(t, b.Close())
	assert.True(t, a.IsRunning())
}

func TestEngine_MockSourceBackend(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, Config{
		Source:       func() capture.FrameSource { return capture.NewPatternSource(64, 48, 4) },
		Sink:         sink,
		Resolution:   capture.Resolution{Width: 32, Height: 24},
		EmitInterval: time.Millisecond,
	})

	e.Start()
	require.Eventually(t, func() bool { return sink.frameCount() >= 3 }, waitFor, tick)

	frames := sink.allFrames()
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i].Seq, frames[i-1].Seq)
	}
}

func TestRateGate(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	g := newRateGate(fc, 30*time.Millisecond)

	assert.True(t, g.Allow(), "first frame passes")
	assert.False(t, g.Allow())

	fc.Step(29 * time.Millisecond)
	assert.False(t, g.Allow())

	fc.Step(time.Millisecond)
	assert.True(t, g.Allow())
	assert.False(t, g.Allow())

	// A long gap does not bank extra slots.
	fc.Step(time.Second)
	assert.True(t, g.Allow())
	assert.False(t, g.Allow())
}
