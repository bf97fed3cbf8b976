// Package app wires camrelay together: it opens the run store, picks a
// camera backend, assembles the delivery sinks and owns the capture engine.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/capture/cv"
	"github.com/ayusman/camrelay/internal/config"
	"github.com/ayusman/camrelay/internal/delivery"
	"github.com/ayusman/camrelay/internal/engine"
	"github.com/ayusman/camrelay/internal/server"
	"github.com/ayusman/camrelay/internal/store"
)

// App is one running camrelay instance.
type App struct {
	config  *config.Config
	logger  *slog.Logger
	store   *store.Store
	preview *server.Preview
	engine  *engine.Engine
}

// New builds an App from cfg. Sinks in extra receive frames and heartbeats
// next to the built-in preview, run recorder and optional snapshot file.
func New(cfg *config.Config, logger *slog.Logger, extra ...delivery.Sink) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if n, err := st.Runs().MarkInterrupted(); err != nil {
		logger.Warn("Failed to close out previous runs", "error", err)
	} else if n > 0 {
		logger.Info("Marked runs from a previous process as interrupted", "count", n)
	}

	res := capture.Resolution{Width: cfg.Camera.Width, Height: cfg.Camera.Height}
	if saved, err := st.Settings().Resolution(); err == nil {
		res = saved
		logger.Debug("Restored saved resolution", "width", res.Width, "height", res.Height)
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Warn("Failed to read saved resolution", "error", err)
	}

	source, err := SourceFactory(cfg.Camera)
	if err != nil {
		st.Close()
		return nil, err
	}

	preview := server.NewPreview()
	sinks := delivery.Multi{preview, store.NewRecorder(st, logger)}
	if cfg.Snapshot.Path != "" {
		sinks = append(sinks, cv.NewSnapshotSink(cfg.Snapshot.Path, cfg.Snapshot.Interval, nil, logger))
		logger.Info("Writing snapshots", "path", cfg.Snapshot.Path, "interval", cfg.Snapshot.Interval)
	}
	sinks = append(sinks, extra...)

	eng, err := engine.New(engine.Config{
		Source:            source,
		Converter:         ConverterFactory(cfg.Camera),
		Sink:              sinks,
		QueueSize:         cfg.Delivery.QueueSize,
		Resolution:        res,
		HeartbeatInterval: cfg.Engine.Heartbeat,
		EmitInterval:      cfg.Engine.EmitInterval,
		TeardownTimeout:   cfg.Engine.TeardownTimeout,
		Logger:            logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		config:  cfg,
		logger:  logger,
		store:   st,
		preview: preview,
		engine:  eng,
	}, nil
}

// Server builds the HTTP server for this instance.
func (a *App) Server(staticDir string) *server.Server {
	return server.New(server.Config{
		StaticDir: staticDir,
		Store:     a.store,
		Camera:    a.engine,
		Preview:   a.preview,
		Encoder:   cv.JPEGEncoder{},
		Logger:    a.logger,
	})
}

// Engine returns the capture engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Store returns the run store.
func (a *App) Store() *store.Store {
	return a.store
}

// Preview returns the preview sink.
func (a *App) Preview() *server.Preview {
	return a.preview
}

// SetResolution changes the engine resolution and remembers it for the next
// process.
func (a *App) SetResolution(width, height int) error {
	if err := a.engine.SetResolution(width, height); err != nil {
		return err
	}
	return a.store.Settings().SetResolution(capture.Resolution{Width: width, Height: height})
}

// Close stops the engine, which flushes the final heartbeat to the
// recorder, and then closes the store.
func (a *App) Close() error {
	if err := a.engine.Close(); err != nil {
		a.logger.Warn("Error closing engine", "error", err)
	}
	return a.store.Close()
}
