package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/camrelay/internal/app"
	"github.com/ayusman/camrelay/internal/config"
)

type ServeOptions struct {
	Addr      string
	StaticDir string
	Start     bool
}

func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture engine behind the HTTP API",
		Example: `  camrelay serve
  camrelay serve --addr :9000 --start
  CAMRELAY_CAMERA_BACKEND=mock camrelay serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Addr, "addr", "", "Listen address (overrides server.addr)")
	flags.StringVar(&opts.StaticDir, "web", "", "Directory of static files for the preview page")
	flags.BoolVar(&opts.Start, "start", false, "Start capturing immediately")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.Start {
		a.Engine().Start()
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	staticDir := opts.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Info("Serving static files", "dir", staticDir)
	}

	return a.Server(staticDir).ListenAndServe(ctx, addr)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and the camrelay data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
