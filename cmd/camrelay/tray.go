package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ayusman/camrelay/internal/app"
	"github.com/ayusman/camrelay/internal/tray"
)

func NewTrayCommand() *cobra.Command {
	var noServer bool

	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Control the camera from the system tray",
		Long: `Shows a tray menu to start and stop capturing and to pick a resolution.
The HTTP API keeps running in the background unless --no-server is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTray(cmd.Context(), noServer)
		},
	}

	cmd.Flags().BoolVar(&noServer, "no-server", false, "Do not start the HTTP API")
	return cmd
}

func runTray(ctx context.Context, noServer bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	cam := &persistingCamera{}
	t := tray.New(cam, logger)
	a, err := app.New(cfg, logger, t)
	if err != nil {
		return err
	}
	defer a.Close()
	cam.app = a

	ctx, stop := signalContext(ctx)
	defer stop()
	t.OnQuit(stop)

	if !noServer {
		go func() {
			if err := a.Server(findWebDir()).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	// systray needs the main goroutine.
	t.Run()
	return nil
}

// persistingCamera routes resolution changes through the app so they are
// remembered across restarts.
type persistingCamera struct {
	app *app.App
}

func (c *persistingCamera) Start() { c.app.Engine().Start() }
func (c *persistingCamera) Stop()  { c.app.Engine().Stop() }

func (c *persistingCamera) SetResolution(width, height int) error {
	return c.app.SetResolution(width, height)
}
