package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ayusman/camrelay/internal/app"
	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
	"github.com/ayusman/camrelay/internal/tray"
)

const consoleHelp = `Commands:
  1  start capturing
  2  stop capturing
  3  640 x 240
  4  800 x 600
  5  1280 x 1024
  q  quit`

func NewConsoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Drive the camera from numbered stdin commands",
		Long:  "Reads one command per line from stdin and prints a stats line on every heartbeat.\n\n" + consoleHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}

func runConsole(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	printer := &statsPrinter{out: out}
	a, err := app.New(cfg, logger, printer)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(ctx)
	defer stop()

	cam := &persistingCamera{app: a}
	fmt.Fprintln(printer, consoleHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleConsoleCommand(cam, strings.TrimSpace(line), printer); quit {
				return nil
			}
		}
	}
}

// consoleCamera is what console commands act on.
type consoleCamera interface {
	Start()
	Stop()
	SetResolution(width, height int) error
}

func handleConsoleCommand(cam consoleCamera, line string, out io.Writer) (quit bool) {
	switch line {
	case "":
	case "1":
		cam.Start()
	case "2":
		cam.Stop()
	case "3", "4", "5":
		res := tray.Presets[line[0]-'3']
		if err := cam.SetResolution(res.Width, res.Height); err != nil {
			fmt.Fprintln(out, color.RedString("resolution: %v", err))
		}
	case "q", "quit", "exit":
		return true
	default:
		fmt.Fprintf(out, "%s\n%s\n", color.YellowString("unknown command %q", line), consoleHelp)
	}
	return false
}

// statsPrinter is a delivery sink that prints one line per heartbeat. It is
// also the console's writer: every Write is serialized with heartbeat lines.
type statsPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *statsPrinter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *statsPrinter) OnFrame(*capture.Frame) {}

func (p *statsPrinter) OnStats(st delivery.Stats) {
	fmt.Fprintln(p, formatStats(st))
}

func formatStats(st delivery.Stats) string {
	state := color.New(color.Faint).Sprint("stopped")
	if st.Active {
		state = color.New(color.FgGreen).Sprint("active ")
	}

	errs := fmt.Sprintf("errors %d", st.ErrorCount)
	if st.ErrorCount > 0 {
		errs = color.RedString(errs)
	}

	line := fmt.Sprintf("%s %s  frames %d  %s",
		state, color.CyanString("%dx%d", st.Resolution.Width, st.Resolution.Height), st.FrameCount, errs)
	if st.Dropped > 0 {
		line += color.YellowString("  dropped %d", st.Dropped)
	}
	return line
}
