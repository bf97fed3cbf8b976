package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ayusman/camrelay/internal/store"
)

type RunsOptions struct {
	Limit  int
	Output string
}

func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the capture run history",
		Example: `  camrelay runs
  camrelay runs --limit 5 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			s, err := store.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.Runs().List(opts.Limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			return printRuns(os.Stdout, runs, opts.Output)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	flags.StringVarP(&opts.Output, "output", "o", "text", "Output format (json or text)")

	return cmd
}

type tableColumn struct {
	Header string
	Width  int
}

func printRuns(w io.Writer, runs []*store.Run, output string) error {
	if output == "json" {
		if runs == nil {
			runs = []*store.Run{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	columns := []tableColumn{
		{Header: "ID"}, {Header: "STARTED"}, {Header: "DURATION"},
		{Header: "SIZE"}, {Header: "FRAMES"}, {Header: "ERRORS"}, {Header: "STATUS"},
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		duration := "-"
		if r.StoppedAt != nil {
			duration = r.StoppedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		rows[i] = []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			duration,
			r.Resolution.String(),
			fmt.Sprint(r.Frames),
			fmt.Sprint(r.Errors),
			string(r.Status),
		}
	}

	// Calculate column widths based on header and data
	for i := range columns {
		columns[i].Width = len(columns[i].Header)
		for _, row := range rows {
			if len(row[i]) > columns[i].Width {
				columns[i].Width = len(row[i])
			}
		}
	}

	var header, separator []string
	for _, col := range columns {
		header = append(header, fmt.Sprintf("%-*s", col.Width, col.Header))
		separator = append(separator, strings.Repeat("-", col.Width))
	}
	fmt.Fprintln(w, strings.Join(header, " "))
	fmt.Fprintln(w, strings.Join(separator, " "))

	last := len(columns) - 1
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, value := range row {
			parts[i] = fmt.Sprintf("%-*s", columns[i].Width, value)
		}
		parts[last] = statusColor(store.RunStatus(row[last])).Sprint(row[last])
		fmt.Fprintln(w, strings.Join(parts, " "))
	}
	return nil
}

func statusColor(s store.RunStatus) *color.Color {
	switch s {
	case store.RunStatusRunning:
		return color.New(color.FgCyan)
	case store.RunStatusStopped:
		return color.New(color.FgGreen)
	case store.RunStatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
