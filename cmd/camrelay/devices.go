package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ayusman/camrelay/internal/capture/v4l"
)

func NewDevicesCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := v4l.ListDevices()
			if err != nil {
				return err
			}
			return printDevices(os.Stdout, devices, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func printDevices(w io.Writer, devices []v4l.DeviceInfo, output string) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Fprintln(w, "No capture devices found")
		return nil
	}

	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = color.New(color.Faint).Sprint("(unnamed)")
		}
		fmt.Fprintf(w, "%s  %s\n", color.CyanString(d.Path), name)
		if len(d.Formats) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(d.Formats, ", "))
		}
	}
	return nil
}
