package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report daemon and capability health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, health)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintf(out, "echopod daemon at %s\n\n", client.address())
			for _, name := range sortedComponents(health) {
				fmt.Fprintln(out, capabilityLine(name, health.Components[name], colorize))
			}
			fmt.Fprintln(out)

			if health.Healthy {
				fmt.Fprintln(out, paint("service healthy", ansiGreen, colorize))
				return nil
			}
			fmt.Fprintln(out, paint("service degraded: fix the capabilities marked down", ansiYellow, colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func sortedComponents(health healthModel) []string {
	names := make([]string, 0, len(health.Components))
	for name := range health.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func capabilityLine(name string, component componentHealthModel, colorize bool) string {
	state, color := "up", ansiGreen
	if !component.Ready {
		state, color = "down", ansiRed
	}
	line := fmt.Sprintf("  %-12s %-4s", name, state)
	if component.Detail != "" {
		line += "  " + component.Detail
	}
	return paint(line, color, colorize)
}

func paint(s, color string, colorize bool) string {
	if !colorize {
		return s
	}
	return color + s + ansiReset
}
