package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"genstudio/internal/daemon"
	"genstudio/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check environment and daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, "Environment")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out, "\nDaemon")
			base, err := ctx.apiBase()
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("API", statusWarn, err.Error(), colorize))
				return nil
			}
			var status daemon.Status
			if err := getJSON(cmd.Context(), base+"/api/status", &status); err != nil {
				fmt.Fprintln(out, renderStatusLine("API", statusWarn, "not running ("+base+")", colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("API", statusOK, base, colorize))
			fmt.Fprintln(out, renderStatusLine("Templates", statusInfo, strconv.Itoa(status.Templates), colorize))
			fmt.Fprintln(out, renderStatusLine("Tracked jobs", statusInfo, strconv.Itoa(status.TrackedJobs), colorize))
			return nil
		},
	}
}
