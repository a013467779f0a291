package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/daemon"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs tracked by the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.apiBase()
			if err != nil {
				return err
			}

			var payload struct {
				Jobs []daemon.JobView `json:"jobs"`
			}
			if err := getJSON(cmd.Context(), base+"/api/jobs", &payload); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(payload.Jobs) == 0 {
				fmt.Fprintln(out, "No jobs tracked by the daemon")
				return nil
			}

			rows := make([][]string, 0, len(payload.Jobs))
			for _, job := range payload.Jobs {
				rows = append(rows, []string{
					job.ID,
					job.Operation,
					string(job.State),
					job.Message,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{
					{title: "ID"},
					{title: "Operation"},
					{title: "State"},
					{title: "Last update"},
				},
				rows,
			))
			return nil
		},
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one tracked job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.apiBase()
			if err != nil {
				return err
			}
			var view daemon.JobView
			if err := getJSON(cmd.Context(), base+"/api/jobs/"+args[0], &view); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			kind := statusInfo
			switch string(view.State) {
			case "finished":
				kind = statusOK
			case "failed", "timed_out":
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("State", kind, string(view.State), colorize))
			fmt.Fprintln(out, renderStatusLine("Operation", statusInfo, view.Operation, colorize))
			fmt.Fprintln(out, renderStatusLine("Template", statusInfo, view.Template, colorize))
			fmt.Fprintln(out, renderStatusLine("Server", statusInfo, view.Server, colorize))
			if view.Message != "" {
				fmt.Fprintln(out, renderStatusLine("Message", statusInfo, view.Message, colorize))
			}
			if view.Artifact != "" {
				fmt.Fprintln(out, renderStatusLine("Artifact", statusOK, view.Artifact, colorize))
			}
			return nil
		},
	})
	return jobsCmd
}

// getJSON fetches a daemon API endpoint and decodes the response.
func getJSON(ctx context.Context, url string, target any) error {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w (is genstudiod running?)", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found: %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}
