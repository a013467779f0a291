package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show past generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			generations, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(generations) == 0 {
				fmt.Fprintln(out, "No generations recorded")
				return nil
			}

			rows := make([][]string, 0, len(generations))
			for _, gen := range generations {
				artifact := gen.Artifact
				if artifact == "" {
					artifact = "-"
				}
				rows = append(rows, []string{
					strconv.FormatInt(gen.ID, 10),
					gen.Operation,
					gen.State,
					gen.CreatedAt.Local().Format(time.DateTime),
					artifact,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{
					{title: "ID", right: true},
					{title: "Operation"},
					{title: "State"},
					{title: "Started"},
					{title: "Artifact"},
				},
				rows,
			))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show (0 for all)")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	})
	return historyCmd
}
