package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"genstudio/internal/generate"
	"genstudio/internal/logging"
	"genstudio/internal/workflow"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List available workflow templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := workflow.LoadStore(cfg.Paths.WorkflowsDir, logging.NewNop())
			if err != nil {
				return fmt.Errorf("load workflow templates: %w", err)
			}

			out := cmd.OutOrStdout()
			if store.Len() == 0 {
				fmt.Fprintf(out, "No templates found in %s\n", cfg.Paths.WorkflowsDir)
				return nil
			}

			// Map each template back to the operations that drive it.
			usedBy := make(map[string][]string)
			for _, descriptor := range generate.Descriptors() {
				usedBy[descriptor.Template] = append(usedBy[descriptor.Template], descriptor.Name)
			}

			rows := make([][]string, 0, store.Len())
			for _, name := range store.Names() {
				ops := "-"
				if list := usedBy[name]; len(list) > 0 {
					ops = list[0]
					for _, op := range list[1:] {
						ops += ", " + op
					}
				}
				rows = append(rows, []string{name, ops})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{{title: "Template"}, {title: "Operations"}},
				rows,
			))
			return nil
		},
	}
}
