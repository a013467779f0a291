package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/generate"
	"genstudio/internal/jobs"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Run a generation operation",
	}
	for _, descriptor := range generate.Descriptors() {
		generateCmd.AddCommand(newOperationCommand(ctx, descriptor))
	}
	return generateCmd
}

// newOperationCommand builds one subcommand from an operation descriptor so
// the CLI surface always matches the operations the service exposes.
func newOperationCommand(ctx *commandContext, descriptor generate.Descriptor) *cobra.Command {
	var (
		prompt    string
		direction string
		pixels    int
		strength  float64
		media     = make(map[string]*string, len(descriptor.Media))
	)

	cmd := &cobra.Command{
		Use:   descriptor.Name,
		Short: descriptor.Summary,
		RunE: func(cmd *cobra.Command, args []string) error {
			generator, err := ctx.ensureGenerator()
			if err != nil {
				return err
			}

			params := generate.Params{
				Prompt:    prompt,
				Direction: strings.ToLower(strings.TrimSpace(direction)),
				Pixels:    pixels,
				Strength:  strength,
				Media:     make(map[string]string, len(media)),
			}
			for slot, value := range media {
				params.Media[slot] = *value
			}

			updates, err := generator.Dispatch(cmd.Context(), descriptor.Name, params)
			if err != nil {
				return err
			}
			return renderProgress(cmd.OutOrStdout(), updates)
		},
	}

	if descriptor.Prompt {
		cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Text prompt")
	}
	for _, slot := range descriptor.Media {
		value := new(string)
		media[slot] = value
		cmd.Flags().StringVar(value, slot, "", "Path to the "+slot+" file")
		_ = cmd.MarkFlagRequired(slot)
	}
	for _, extra := range descriptor.Extra {
		switch extra {
		case "direction":
			cmd.Flags().StringVar(&direction, "direction", "", "Outpaint direction: left, right, up, or down")
			_ = cmd.MarkFlagRequired("direction")
		case "pixels":
			cmd.Flags().IntVar(&pixels, "pixels", 128, "Pixels to extend the frame by")
		case "strength":
			cmd.Flags().Float64Var(&strength, "strength", 0.8, "Denoise strength")
		}
	}
	return cmd
}

// renderProgress prints the job's update stream one line at a time and maps
// the terminal state to the process exit code.
func renderProgress(out io.Writer, updates <-chan jobs.Update) error {
	colorize := shouldColorize(out)
	var last jobs.Update
	for update := range updates {
		last = update
		kind := statusInfo
		switch update.State {
		case jobs.StateFinished:
			kind = statusOK
		case jobs.StateFailed, jobs.StateTimedOut:
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(string(update.State), kind, update.Message, colorize))
	}

	switch last.State {
	case jobs.StateFinished:
		if last.Artifact != "" {
			fmt.Fprintf(out, "\nSaved to %s\n", last.Artifact)
		}
		return nil
	case jobs.StateFailed, jobs.StateTimedOut:
		return fmt.Errorf("generation did not complete: %s", strings.TrimPrefix(last.Message, "Error: "))
	default:
		return fmt.Errorf("generation interrupted")
	}
}
