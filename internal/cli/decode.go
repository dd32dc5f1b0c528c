package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/ferry/internal/export"
)

type decodeOptions struct {
	Format    string
	Canonical bool
	Out       string
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &decodeOptions{}

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a BSON document",
		Long: `Read one BSON document from a file or stdin, validate it, and render it
as Extended JSON, YAML or MessagePack in its original field order.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(rootOpts, opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", string(export.FormatExtJSON),
		fmt.Sprintf("output format %v", export.Formats()))
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "use canonical Extended JSON (implies --format extjson)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write output to this file instead of stdout")

	return cmd
}

func runDecode(rootOpts *RootOptions, opts *decodeOptions, cmd *cobra.Command, args []string) error {
	renderer, err := export.New(export.Format(opts.Format))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid format", err)
	}
	if opts.Canonical {
		renderer = export.NewExtJSON(true)
	}

	eng, err := newEngine(rootOpts, cmd)
	if err != nil {
		return err
	}

	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	doc, err := eng.Read(cmd.Context(), input)
	if err != nil {
		return WrapExitError(ExitFailure, "decode failed", err)
	}

	out, err := renderer.Render(doc)
	if err != nil {
		return WrapExitError(ExitFailure, "render failed", err)
	}
	if renderer.ContentType() == "application/json" {
		out = append(out, '\n')
	}

	return writeOutput(cmd, opts.Out, out)
}
