package cli

import (
	"github.com/spf13/cobra"

	"github.com/zoobzio/ferry/internal/export"
)

type encodeOptions struct {
	Out string
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &encodeOptions{}

	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode an Extended JSON document as BSON",
		Long: `Read one Extended JSON document (canonical or relaxed) from a file or
stdin and write its BSON encoding. Field order is preserved.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(rootOpts, opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write BSON to this file instead of stdout")

	return cmd
}

func runEncode(rootOpts *RootOptions, opts *encodeOptions, cmd *cobra.Command, args []string) error {
	eng, err := newEngine(rootOpts, cmd)
	if err != nil {
		return err
	}

	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	doc, err := export.ParseExtJSON(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid input", err)
	}

	data, err := eng.Write(cmd.Context(), doc)
	if err != nil {
		return WrapExitError(ExitFailure, "encode failed", err)
	}

	return writeOutput(cmd, opts.Out, data)
}
