package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckCollectionCommand creates the check-collection command.
func NewCheckCollectionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "check-collection <name>",
		Short:         "Check a collection name against the ruleset",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(rootOpts, cmd)
			if err != nil {
				return err
			}
			if err := eng.CheckCollection(args[0]); err != nil {
				return WrapExitError(ExitFailure, "invalid collection", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q is a valid collection name\n", args[0])
			return nil
		},
	}
}
