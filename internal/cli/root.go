// Package cli implements the ferry command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zoobzio/ferry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config   string
	Verbose  bool
	MaxDepth int
	MaxSize  int
	Strict   bool
}

// NewRootCommand creates the root command for the ferry CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ferry",
		Short: "Convert documents to and from BSON",
		Long: `ferry converts documents between Extended JSON and BSON with the same
limits a MongoDB server applies: 100 levels of nesting and 16 MiB per document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Verbose {
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return WrapExitError(ExitCommandError, "create logger", err)
			}
			ferry.SetLogger(l)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log conversions to stderr")
	cmd.PersistentFlags().IntVar(&opts.MaxDepth, "max-depth", ferry.DefaultMaxDepth, "maximum nesting depth")
	cmd.PersistentFlags().IntVar(&opts.MaxSize, "max-size", ferry.DefaultMaxSize, "maximum encoded document size in bytes")
	cmd.PersistentFlags().BoolVar(&opts.Strict, "strict", false, "reject deprecated BSON types (symbol, undefined) while decoding")

	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewCheckCollectionCommand(opts))

	return cmd
}

// newEngine builds an engine from the config file, then applies any limit
// flags given explicitly on the command line.
func newEngine(opts *RootOptions, cmd *cobra.Command) (*ferry.Engine, error) {
	cfg := ferry.DefaultConfig()
	if opts.Config != "" {
		loaded, err := ferry.LoadConfig(opts.Config)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("max-depth") {
		cfg.MaxDepth = opts.MaxDepth
	}
	if flags.Changed("max-size") {
		cfg.MaxSize = opts.MaxSize
	}
	if flags.Changed("strict") {
		cfg.Strict = opts.Strict
	}

	eng, err := ferry.New(ferry.WithConfig(cfg))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure engine", err)
	}
	return eng, nil
}

// readInput reads the named file, or stdin when the name is absent or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("read %s", args[0]), err)
	}
	return data, nil
}

// writeOutput writes data to path, or to the command's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("write %s", path), err)
	}
	return nil
}
