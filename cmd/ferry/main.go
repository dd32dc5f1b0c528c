package main

import (
	"fmt"
	"os"

	"github.com/zoobzio/ferry/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ferry:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
