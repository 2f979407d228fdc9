package main

import (
	"os"

	"github.com/wdgraph/wdgraph/cmd"
	"github.com/wdgraph/wdgraph/cmd/chains"
	"github.com/wdgraph/wdgraph/cmd/load"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	loadCmd := load.NewLoadCommand()
	rootCmd.AddCommand(loadCmd)

	chainCmd := chains.NewChainCommand()
	rootCmd.AddCommand(chainCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
