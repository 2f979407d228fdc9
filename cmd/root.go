// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with WDGRAPH, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("WDGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/wdgraph", "$HOME/.wdgraph", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "wdgraph",
		Short: "Load Wikibase entities in batched rounds and explore the links between them",
		Long: `Load Wikibase entities in batched rounds and explore the links between them.

wdgraph fetches entities from a Wikibase API such as Wikidata, follows the relations you name
up to a depth budget, enriches the result with the properties and items it references and
finds the longest simple chains along a set of relations.`,
		SilenceUsage: true,
	}
}
