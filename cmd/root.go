package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "semstore",
	Short: "In-process semantic document store with swappable embedding backends",
	Long: `semstore keeps named stores of documents, embeds their text through a
local deterministic backend or a hosted provider, and answers natural
language queries by cosine similarity. State lives in an on-disk
snapshot that every command opens, mutates, and atomically re-saves.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".semstore.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
