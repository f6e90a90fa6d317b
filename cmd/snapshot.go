package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Export a snapshot of all stores",
	Long: `Writes a complete snapshot of the registry to the given path (or the
working snapshot location if omitted). The write goes to a temporary
location first and is renamed into place, so an interrupted save never
damages an existing snapshot.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSave,
}

var loadCmd = &cobra.Command{
	Use:   "load [path]",
	Short: "Import a snapshot, replacing the working state",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(saveCmd, loadCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	dest := snapshotPath(cfg)
	if len(args) == 1 {
		dest = args[0]
	}
	if err := codec.Save(reg, dest); err != nil {
		return err
	}

	fmt.Printf("Saved %d store(s) to %s\n", reg.Len(), dest)
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	factory, err := embedderFactory(cfg)
	if err != nil {
		return err
	}
	codec, err := openCodec(cfg)
	if err != nil {
		return err
	}

	// Validate the imported snapshot fully before it replaces anything.
	reg, err := codec.Load(args[0], factory)
	if err != nil {
		return err
	}
	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}

	fmt.Printf("Loaded %d store(s) from %s\n", reg.Len(), args[0])
	return nil
}
