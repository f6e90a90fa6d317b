package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/semstore/internal/store"
)

var createStoreCmd = &cobra.Command{
	Use:   "create-store [name]",
	Short: "Create a new document store",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateStore,
}

var listStoresCmd = &cobra.Command{
	Use:   "list-stores",
	Short: "List all stores in creation order",
	Args:  cobra.NoArgs,
	RunE:  runListStores,
}

var updateStoreCmd = &cobra.Command{
	Use:   "update-store [name]",
	Short: "Rename a store and/or replace its metadata",
	Long: `Modifies the named store in place: --rename changes its name (documents,
id, and creation order are kept) and --meta replaces its store-level
metadata.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdateStore,
}

var deleteStoreCmd = &cobra.Command{
	Use:   "delete-store [name]",
	Short: "Delete a store and all its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteStore,
}

var countCmd = &cobra.Command{
	Use:   "count [store]",
	Short: "Print the number of documents in a store",
	Args:  cobra.ExactArgs(1),
	RunE:  runCount,
}

func init() {
	createStoreCmd.Flags().Int("dim", 0, "embedding dimension (default: config dimension)")
	createStoreCmd.Flags().StringArray("meta", nil, "store metadata key=value (repeatable)")
	updateStoreCmd.Flags().String("rename", "", "new store name")
	updateStoreCmd.Flags().StringArray("meta", nil, "replacement metadata key=value (repeatable)")
	rootCmd.AddCommand(createStoreCmd, listStoresCmd, updateStoreCmd, deleteStoreCmd, countCmd)
}

func runCreateStore(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dim, _ := cmd.Flags().GetInt("dim")
	if dim == 0 {
		dim = cfg.Dimension
	}
	metaFlags, _ := cmd.Flags().GetStringArray("meta")
	meta, err := parseMetaFlags(metaFlags)
	if err != nil {
		return err
	}

	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	s, err := reg.Create(name, dim, meta)
	if err != nil {
		return err
	}
	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}

	fmt.Printf("Created store %q (id %s, dimension %d)\n", s.Name(), s.ID(), s.Dimension())
	return nil
}

func runListStores(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, _, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	if reg.Len() == 0 {
		fmt.Println("No stores.")
		return nil
	}
	for name := range reg.Names() {
		s, err := reg.Get(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s\tdim=%d\tdocs=%d\tcreated=%s\n",
			s.Name(), s.Dimension(), s.Count(), s.CreatedAt().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runUpdateStore(cmd *cobra.Command, args []string) error {
	name := args[0]

	var req store.ModifyRequest
	if cmd.Flags().Changed("rename") {
		newName, _ := cmd.Flags().GetString("rename")
		req.Name = &newName
	}
	if cmd.Flags().Changed("meta") {
		metaFlags, _ := cmd.Flags().GetStringArray("meta")
		meta, err := parseMetaFlags(metaFlags)
		if err != nil {
			return err
		}
		req.Metadata = &meta
	}
	if req.Name == nil && req.Metadata == nil {
		return fmt.Errorf("nothing to update: pass --rename and/or --meta")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	if err := reg.Modify(name, req); err != nil {
		return err
	}
	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}

	if req.Name != nil {
		fmt.Printf("Updated store %q (now %q)\n", name, *req.Name)
	} else {
		fmt.Printf("Updated store %q\n", name)
	}
	return nil
}

func runDeleteStore(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	if err := reg.Delete(name); err != nil {
		return err
	}
	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}
	fmt.Printf("Deleted store %q\n", name)
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, _, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	s, err := reg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Println(s.Count())
	return nil
}
