package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/semstore/internal/store"
)

var addDocCmd = &cobra.Command{
	Use:   "add-doc [store] [id] [text]",
	Short: "Add a document to a store",
	Args:  cobra.ExactArgs(3),
	RunE:  runAddDoc,
}

var getDocCmd = &cobra.Command{
	Use:   "get-doc [store] [id]",
	Short: "Print a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runGetDoc,
}

var updateDocCmd = &cobra.Command{
	Use:   "update-doc [store] [id]",
	Short: "Update a document's text and/or metadata",
	Long: `Updates the named document. The text is re-embedded only when --text is
given and differs from the stored text; a metadata-only update leaves the
vector untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdateDoc,
}

var deleteDocCmd = &cobra.Command{
	Use:   "delete-doc [store] [id]",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeleteDoc,
}

func init() {
	addDocCmd.Flags().StringArray("meta", nil, "metadata entry key=value (repeatable)")
	addDocCmd.Flags().Bool("upsert", false, "replace the document if the id already exists")
	updateDocCmd.Flags().String("text", "", "new document text")
	updateDocCmd.Flags().StringArray("meta", nil, "replacement metadata key=value (repeatable)")
	rootCmd.AddCommand(addDocCmd, getDocCmd, updateDocCmd, deleteDocCmd)
}

func runAddDoc(cmd *cobra.Command, args []string) error {
	storeName, id, text := args[0], args[1], args[2]
	metaFlags, _ := cmd.Flags().GetStringArray("meta")
	upsert, _ := cmd.Flags().GetBool("upsert")

	meta, err := parseMetaFlags(metaFlags)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	s, err := reg.Get(storeName)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if upsert {
		err = s.Upsert(ctx, id, text, meta)
	} else {
		err = s.Add(ctx, id, text, meta)
	}
	if err != nil {
		return err
	}
	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}

	fmt.Printf("Added %q to %q (%d documents)\n", id, storeName, s.Count())
	return nil
}

func runGetDoc(cmd *cobra.Command, args []string) error {
	storeName, id := args[0], args[1]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, _, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	s, err := reg.Get(storeName)
	if err != nil {
		return err
	}
	doc, err := s.Get(id)
	if err != nil {
		return err
	}

	fmt.Printf("id: %s\n", doc.ID)
	fmt.Printf("text: %s\n", doc.Text)
	fmt.Printf("metadata: %s\n", formatMeta(doc.Metadata))
	if verbose {
		fmt.Printf("vector: %d dimensions\n", len(doc.Vector))
	}
	return nil
}

func runUpdateDoc(cmd *cobra.Command, args []string) error {
	storeName, id := args[0], args[1]

	var req store.UpdateRequest
	if cmd.Flags().Changed("text") {
		text, _ := cmd.Flags().GetString("text")
		req.Text = &text
	}
	if cmd.Flags().Changed("meta") {
		metaFlags, _ := cmd.Flags().GetStringArray("meta")
		meta, err := parseMetaFlags(metaFlags)
		if err != nil {
			return err
		}
		req.Metadata = &meta
	}
	if req.Text == nil && req.Metadata == nil {
		return fmt.Errorf("nothing to update: pass --text and/or --meta")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	s, err := reg.Get(storeName)
	if err != nil {
		return err
	}
	if err := s.Update(cmd.Context(), id, req); err != nil {
		return err
	}
	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}

	fmt.Printf("Updated %q in %q\n", id, storeName)
	return nil
}

func runDeleteDoc(cmd *cobra.Command, args []string) error {
	storeName, id := args[0], args[1]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	s, err := reg.Get(storeName)
	if err != nil {
		return err
	}
	if err := s.Delete(id); err != nil {
		return err
	}
	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}

	fmt.Printf("Deleted %q from %q (%d documents remain)\n", id, storeName, s.Count())
	return nil
}
