package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/semstore/internal/progress"
	"github.com/ziadkadry99/semstore/internal/store"
)

var importDocsCmd = &cobra.Command{
	Use:   "import-docs [store] [file]",
	Short: "Bulk-add documents from a YAML file",
	Long: `Reads a YAML list of documents ({id, text, metadata}) and adds them to
the store in file order. With --upsert, existing ids are replaced instead
of failing.`,
	Args: cobra.ExactArgs(2),
	RunE: runImportDocs,
}

func init() {
	importDocsCmd.Flags().Bool("upsert", false, "replace documents whose ids already exist")
	rootCmd.AddCommand(importDocsCmd)
}

// importedDoc is one entry of the import file.
type importedDoc struct {
	ID       string         `yaml:"id"`
	Text     string         `yaml:"text"`
	Metadata store.Metadata `yaml:"metadata"`
}

func runImportDocs(cmd *cobra.Command, args []string) error {
	storeName, file := args[0], args[1]
	upsert, _ := cmd.Flags().GetBool("upsert")

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	var docs []importedDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}
	if len(docs) == 0 {
		fmt.Println("Nothing to import.")
		return nil
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

	reporter := progress.NewReporter()
	reporter.Start(len(docs))
	ctx := cmd.Context()
	for i, doc := range docs {
		if upsert {
			err = s.Upsert(ctx, doc.ID, doc.Text, doc.Metadata)
		} else {
			err = s.Add(ctx, doc.ID, doc.Text, doc.Metadata)
		}
		if err != nil {
			// Nothing is saved on failure; the working snapshot is untouched.
			return err
		}
		reporter.Update(i+1, doc.ID)
	}
	reporter.Finish()

	if err := saveRegistry(cfg, codec, reg); err != nil {
		return err
	}
	fmt.Printf("Imported %d document(s) into %q (%d total)\n", len(docs), storeName, s.Count())
	return nil
}
