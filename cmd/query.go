package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/semstore/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query [store] [text]",
	Short: "Semantically search a store",
	Long: `Embeds the query text and ranks the store's documents by cosine
similarity. Metadata filters are exact-match and conjunctive; they are
applied before ranking.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 10, "maximum number of results")
	queryCmd.Flags().StringArray("filter", nil, "metadata filter key=value (repeatable)")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	storeName, text := args[0], args[1]
	limit, _ := cmd.Flags().GetInt("limit")
	filterFlags, _ := cmd.Flags().GetStringArray("filter")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	filter, err := parseMetaFlags(filterFlags)
	if err != nil {
		return err
	}

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

	results, err := s.Query(cmd.Context(), text, limit, filter)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printResultsJSON(results)
	}
	printResultsTable(results)
	return nil
}

type queryResultJSON struct {
	Rank       int            `json:"rank"`
	Similarity float64        `json:"similarity"`
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Metadata   store.Metadata `json:"metadata,omitempty"`
}

func printResultsJSON(results []store.Result) error {
	out := make([]queryResultJSON, 0, len(results))
	for i, r := range results {
		out = append(out, queryResultJSON{
			Rank:       i + 1,
			Similarity: float64(r.Similarity),
			ID:         r.Document.ID,
			Text:       r.Document.Text,
			Metadata:   r.Document.Metadata,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printResultsTable(results []store.Result) {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}
	fmt.Printf("Found %d result(s):\n\n", len(results))
	for i, r := range results {
		fmt.Printf("  %d. [%.4f] %s\n", i+1, r.Similarity, r.Document.ID)
		fmt.Printf("     %s\n", truncate(r.Document.Text, 120))
		if len(r.Document.Metadata) > 0 {
			fmt.Printf("     %s\n", formatMeta(r.Document.Metadata))
		}
		fmt.Println()
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
