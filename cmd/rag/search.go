package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/tools"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the collection without the agent",
	Long:  `Embeds the query and prints the most similar chunks, best first.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Int("top-k", 0, "number of results (default retrieval.top_k from config)")
	searchCmd.Flags().String("source", "", "only chunks from this source path")
	searchCmd.Flags().String("type", "", "only chunks of this file type, e.g. md or pdf")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchResultJSON struct {
	Rank     int     `json:"rank"`
	Score    float64 `json:"score"`
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	FileType string  `json:"file_type,omitempty"`
	ChunkID  int     `json:"chunk_id"`
	Excerpt  string  `json:"excerpt"`
	Text     string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")
	topK, _ := cmd.Flags().GetInt("top-k")
	source, _ := cmd.Flags().GetString("source")
	fileType, _ := cmd.Flags().GetString("type")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	var filter *domain.Filter
	if source != "" || fileType != "" {
		filter = &domain.Filter{Source: source, FileType: strings.ToLower(strings.TrimPrefix(fileType, "."))}
	}
	results, err := app.Index.Search(ctx, query, topK, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		rows := make([]searchResultJSON, 0, len(results))
		for i, r := range results {
			chunkID, _ := strconv.Atoi(r.Record.Metadata[domain.MetaChunkID])
			rows = append(rows, searchResultJSON{
				Rank:     i + 1,
				Score:    r.Score,
				ID:       r.Record.ID,
				Source:   r.Source(),
				FileType: r.Record.Metadata[domain.MetaFileType],
				ChunkID:  chunkID,
				Excerpt:  tools.Excerpt(r.Record.Text, query),
				Text:     r.Record.Text,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, tools.NoResults)
		return nil
	}
	fmt.Fprintf(out, "Found %d results:\n\n", len(results))
	fmt.Fprint(out, tools.FormatResults(query, results))
	return nil
}
