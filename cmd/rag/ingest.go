package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/progress"
	"agentic-rag/internal/service"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load, chunk, embed and index a directory of documents",
	Long: `Walks the documents directory, loads every supported file, splits it into
overlapping chunks and appends them to the collection. Use --reset to rebuild
the collection from scratch, which is required after changing the embedding
provider or model.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("dir", "", "documents directory (default documents.directory from config)")
	ingestCmd.Flags().Bool("reset", false, "clear the collection before indexing")
	ingestCmd.Flags().BoolP("quiet", "q", false, "no progress output")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dir, _ := cmd.Flags().GetString("dir")
	reset, _ := cmd.Flags().GetBool("reset")
	quiet, _ := cmd.Flags().GetBool("quiet")

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = app.Config.Documents.Directory
	}
	report, err := ingest(cmd, app, dir, reset, quiet)
	if err != nil {
		return err
	}
	printReport(os.Stdout, report)
	return nil
}

func ingest(cmd *cobra.Command, app *service.App, dir string, reset, quiet bool) (*service.Report, error) {
	var rep progress.Reporter = progress.Nop{}
	if !quiet {
		rep = progress.NewReporter(false)
	}
	ing, err := app.Ingestor(rep)
	if err != nil {
		return nil, err
	}
	report, err := ing.IngestDirectory(cmd.Context(), dir, reset)
	if errors.Is(err, domain.ErrProviderMismatch) {
		return nil, fmt.Errorf("%w\nRun `rag ingest --reset` to rebuild the collection with the configured embedder", err)
	}
	return report, err
}

func printReport(w io.Writer, r *service.Report) {
	action := "Indexed"
	if r.Reset {
		action = "Rebuilt collection with"
	}
	fmt.Fprintf(w, "%s %d documents (%d chunks) from %s in %s\n", action, r.Documents, r.Chunks, r.Directory, r.Elapsed.Round(time.Millisecond))

	st := r.DocumentStats
	if st.Documents > 0 {
		fmt.Fprintf(w, "Characters: %d, average per document: %.0f\n", st.Characters, st.AverageSize)
		types := make([]string, 0, len(st.PerFileType))
		for t, n := range st.PerFileType {
			types = append(types, fmt.Sprintf("%s (%d)", t, n))
		}
		sort.Strings(types)
		fmt.Fprintf(w, "File types: %s\n", strings.Join(types, ", "))
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d unsupported files:\n", len(r.Skipped))
		for _, err := range r.Skipped {
			fmt.Fprintf(w, "  - %v\n", err)
		}
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "Failed to load %d files:\n", len(r.Failed))
		for _, err := range r.Failed {
			fmt.Fprintf(w, "  - %v\n", err)
		}
	}
	if r.Summary != "" {
		fmt.Fprintf(w, "\nSummary:\n%s\n", r.Summary)
	}
}
