package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agentic-rag/internal/tools"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every chunk in the collection",
	Long: `Removes all records and the manifest that binds the collection to its
embedding model. The next ingest starts a fresh collection.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(statsCmd, resetCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	st, err := app.Index.Stats(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Collection: %s\n", st.Collection)
	fmt.Fprintln(out, tools.FormatStats(st))
	if m := app.Index.Manifest(); m != nil {
		fmt.Fprintf(out, "- Created: %s\n- Updated: %s\n", m.CreatedAt.Local().Format(time.DateTime), m.UpdatedAt.Local().Format(time.DateTime))
	}
	if err := app.Index.Check(); err != nil {
		fmt.Fprintf(out, "\nWarning: %v\nRun `rag ingest --reset` before searching.\n", err)
	}
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	if err := app.Index.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Collection %q reset.\n", app.Config.VectorDB.CollectionName)
	return nil
}
