package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"agentic-rag/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the agent",
	Long: `Opens a chat session with conversation memory. Type /help inside the chat
for commands. When stdin is not a terminal, or with --plain, questions are read
one per line.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("dir", "", "ingest this directory before chatting (needed with the memory vector store)")
	chatCmd.Flags().Bool("plain", false, "line-based chat instead of the full-screen interface")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dir, _ := cmd.Flags().GetString("dir")
	plain, _ := cmd.Flags().GetBool("plain")

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	if err := app.Index.Check(); err != nil {
		return fmt.Errorf("%w\nRun `rag ingest --reset` to rebuild the collection with the configured embedder", err)
	}
	if dir != "" {
		report, err := ingest(cmd, app, dir, false, plain)
		if err != nil {
			return err
		}
		printReport(os.Stderr, report)
	}

	orch, err := app.Agent(ctx)
	if err != nil {
		return err
	}
	session := tui.Session{Agent: orch, Tools: app.Tools}

	if plain || !isatty.IsTerminal(os.Stdin.Fd()) {
		return tui.RunPlain(ctx, session, os.Stdin, os.Stdout)
	}
	header := app.Config.VectorDB.CollectionName
	if st, err := app.Index.Stats(ctx); err == nil {
		header = fmt.Sprintf("%s: %d chunks from %d sources, %s via %s",
			st.Collection, st.TotalRecords, len(st.PerSource), app.Config.LLM.Model, app.Config.LLM.Provider)
		if st.TotalRecords == 0 {
			header += ". The collection is empty, run `rag ingest` first."
		}
	}
	return tui.Run(ctx, session, header)
}
