package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agentic-rag/internal/tui"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long:  `Runs the agent once on the question and prints the answer with its sources.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().Bool("steps", false, "print every tool call the agent made")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")
	showSteps, _ := cmd.Flags().GetBool("steps")

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	orch, err := app.Agent(ctx)
	if err != nil {
		return err
	}
	res, err := orch.Ask(ctx, question)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showSteps {
		for i, step := range res.Steps {
			fmt.Fprintf(out, "Step %d: %s(%s)\n%s\n\n", i+1, step.Tool, step.Input, step.Output.Observation())
		}
	}
	fmt.Fprintln(out, tui.FormatAnswer(question, res, nil))
	return nil
}
