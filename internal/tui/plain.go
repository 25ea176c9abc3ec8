package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// RunPlain reads one question or command per line from in and writes
// answers to out. It returns when in is exhausted, on /quit, or when ctx is
// cancelled. Failed questions are reported and the loop keeps going.
func RunPlain(ctx context.Context, port ChatPort, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	fmt.Fprintln(out, "Type a question, or /help for commands.")
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if cmd, ok := ParseCommand(line); ok {
			switch cmd {
			case CommandHelp:
				fmt.Fprintln(out, HelpText)
			case CommandStats:
				fmt.Fprintln(out, port.Stats(ctx))
			case CommandClear:
				port.Clear()
				fmt.Fprintln(out, "Conversation cleared.")
			case CommandQuit:
				return nil
			default:
				fmt.Fprintf(out, "Unknown command %s. Type /help.\n", line)
			}
			continue
		}
		res, err := port.Ask(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, FormatAnswer(line, res, nil))
	}
}
