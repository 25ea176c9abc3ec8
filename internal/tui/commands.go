package tui

import "strings"

// Command is a slash command typed at the chat prompt.
type Command int

const (
	CommandUnknown Command = iota
	CommandHelp
	CommandStats
	CommandClear
	CommandQuit
)

// HelpText lists the chat commands.
const HelpText = `Commands:
  /help   show this help
  /stats  show knowledge base statistics
  /clear  forget the conversation so far
  /quit   leave the chat
Anything else is sent to the agent as a question.`

// ParseCommand reports whether line is a slash command and which one.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return CommandUnknown, false
	}
	name := strings.ToLower(strings.Fields(line)[0])
	switch name {
	case "/help", "/?":
		return CommandHelp, true
	case "/stats":
		return CommandStats, true
	case "/clear":
		return CommandClear, true
	case "/quit", "/exit", "/q":
		return CommandQuit, true
	}
	return CommandUnknown, true
}
