package agent

import (
	"regexp"
	"strings"
)

// DecisionKind tags the variant of a Decision.
type DecisionKind int

const (
	DecisionInvalid DecisionKind = iota
	DecisionToolCall
	DecisionFinalAnswer
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionToolCall:
		return "tool_call"
	case DecisionFinalAnswer:
		return "final_answer"
	default:
		return "invalid"
	}
}

// Decision is the outcome of one reasoning step: call a tool, give the final
// answer, or output the loop could not interpret.
type Decision struct {
	Kind DecisionKind
	// Tool and Input are set for DecisionToolCall.
	Tool  string
	Input string
	// Answer is set for DecisionFinalAnswer.
	Answer string
	// Thought is the reasoning preceding the decision, if any.
	Thought string
	// Log is the raw planner output.
	Log string
	// Hint is fed back as the observation of an invalid decision.
	Hint string
}

// ToolCall builds a tool call decision.
func ToolCall(tool, input string) Decision {
	return Decision{Kind: DecisionToolCall, Tool: tool, Input: input}
}

// FinalAnswer builds a final answer decision.
func FinalAnswer(answer string) Decision {
	return Decision{Kind: DecisionFinalAnswer, Answer: answer}
}

// Invalid builds a decision for output that could not be parsed.
func Invalid(raw, hint string) Decision {
	return Decision{Kind: DecisionInvalid, Log: raw, Hint: hint}
}

const (
	finalAnswerMarker = "Final Answer:"
	observationMarker = "\nObservation:"
)

var (
	actionRe      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyRe  = regexp.MustCompile(`Action\s*\d*\s*:`)
	thoughtPrefix = regexp.MustCompile(`^\s*Thought\s*:\s*`)
)

// ParseDecision interprets ReAct formatted text. Whichever of an action or a
// final answer appears first wins, so an answer the model wrote after
// inventing its own observation is ignored.
func ParseDecision(text string) Decision {
	raw := text
	action := actionRe.FindStringSubmatchIndex(text)
	final := strings.Index(text, finalAnswerMarker)

	if action != nil && (final < 0 || action[0] < final) {
		tool := strings.Trim(strings.TrimSpace(text[action[2]:action[3]]), "`*\"' ")
		input := text[action[4]:action[5]]
		if i := strings.Index(input, observationMarker); i >= 0 {
			input = input[:i]
		}
		input = strings.TrimSpace(input)
		if tool == "" || strings.EqualFold(tool, "none") || strings.EqualFold(tool, "n/a") {
			return Invalid(raw, "Invalid Format: 'Action:' must name one of the tools. If no tool is needed, reply with 'Final Answer:'.")
		}
		d := ToolCall(tool, input)
		d.Thought = thought(text[:action[0]])
		d.Log = raw
		return d
	}
	if final >= 0 {
		d := FinalAnswer(strings.TrimSpace(text[final+len(finalAnswerMarker):]))
		d.Thought = thought(text[:final])
		d.Log = raw
		if d.Answer == "" {
			return Invalid(raw, "Invalid Format: 'Final Answer:' must be followed by the answer.")
		}
		return d
	}
	if actionOnlyRe.MatchString(text) {
		return Invalid(raw, "Invalid Format: Missing 'Action Input:' after 'Action:'.")
	}
	return Invalid(raw, "Invalid Format: Missing 'Action:' after 'Thought:'. Use the Thought/Action/Action Input format, or 'Final Answer:' to respond.")
}

func thought(s string) string {
	s = thoughtPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}
