package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGoogleModel is used when no Gemini model is configured.
const DefaultGoogleModel = "gemini-2.0-flash"

// Google completes chats with Gemini models.
type Google struct {
	client *genai.Client
	model  string
}

// NewGoogle creates a Gemini chat client. The client is released by Close.
func NewGoogle(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Google, error) {
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY for generation")
	}
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = DefaultGoogleModel
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Google{client: client, model: model}, nil
}

func (g *Google) Name() string { return g.model }

func (g *Google) Complete(ctx context.Context, req Request) (*Response, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.StopSequences = req.Stop

	system, turns := Split(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(turns) == 0 {
		return nil, errors.New("no user message to send")
	}
	// Split always yields user-first alternation, so an even count means the
	// last turn is the model's and there is nothing to answer.
	if len(turns)%2 == 0 {
		turns = append(turns, "Continue.")
	}

	chat := model.StartChat()
	for i, t := range turns[:len(turns)-1] {
		role := "user"
		if i%2 == 1 {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t)}})
	}
	resp, err := chat.SendMessage(ctx, genai.Text(turns[len(turns)-1]))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out := &Response{Text: responseText(resp), Model: g.model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// Close releases the underlying client.
func (g *Google) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}
