// Package anthropic provides a WorkflowAdapter backed by the Anthropic
// Messages API. Each invocation renders the step input as a user prompt,
// replays the run's conversation memory, and appends the exchange back to
// the shared context before returning.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/pipemesh/core"
)

// Options configures the Anthropic adapter (model id, temperature, max
// tokens, API key, optional system prompt).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	System      string
}

// Adapter wraps the Anthropic Messages API behind core.WorkflowAdapter.
type Adapter struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic adapter using the official client.
func New(optFns ...func(o *Options)) *Adapter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Adapter{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Adapter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Invoke implements core.WorkflowAdapter using a non-streaming Messages call.
func (a *Adapter) Invoke(ctx context.Context, input any, shared *core.SharedContext) (core.AgentResult, error) {
	prompt := renderInput(input)

	params := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		Messages:    buildMessages(shared, prompt),
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
	}
	if a.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.opts.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return core.AgentResult{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	if shared != nil {
		shared.AppendMessage("user", prompt)
		shared.AppendMessage("assistant", text)
	}

	return core.AgentResult{
		Output: text,
		Metadata: map[string]any{
			"provider":      "anthropic",
			"model":         string(resp.Model),
			"stop_reason":   string(resp.StopReason),
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		},
	}, nil
}

// buildMessages replays the shared conversation memory and appends the
// current prompt as the final user turn.
func buildMessages(shared *core.SharedContext, prompt string) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	if shared != nil {
		for _, m := range shared.ConversationHistory() {
			if m.Content == "" {
				continue
			}
			if m.Role == "assistant" {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			} else {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}

	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
}

func renderInput(input any) string {
	if s, ok := input.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", input)
}
