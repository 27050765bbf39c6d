// Package openai provides a WorkflowAdapter backed by the OpenAI Chat
// Completions API. Each invocation renders the step input as a user prompt,
// replays the run's conversation memory, and appends the exchange back to
// the shared context before returning.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/pipemesh/core"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI adapter. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without breaking
// callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	System              string
}

// Adapter wraps the OpenAI Chat Completions API behind core.WorkflowAdapter.
type Adapter struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI adapter using the official client (API key from env).
func New(optFns ...func(o *Options)) *Adapter {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// Invoke implements core.WorkflowAdapter using a non-streaming completion call.
func (a *Adapter) Invoke(ctx context.Context, input any, shared *core.SharedContext) (core.AgentResult, error) {
	prompt := renderInput(input)

	params := openai.ChatCompletionNewParams{
		Messages:            a.buildMessages(shared, prompt),
		Model:               a.opts.Model,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.AgentResult{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.AgentResult{}, fmt.Errorf("openai api returned no choices")
	}

	choice := resp.Choices[0]
	text := choice.Message.Content

	if shared != nil {
		shared.AppendMessage("user", prompt)
		shared.AppendMessage("assistant", text)
	}

	return core.AgentResult{
		Output: text,
		Metadata: map[string]any{
			"provider":          "openai",
			"model":             resp.Model,
			"finish_reason":     choice.FinishReason,
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
		},
	}, nil
}

// buildMessages replays the shared conversation memory and appends the
// current prompt as the final user turn.
func (a *Adapter) buildMessages(shared *core.SharedContext, prompt string) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if a.opts.System != "" {
		messages = append(messages, openai.SystemMessage(a.opts.System))
	}

	if shared != nil {
		for _, m := range shared.ConversationHistory() {
			if m.Content == "" {
				continue
			}
			switch m.Role {
			case "assistant":
				messages = append(messages, openai.AssistantMessage(m.Content))
			case "system":
				messages = append(messages, openai.SystemMessage(m.Content))
			default:
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	}

	return append(messages, openai.UserMessage(prompt))
}

func renderInput(input any) string {
	if s, ok := input.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", input)
}
