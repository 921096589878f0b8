package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// openaiBackend implements Backend over the OpenAI chat completions API.
type openaiBackend struct {
	client       openai.Client
	profile      Profile
	instructions InstructionSource
	history      *conversation
}

func newOpenAIBackend(profile Profile, instructions InstructionSource) *openaiBackend {
	return &openaiBackend{
		client:       openai.NewClient(option.WithAPIKey(profile.APIKey)),
		profile:      profile,
		instructions: instructions,
		history:      &conversation{},
	}
}

// StartSession verifies the credentials and model before the first run.
func (b *openaiBackend) StartSession(ctx context.Context) error {
	if _, err := b.client.Models.Get(ctx, b.profile.Model); err != nil {
		return fmt.Errorf("openai session: %w", err)
	}
	return nil
}

// CloseSession discards the conversation. The HTTP client holds no
// long-lived connection state that needs tearing down.
func (b *openaiBackend) CloseSession() error {
	b.history.reset()
	return nil
}

// Run streams one prompt. The returned channel closes when the stream ends,
// including on context cancellation.
func (b *openaiBackend) Run(ctx context.Context, runID, prompt string) (<-chan Event, error) {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		em := newEmitter(runID, out)

		messages := []openai.ChatCompletionMessageParamUnion{}
		if instr := b.instructions.Instructions(); instr != "" {
			messages = append(messages, openai.SystemMessage(instr))
		}
		for _, msg := range b.history.snapshot() {
			switch msg.Role {
			case "user":
				messages = append(messages, openai.UserMessage(msg.Content))
			case "assistant":
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		}
		messages = append(messages, openai.UserMessage(prompt))

		params := openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(b.profile.Model),
			Messages: messages,
		}
		if b.profile.MaxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(b.profile.MaxTokens))
		}
		if b.profile.Temperature > 0 {
			params.Temperature = openai.Float(b.profile.Temperature)
		}

		stream := b.client.Chat.Completions.NewStreaming(ctx, params)
		acc := openai.ChatCompletionAccumulator{}

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if tool, ok := acc.JustFinishedToolCall(); ok {
				em.toolStarted(tool.Name, tool.Arguments)
				em.toolFinished(tool.Name)
			}

			if len(chunk.Choices) > 0 {
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					em.chunk(delta)
				}
			}
		}

		final := ""
		if len(acc.Choices) > 0 {
			final = acc.Choices[0].Message.Content
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-run: keep the turns that fully streamed so
				// the next run resumes from a consistent history.
				b.history.commit(
					Message{Role: "user", Content: prompt},
					Message{Role: "assistant", Content: final},
				)
				log.Debug().Str("run_id", runID).Msg("OpenAI stream ended for cancelled run")
				return
			}
			em.failed(err)
			return
		}

		b.history.commit(
			Message{Role: "user", Content: prompt},
			Message{Role: "assistant", Content: final},
		)

		em.completed(final, &TokenUsage{
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
		})
	}()

	return out, nil
}
