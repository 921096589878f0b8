package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

// anthropicBackend implements Backend over the Anthropic messages API.
type anthropicBackend struct {
	client       anthropic.Client
	profile      Profile
	instructions InstructionSource
	history      *conversation
}

func newAnthropicBackend(profile Profile, instructions InstructionSource) *anthropicBackend {
	return &anthropicBackend{
		client:       anthropic.NewClient(option.WithAPIKey(profile.APIKey)),
		profile:      profile,
		instructions: instructions,
		history:      &conversation{},
	}
}

// StartSession verifies the credentials and model before the first run.
func (b *anthropicBackend) StartSession(ctx context.Context) error {
	if _, err := b.client.Models.Get(ctx, b.profile.Model, anthropic.ModelGetParams{}); err != nil {
		return fmt.Errorf("anthropic session: %w", err)
	}
	return nil
}

// CloseSession discards the conversation.
func (b *anthropicBackend) CloseSession() error {
	b.history.reset()
	return nil
}

// Run streams one prompt. The returned channel closes when the stream ends,
// including on context cancellation.
func (b *anthropicBackend) Run(ctx context.Context, runID, prompt string) (<-chan Event, error) {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		em := newEmitter(runID, out)

		messages := []anthropic.MessageParam{}
		for _, msg := range b.history.snapshot() {
			switch msg.Role {
			case "user":
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			case "assistant":
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

		maxTokens := b.profile.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 4096
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(b.profile.Model),
			Messages:  messages,
			MaxTokens: int64(maxTokens),
		}
		if instr := b.instructions.Instructions(); instr != "" {
			params.System = []anthropic.TextBlockParam{{Text: instr}}
		}
		if b.profile.Temperature > 0 {
			params.Temperature = anthropic.Float(b.profile.Temperature)
		}

		stream := b.client.Messages.NewStreaming(ctx, params)

		message := anthropic.Message{}
		final := ""

		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				em.failed(err)
				return
			}

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					em.toolStarted(block.Name, block.JSON.Input.Raw())
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					final += delta.Text
					em.chunk(delta.Text)
				case anthropic.ThinkingDelta:
					em.reasoning(delta.Thinking)
				}
			case anthropic.ContentBlockStopEvent:
				if len(message.Content) > 0 {
					if block, ok := message.Content[len(message.Content)-1].AsAny().(anthropic.ToolUseBlock); ok {
						em.toolFinished(block.Name)
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				b.history.commit(
					Message{Role: "user", Content: prompt},
					Message{Role: "assistant", Content: final},
				)
				log.Debug().Str("run_id", runID).Msg("Anthropic stream ended for cancelled run")
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
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		})
	}()

	return out, nil
}
