package agent

import "fmt"

// Profile carries the credentials and model settings a backend needs.
type Profile struct {
	ID          string
	Provider    string // "openai", "anthropic"
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// InstructionSource supplies the system instructions for each run. Sources
// may swap content between runs (for example on AGENTS.md edits); backends
// read it at run start, never mid-run.
type InstructionSource interface {
	Instructions() string
}

// StaticInstructions is an InstructionSource with fixed content.
type StaticInstructions string

// Instructions returns the fixed content.
func (s StaticInstructions) Instructions() string { return string(s) }

// NewBackend creates a provider-specific backend from a profile.
func NewBackend(profile Profile, instructions InstructionSource) (Backend, error) {
	if instructions == nil {
		instructions = StaticInstructions("")
	}
	switch profile.Provider {
	case "openai":
		return newOpenAIBackend(profile, instructions), nil
	case "anthropic":
		return newAnthropicBackend(profile, instructions), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
