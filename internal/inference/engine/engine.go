package engine

import "context"

type Message struct {
	Role    string
	Content string
}

type GenerateOptions struct {
	Temperature     float64
	MaxTokens       int
	TopP            float64
	ReasoningEffort string
}

// Completion is the text an upstream returned plus the model it reports
// having used. Text may be empty; callers decide whether that is an error.
type Completion struct {
	Text  string
	Model string
}

type Engine interface {
	// GenerateText is the chat-completions call style.
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (Completion, error)
	// RespondText is the single-input responses call style.
	RespondText(ctx context.Context, model string, input string, opts GenerateOptions) (Completion, error)
}
