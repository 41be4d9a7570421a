package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/zerochrono/copilot-backend/internal/inference/engine"
)

// Engine answers offline. It echoes the last user message so the rest of the
// service can run without a provider.
type Engine struct {
	Model string
}

func New() *Engine {
	return &Engine{Model: "mock"}
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (engine.Completion, error) {
	if err := ctx.Err(); err != nil {
		return engine.Completion{}, err
	}
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			user = messages[i].Content
			break
		}
	}
	return engine.Completion{Text: echo(user), Model: e.modelName(model)}, nil
}

func (e *Engine) RespondText(ctx context.Context, model string, input string, opts engine.GenerateOptions) (engine.Completion, error) {
	if err := ctx.Err(); err != nil {
		return engine.Completion{}, err
	}
	return engine.Completion{Text: echo(input), Model: e.modelName(model)}, nil
}

func (e *Engine) modelName(requested string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return e.Model
}

func echo(s string) string {
	if strings.TrimSpace(s) == "" {
		return "mock: ok"
	}
	return fmt.Sprintf("mock: %s", s)
}
