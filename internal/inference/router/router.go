package router

import (
	"fmt"
	"strings"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/inference/engine"
	"github.com/zerochrono/copilot-backend/internal/inference/engine/mock"
	"github.com/zerochrono/copilot-backend/internal/inference/engine/oaihttp"
)

// NewEngine picks the completion engine named by cfg.Engine.
func NewEngine(cfg config.CompletionConfig) (engine.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "mock":
		return mock.New(), nil
	case "", "openai_http", "oai_http":
		e, err := oaihttp.New(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported completion engine %q", cfg.Engine)
	}
}
