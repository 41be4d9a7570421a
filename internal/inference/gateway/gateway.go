package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/inference/engine"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

// ErrNoContent means neither call style produced any text.
var ErrNoContent = errors.New("gateway: no content returned")

const previewChars = 200

// Options override the configured defaults for a single call. Zero values
// mean "use the default"; Temperature is a pointer so 0 can be requested.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

type Result struct {
	Content   string
	ModelUsed string
}

type Gateway struct {
	eng     engine.Engine
	cfg     config.CompletionConfig
	log     *logger.Logger
	metrics *observability.Metrics
}

func New(eng engine.Engine, cfg config.CompletionConfig, log *logger.Logger) (*Gateway, error) {
	if eng == nil {
		return nil, errors.New("gateway: engine required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{eng: eng, cfg: cfg, log: log.With("component", "CompletionGateway")}, nil
}

func (g *Gateway) WithMetrics(m *observability.Metrics) *Gateway {
	g.metrics = m
	return g
}

// Generate sends prompt as the user turn of a chat completion. Only when that
// call fails outright is the responses call style tried; a successful call that
// carries no text is ErrNoContent.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = strings.TrimSpace(g.cfg.Model)
	}
	temp := g.cfg.Temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	maxTok := g.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTok = opts.MaxTokens
	}

	ctx, span := otel.Tracer("copilot/inference/gateway").Start(ctx, "gateway.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", displayModel(model)),
		attribute.Float64("llm.temperature", temp),
		attribute.Int("llm.max_tokens", maxTok),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	g.log.Debug("completion request",
		"model", displayModel(model),
		"temperature", temp,
		"max_tokens", maxTok,
		"prompt_chars", len(prompt),
		"preview", preview(prompt),
	)

	gen := engine.GenerateOptions{
		Temperature:     temp,
		MaxTokens:       maxTok,
		TopP:            g.cfg.TopP,
		ReasoningEffort: g.cfg.ReasoningEffort,
	}

	start := time.Now()
	out, err := g.eng.GenerateText(ctx, model, []engine.Message{
		{Role: "system", Content: g.cfg.SystemPrompt},
		{Role: "user", Content: prompt},
	}, gen)
	g.metrics.ObserveLLMRequest("chat", err, time.Since(start))
	if err == nil {
		if out.Text != "" {
			return g.result(out, model), nil
		}
		span.SetStatus(codes.Error, "empty completion")
		return Result{}, ErrNoContent
	}

	g.log.Warn("chat completion failed, trying responses", "model", displayModel(model), "error", err)
	span.AddEvent("fallback.responses")

	start = time.Now()
	out, err2 := g.eng.RespondText(ctx, model, prompt, gen)
	g.metrics.ObserveLLMRequest("responses", err2, time.Since(start))
	if err2 != nil {
		g.log.Warn("responses call failed", "model", displayModel(model), "error", err2)
		span.RecordError(err2)
		span.SetStatus(codes.Error, ErrNoContent.Error())
		return Result{}, ErrNoContent
	}
	if out.Text == "" {
		span.SetStatus(codes.Error, "empty completion")
		return Result{}, ErrNoContent
	}
	return g.result(out, model), nil
}

// GenerateForLinks applies the linker overrides: link model (falling back to
// the default model), link temperature and link max tokens.
func (g *Gateway) GenerateForLinks(ctx context.Context, prompt string) (Result, error) {
	model := strings.TrimSpace(g.cfg.LinkModel)
	if model == "" {
		model = g.cfg.Model
	}
	temp := g.cfg.LinkTemperature
	return g.Generate(ctx, prompt, Options{
		Model:       model,
		Temperature: &temp,
		MaxTokens:   g.cfg.LinkMaxTokens,
	})
}

func (g *Gateway) result(out engine.Completion, requested string) Result {
	used := strings.TrimSpace(out.Model)
	if used == "" {
		used = displayModel(requested)
	}
	return Result{Content: out.Text, ModelUsed: used}
}

func displayModel(model string) string {
	if strings.TrimSpace(model) == "" {
		return "auto"
	}
	return model
}

func preview(prompt string) string {
	r := []rune(prompt)
	if len(r) > previewChars {
		r = r[:previewChars]
	}
	return strings.ReplaceAll(string(r), "\n", " ")
}
