package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/graph/build"
	"github.com/zerochrono/copilot-backend/internal/graphrag"
	"github.com/zerochrono/copilot-backend/internal/inference/gateway"
	"github.com/zerochrono/copilot-backend/internal/platform/apierr"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/tabular"
)

const graphAnswerSystemPrompt = "You are a clinical assistant. Use the provided graph context consisting of relevant nodes and their relationships to answer the question accurately. Cite node titles when applicable."

type Generator interface {
	Generate(ctx context.Context, prompt string, opts gateway.Options) (gateway.Result, error)
}

// GraphBuilder hands back the stored document, building it when none exists.
type GraphBuilder interface {
	EnsureGraph(ctx context.Context) (*graph.Document, error)
}

type Retriever interface {
	Query(ctx context.Context, req graphrag.Request) (graphrag.Response, error)
}

// GenerateInput mirrors the /generate body. Nil pointers take the defaults.
type GenerateInput struct {
	Prompt       string
	CSVContent   string
	CSVDelimiter string
	CSVMaxRows   *int
	RAGColumns   string
	RAGMaxChars  *int
	RAGTopK      int
}

type AskInput struct {
	Question     string
	TopK         *int
	NeighborK    *int
	IncludeTypes []string
}

type AskResult struct {
	Question  string                 `json:"question"`
	Answer    string                 `json:"answer"`
	Model     string                 `json:"model"`
	Context   string                 `json:"context"`
	TopNodes  []graphrag.TopNode     `json:"top_nodes"`
	Neighbors []graphrag.NeighborRow `json:"neighbors"`
}

// BuildError marks a graph document that could not be produced on demand.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return "graph build failed: " + e.Err.Error() }
func (e *BuildError) Unwrap() error { return e.Err }

type CopilotService interface {
	Generate(ctx context.Context, in GenerateInput) (gateway.Result, error)
	GraphView(ctx context.Context) (graph.View, error)
	AskGraph(ctx context.Context, in AskInput) (AskResult, error)
}

type copilotService struct {
	log     *logger.Logger
	gen     Generator
	builder GraphBuilder
	rag     Retriever
}

// NewCopilotService wires the request-facing operations. rag may be nil when
// no Neo4j credentials are configured; AskGraph then reports it.
func NewCopilotService(log *logger.Logger, gen Generator, builder GraphBuilder, rag Retriever) CopilotService {
	if log == nil {
		log = logger.Nop()
	}
	return &copilotService{
		log:     log.With("service", "CopilotService"),
		gen:     gen,
		builder: builder,
		rag:     rag,
	}
}

func (s *copilotService) Generate(ctx context.Context, in GenerateInput) (gateway.Result, error) {
	if in.Prompt == "" {
		return gateway.Result{}, apierr.BadRequest("missing_prompt", errors.New("Missing 'prompt' in JSON body."))
	}

	prompt := in.Prompt
	if in.CSVContent != "" {
		csvCtx, err := csvContext(in)
		if err != nil {
			return gateway.Result{}, apierr.BadRequest("invalid_csv", fmt.Errorf("Failed to process CSV content: %w", err))
		}
		prompt = csvCtx + prompt
	}

	res, err := s.gen.Generate(ctx, prompt, gateway.Options{})
	if err != nil {
		return gateway.Result{}, apierr.Internal("generate_failed", err)
	}
	return res, nil
}

func csvContext(in GenerateInput) (string, error) {
	delim := in.CSVDelimiter
	if delim == "" {
		delim = ","
	}
	maxRows := tabular.DefaultMaxRows
	if in.CSVMaxRows != nil {
		maxRows = *in.CSVMaxRows
	}
	columns := in.RAGColumns
	if columns == "" {
		columns = "*"
	}
	maxChars := tabular.DefaultMaxChars
	if in.RAGMaxChars != nil {
		maxChars = *in.RAGMaxChars
	}

	text := in.CSVContent
	table, err := tabular.ParseTable(&text, delim, maxRows)
	if err != nil {
		return "", err
	}
	if in.RAGTopK > 0 {
		return tabular.BuildContextPromptRanked(table, columns, maxChars, in.Prompt, in.RAGTopK), nil
	}
	return tabular.BuildContextPrompt(table, columns, maxChars), nil
}

// GraphView serves the stored document, building it first when none exists.
// A failed build comes back as *BuildError; an unreadable stored document
// does not.
func (s *copilotService) GraphView(ctx context.Context) (graph.View, error) {
	doc, err := s.builder.EnsureGraph(ctx)
	if errors.Is(err, build.ErrLoadDocument) {
		return graph.View{}, err
	}
	if err != nil {
		return graph.View{}, &BuildError{Err: err}
	}
	return graph.BuildView(*doc), nil
}

func (s *copilotService) AskGraph(ctx context.Context, in AskInput) (AskResult, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return AskResult{}, apierr.BadRequest("missing_question", errors.New("Missing 'question' in request body."))
	}
	if s.rag == nil {
		return AskResult{}, apierr.BadRequest("neo4j_not_configured",
			errors.New("Neo4j credentials not provided. Set NEO4J_USER/NEO4J_PASSWORD or NEO4J_AUTH."))
	}

	req := graphrag.Request{Question: question, TopK: graphrag.DefaultTopK, NeighborK: graphrag.DefaultNeighborK, IncludeTypes: in.IncludeTypes}
	if in.TopK != nil {
		req.TopK = *in.TopK
	}
	if in.NeighborK != nil {
		req.NeighborK = *in.NeighborK
	}
	resp, err := s.rag.Query(ctx, req)
	if err != nil {
		if errors.Is(err, graphrag.ErrInvalidInput) {
			return AskResult{}, apierr.BadRequest("missing_question", err)
		}
		return AskResult{}, apierr.Internal("graph_query_failed", err)
	}

	prompt := graphAnswerSystemPrompt + "\n\n" +
		"Question:\n" + question + "\n\nGraph Context:\n" + resp.Context + "\n\nAnswer concisely."
	res, err := s.gen.Generate(ctx, prompt, gateway.Options{})
	if err != nil {
		return AskResult{}, apierr.Internal("generate_failed", err)
	}

	return AskResult{
		Question:  question,
		Answer:    res.Content,
		Model:     res.ModelUsed,
		Context:   resp.Context,
		TopNodes:  resp.TopNodes,
		Neighbors: resp.NeighborRows,
	}, nil
}
