// Package build turns the three clinical CSV sources into a graph document
// using the completion gateway for node extraction and linking.
package build

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/graph/docstore"
	"github.com/zerochrono/copilot-backend/internal/inference/gateway"
	"github.com/zerochrono/copilot-backend/internal/llmjson"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/result"
	"github.com/zerochrono/copilot-backend/internal/tabular"
)

//go:embed prompts/*.txt
var defaultPrompts embed.FS

var errMissingSource = errors.New("category source csv not found")

// ErrLoadDocument marks an existing document that could not be read back, as
// opposed to a failed build.
var ErrLoadDocument = errors.New("build: load stored document")

type Generator interface {
	Generate(ctx context.Context, prompt string, opts gateway.Options) (gateway.Result, error)
	GenerateForLinks(ctx context.Context, prompt string) (gateway.Result, error)
}

// Syncer receives the served view of every freshly built document.
type Syncer interface {
	Sync(ctx context.Context, view graph.View) error
}

// Category is one CSV source with its extraction prompt and cache file.
type Category struct {
	Name   string
	CSV    string
	Prompt string
	Cache  string
}

var Categories = []Category{
	{Name: "diagnoses", CSV: "diagnoses.csv", Prompt: "diagnosis_summary.txt", Cache: "diagnoses.json"},
	{Name: "labs", CSV: "labs.csv", Prompt: "lab_summary_prompt.txt", Cache: "labs.json"},
	{Name: "medications", CSV: "medications.csv", Prompt: "drug_summary_prompt.txt", Cache: "medications.json"},
}

const (
	linkerPromptFile  = "linker_prompt.txt"
	linkerPromptOut   = "linker.txt"
	linkerResponseOut = "linker_response.txt"
	linksProcessedOut = "links_processed.json"
)

var linkerPreamble = strings.Join([]string{
	"You are an expert clinical knowledge graph builder.",
	"Think step-by-step. Infer clinically plausible relationships, but avoid hallucination.",
	"Prefer high-recall edges that are still clinically reasonable.",
	"Return strictly valid JSON with a top-level object containing 'Links'.",
	"Do not include any free text outside the JSON.",
}, "\n")

type Builder struct {
	gen     Generator
	store   docstore.Store
	cache   *docstore.CategoryCache
	syncer  Syncer
	log     *logger.Logger
	metrics *observability.Metrics

	root        string
	promptsDir  string
	csvMaxRows  int
	csvMaxChars int
}

func New(cfg config.GraphConfig, gen Generator, store docstore.Store, log *logger.Logger) (*Builder, error) {
	if gen == nil {
		return nil, errors.New("build: generator required")
	}
	if store == nil {
		return nil, errors.New("build: document store required")
	}
	if log == nil {
		log = logger.Nop()
	}
	root := cfg.Root
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	promptsDir := cfg.PromptsDir
	if strings.TrimSpace(promptsDir) == "" {
		promptsDir = filepath.Join(root, "prompts")
	}
	maxRows := cfg.CSVMaxRows
	if maxRows <= 0 {
		maxRows = tabular.DefaultMaxRows
	}
	maxChars := cfg.CSVMaxChars
	if maxChars <= 0 {
		maxChars = tabular.DefaultMaxChars
	}
	return &Builder{
		gen:         gen,
		store:       store,
		cache:       docstore.NewCategoryCache(root),
		log:         log.With("component", "GraphBuilder"),
		root:        root,
		promptsDir:  promptsDir,
		csvMaxRows:  maxRows,
		csvMaxChars: maxChars,
	}, nil
}

// WithSyncer registers a best-effort hook run after each successful build.
func (b *Builder) WithSyncer(s Syncer) *Builder {
	b.syncer = s
	return b
}

func (b *Builder) WithMetrics(m *observability.Metrics) *Builder {
	b.metrics = m
	return b
}

// EnsureGraph returns the stored document, building it first when none
// exists. Concurrent callers may both build; the last save wins.
func (b *Builder) EnsureGraph(ctx context.Context) (*graph.Document, error) {
	doc, err := b.store.Load(ctx)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrLoadDocument, err)
	}
	b.log.Info("graph document missing, building")
	return b.Build(ctx)
}

// Build runs the full pipeline and persists the result.
func (b *Builder) Build(ctx context.Context) (*graph.Document, error) {
	ctx, span := otel.Tracer("copilot/graph/build").Start(ctx, "build.Build")
	defer span.End()

	outcomes := make([]result.Outcome[[]graph.Node], len(Categories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(Categories))
	for i, cat := range Categories {
		i, cat := i, cat
		g.Go(func() error {
			outcomes[i] = b.buildCategory(gctx, cat)
			return nil
		})
	}
	// Category failures travel in outcomes; no goroutine returns an error.
	if err := g.Wait(); err != nil {
		b.log.Warn("category fan-out failed", "error", err)
	}

	lists := make([][]graph.Node, len(Categories))
	counts := make(map[string]int, len(Categories))
	for i, cat := range Categories {
		nodes := outcomes[i].Or(nil)
		if err := outcomes[i].Err; err != nil && !errors.Is(err, errMissingSource) {
			b.log.Warn("category build failed, using cache", "category", cat.Name, "error", err)
		}
		if len(nodes) == 0 {
			nodes = b.cache.Load(cat.Cache)
		}
		lists[i] = nodes
		counts[cat.Name] = len(nodes)
		span.SetAttributes(attribute.Int("graph.nodes."+cat.Name, len(nodes)))
	}
	diag, labs, meds := lists[0], lists[1], lists[2]

	linked := b.generateLinks(ctx, diag, labs, meds)
	if !linked.OK() {
		b.log.Warn("link generation failed", "error", linked.Err)
	}
	links := normalizeLinks(linked.Or([]graph.Link{}), diag, labs, meds)

	all := make([]graph.Node, 0, len(diag)+len(labs)+len(meds))
	all = append(all, diag...)
	all = append(all, labs...)
	all = append(all, meds...)
	doc := &graph.Document{Nodes: all, Links: links}

	if err := b.store.Save(ctx, doc); err != nil {
		b.metrics.ObserveGraphBuild(err, counts)
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, fmt.Errorf("build: save document: %w", err)
	}
	b.metrics.ObserveGraphBuild(nil, counts)
	b.log.Info("graph document built", "nodes", len(all), "links", len(links))

	if b.syncer != nil {
		err := b.syncer.Sync(ctx, graph.BuildView(*doc))
		b.metrics.ObserveGraphSync(err)
		if err != nil {
			b.log.Warn("graph sync failed", "error", err)
		}
	}
	return doc, nil
}

func (b *Builder) buildCategory(ctx context.Context, cat Category) result.Outcome[[]graph.Node] {
	csvPath := filepath.Join(b.root, cat.CSV)
	raw, err := os.ReadFile(csvPath)
	if errors.Is(err, os.ErrNotExist) {
		b.log.Debug("category source missing", "category", cat.Name, "path", csvPath)
		return result.Fail[[]graph.Node](errMissingSource)
	}
	if err != nil {
		return result.Fail[[]graph.Node](fmt.Errorf("read %s: %w", cat.CSV, err))
	}

	tmpl, err := b.promptText(cat.Prompt)
	if err != nil {
		return result.Fail[[]graph.Node](err)
	}

	text := string(raw)
	table, err := tabular.ParseTable(&text, ",", b.csvMaxRows)
	if err != nil {
		return result.Fail[[]graph.Node](err)
	}
	prompt := tabular.BuildContextPrompt(table, "*", b.csvMaxChars) + tmpl

	res, err := b.gen.Generate(ctx, prompt, gateway.Options{})
	if err != nil {
		return result.Fail[[]graph.Node](fmt.Errorf("generate %s: %w", cat.Name, err))
	}
	parsed, err := llmjson.Extract(res.Content)
	if err != nil {
		return result.Fail[[]graph.Node](fmt.Errorf("parse %s: %w", cat.Name, err))
	}
	nodes, rejected := graph.NodesFrom(parsed)
	b.metrics.ReportRejections(ctx, b.log, "nodes."+cat.Name, rejected)

	// An empty extraction keeps the previous checkpoint.
	if len(nodes) > 0 {
		if err := b.cache.Save(cat.Cache, nodes); err != nil {
			b.log.Warn("category cache write failed", "category", cat.Name, "error", err)
		}
	}
	b.log.Info("category extracted", "category", cat.Name, "nodes", len(nodes), "model", res.ModelUsed)
	return result.Ok(nodes)
}

func (b *Builder) generateLinks(ctx context.Context, diag, labs, meds []graph.Node) result.Outcome[[]graph.Link] {
	tmpl, err := b.promptText(linkerPromptFile)
	if err != nil {
		return result.Fail[[]graph.Link](err)
	}
	prompt, err := fillLinkerPrompt(tmpl, diag, labs, meds)
	if err != nil {
		return result.Fail[[]graph.Link](err)
	}
	b.writeArtifact(linkerPromptOut, []byte(prompt))

	res, err := b.gen.GenerateForLinks(ctx, prompt)
	if err != nil {
		return result.Fail[[]graph.Link](fmt.Errorf("generate links: %w", err))
	}
	b.writeArtifact(linkerResponseOut, []byte(res.Content))

	parsed, err := llmjson.Extract(res.Content)
	if err != nil {
		return result.Fail[[]graph.Link](fmt.Errorf("parse links: %w", err))
	}
	obj, _ := parsed.(map[string]any)
	if _, ok := obj["Links"].([]any); !ok {
		return result.Fail[[]graph.Link](errors.New("linker reply has no Links array"))
	}
	links, rejected := graph.LinksFrom(parsed)
	b.metrics.ReportRejections(ctx, b.log, "links", rejected)
	if out, err := docstore.Encode(links); err == nil {
		b.writeArtifact(linksProcessedOut, out)
	}
	return result.Ok(links)
}

func fillLinkerPrompt(tmpl string, diag, labs, meds []graph.Node) (string, error) {
	filled := linkerPreamble + "\n\n" + tmpl
	for _, r := range []struct {
		placeholder string
		nodes       []graph.Node
	}{
		{"<PATIENT_DIAGNOSES>", diag},
		{"<PATIENT_LABS>", labs},
		{"<PATIENT_MEDICATIONS>", meds},
	} {
		nodes := r.nodes
		if nodes == nil {
			nodes = []graph.Node{}
		}
		b, err := docstore.Encode(nodes)
		if err != nil {
			return "", err
		}
		filled = strings.Replace(filled, r.placeholder, string(b), 1)
	}
	return filled, nil
}

// promptText reads a template from the prompts dir, then the project root,
// then the built-in default.
func (b *Builder) promptText(name string) (string, error) {
	for _, dir := range []string{b.promptsDir, b.root} {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(raw), nil
		}
	}
	raw, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %s not found", name)
	}
	return string(raw), nil
}

// writeArtifact leaves a debugging copy under the project root; failures are
// only logged.
func (b *Builder) writeArtifact(name string, data []byte) {
	if err := os.WriteFile(filepath.Join(b.root, name), data, 0o644); err != nil {
		b.log.Debug("artifact write failed", "file", name, "error", err)
	}
}

// normalizeLinks resolves missing endpoint types from the category title sets
// (diagnosis, then lab, then medication) and clamps values into [0,1]. Links
// with empty endpoints are kept.
func normalizeLinks(links []graph.Link, diag, labs, meds []graph.Node) []graph.Link {
	diagSet, labSet, medSet := titleSet(diag), titleSet(labs), titleSet(meds)
	resolve := func(raw, title string) string {
		if t := strings.ToLower(strings.TrimSpace(raw)); t != "" {
			return t
		}
		key := strings.ToLower(title)
		switch {
		case diagSet[key]:
			return "diagnosis"
		case labSet[key]:
			return "lab"
		case medSet[key]:
			return "medication"
		default:
			return ""
		}
	}

	out := make([]graph.Link, 0, len(links))
	for _, l := range links {
		src := strings.TrimSpace(l.Source)
		tgt := strings.TrimSpace(l.Target)
		n := graph.Link{
			Source:      src,
			SourceType:  resolve(l.SourceType, src),
			Target:      tgt,
			TargetType:  resolve(l.TargetType, tgt),
			Description: strings.TrimSpace(l.Description),
		}
		if l.Value != nil {
			v := graph.Clamp01(*l.Value)
			n.Value = &v
		}
		out = append(out, n)
	}
	return out
}

func titleSet(nodes []graph.Node) map[string]bool {
	set := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if t := strings.ToLower(strings.TrimSpace(n.Title)); t != "" {
			set[t] = true
		}
	}
	return set
}
