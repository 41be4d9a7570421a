// Package graphrag answers free-text questions with graph context: full-text
// search over node text, a substring-scoring fallback, neighbor expansion
// along ASSOCIATED_WITH, and a rendered context block for the completion
// gateway.
package graphrag

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/result"
)

var ErrInvalidInput = errors.New("graphrag: question required")

const (
	DefaultTopK      = 6
	DefaultNeighborK = 4
)

const (
	fulltextQuery = "CALL db.index.fulltext.queryNodes($index, $q, {limit: $k}) " +
		"YIELD node, score RETURN id(node) AS id, labels(node)[0] AS label, node.title AS title, node.body AS body, score"

	substringQuery = "MATCH (n) WHERE ANY(l IN labels(n) WHERE l IN split($labels, '|')) " +
		"RETURN id(n) AS id, labels(n)[0] AS label, n.title AS title, n.body AS body"

	// LIMIT applies to the whole result, not per source node.
	neighborQuery = "MATCH (n) WHERE id(n) IN $ids " +
		"OPTIONAL MATCH (n)-[r:ASSOCIATED_WITH]-(m) " +
		"WITH n, r, m ORDER BY coalesce(r.weight, 1.0) DESC LIMIT $k " +
		"RETURN id(n) AS src_id, labels(n)[0] AS src_label, n.title AS src_title, n.body AS src_body, " +
		"id(m) AS nbr_id, labels(m)[0] AS nbr_label, m.title AS nbr_title, m.body AS nbr_body, properties(r) AS rel_props"
)

// Request is a retrieval call. Zero TopK/NeighborK take the engine defaults;
// negative values mean none.
type Request struct {
	Question     string
	TopK         int
	NeighborK    int
	IncludeTypes []string
}

type TopNode struct {
	NodeID int64   `json:"node_id"`
	Label  string  `json:"label"`
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	Score  float64 `json:"score"`
}

// NeighborRow is one row of the neighbor query. Nbr fields are nil when the
// source node has no neighbor.
type NeighborRow struct {
	SrcID    int64          `json:"src_id"`
	SrcLabel string         `json:"src_label"`
	SrcTitle string         `json:"src_title"`
	SrcBody  string         `json:"src_body"`
	NbrID    *int64         `json:"nbr_id"`
	NbrLabel *string        `json:"nbr_label"`
	NbrTitle *string        `json:"nbr_title"`
	NbrBody  *string        `json:"nbr_body"`
	RelProps map[string]any `json:"rel_props"`
}

type Response struct {
	TopNodes     []TopNode     `json:"top_nodes"`
	NeighborRows []NeighborRow `json:"neighbors"`
	Context      string        `json:"context"`
}

type Engine struct {
	store     Store
	log       *logger.Logger
	metrics   *observability.Metrics
	topK      int
	neighborK int
}

func New(store Store, cfg config.RetrievalConfig, log *logger.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("graphrag: store required")
	}
	if log == nil {
		log = logger.Nop()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	neighborK := cfg.NeighborK
	if neighborK <= 0 {
		neighborK = DefaultNeighborK
	}
	return &Engine{store: store, log: log.With("component", "GraphRAG"), topK: topK, neighborK: neighborK}, nil
}

func (e *Engine) WithMetrics(m *observability.Metrics) *Engine {
	e.metrics = m
	return e
}

// Query runs the full retrieval pipeline on one session.
func (e *Engine) Query(ctx context.Context, req Request) (resp Response, err error) {
	question := req.Question
	if strings.TrimSpace(question) == "" {
		return Response{}, ErrInvalidInput
	}
	topK := limit(req.TopK, e.topK)
	neighborK := limit(req.NeighborK, e.neighborK)
	labels := includeLabels(req.IncludeTypes)

	ctx, span := otel.Tracer("copilot/graphrag").Start(ctx, "graphrag.Query")
	defer span.End()
	path := "none"
	start := time.Now()
	defer func() {
		e.metrics.ObserveRetrieval(path, err, len(resp.TopNodes), time.Since(start))
	}()
	span.SetAttributes(attribute.Int("graphrag.top_k", topK), attribute.Int("graphrag.neighbor_k", neighborK))

	sess, err := e.store.Session(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session")
		return Response{}, err
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil {
			e.log.Debug("session close failed", "error", cerr)
		}
	}()

	for _, o := range ensureIndexes(ctx, sess) {
		if !o.OK() {
			e.log.Debug("fulltext index ensure failed", "error", o.Err)
		}
	}

	top := e.fulltextSearch(ctx, sess, question, topK, labels)
	if len(top) > 0 {
		path = "fulltext"
	} else {
		path = "substring"
		top, err = substringSearch(ctx, sess, question, topK, labels)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "substring search")
			return Response{}, err
		}
	}

	neighbors := []NeighborRow{}
	if len(top) > 0 {
		neighbors, err = neighborRows(ctx, sess, top, neighborK)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "neighbors")
			return Response{}, err
		}
	}
	span.SetAttributes(attribute.Int("graphrag.nodes", len(top)), attribute.Int("graphrag.neighbors", len(neighbors)))

	return Response{
		TopNodes:     top,
		NeighborRows: neighbors,
		Context:      BuildContext(top, neighbors),
	}, nil
}

func limit(requested, def int) int {
	switch {
	case requested == 0:
		return def
	case requested < 0:
		return 0
	default:
		return requested
	}
}

func includeLabels(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), graph.StoreLabels...)
	}
	return out
}

// ensureIndexes creates the per-label full-text indexes. Each attempt is
// independent.
func ensureIndexes(ctx context.Context, sess Session) []result.Outcome[struct{}] {
	out := make([]result.Outcome[struct{}], 0, len(graph.StoreLabels))
	for _, label := range graph.StoreLabels {
		stmt := "CREATE FULLTEXT INDEX " + indexName(label) + " IF NOT EXISTS FOR (n:" + label + ") ON EACH [n.title, n.body]"
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			out = append(out, result.Fail[struct{}](err))
			continue
		}
		out = append(out, result.Ok(struct{}{}))
	}
	return out
}

func indexName(label string) string { return "nodeText_" + label }

func (e *Engine) fulltextSearch(ctx context.Context, sess Session, question string, topK int, labels []string) []TopNode {
	var found []TopNode
	for _, label := range labels {
		o := searchLabel(ctx, sess, question, topK, label)
		if !o.OK() {
			e.log.Debug("fulltext query failed", "label", label, "error", o.Err)
		}
		found = append(found, o.Or(nil)...)
	}

	// Keep the best score per node, in first-seen order.
	best := map[int64]int{}
	uniq := make([]TopNode, 0, len(found))
	for _, n := range found {
		if i, ok := best[n.NodeID]; ok {
			if n.Score > uniq[i].Score {
				uniq[i] = n
			}
			continue
		}
		best[n.NodeID] = len(uniq)
		uniq = append(uniq, n)
	}
	sort.SliceStable(uniq, func(i, j int) bool { return uniq[i].Score > uniq[j].Score })
	if len(uniq) > topK {
		uniq = uniq[:topK]
	}
	return uniq
}

func searchLabel(ctx context.Context, sess Session, question string, topK int, label string) result.Outcome[[]TopNode] {
	recs, err := sess.Run(ctx, fulltextQuery, map[string]any{
		"index": indexName(label),
		"q":     question,
		"k":     int64(topK),
	})
	if err != nil {
		return result.Fail[[]TopNode](err)
	}
	nodes := make([]TopNode, 0, len(recs))
	for _, r := range recs {
		nodes = append(nodes, TopNode{
			NodeID: cast.ToInt64(r["id"]),
			Label:  text(r["label"]),
			Title:  text(r["title"]),
			Body:   text(r["body"]),
			Score:  cast.ToFloat64(r["score"]),
		})
	}
	return result.Ok(nodes)
}

// substringSearch scores every candidate by summed occurrence counts of the
// question's terms in its normalized title and body.
func substringSearch(ctx context.Context, sess Session, question string, topK int, labels []string) ([]TopNode, error) {
	recs, err := sess.Run(ctx, substringQuery, map[string]any{"labels": strings.Join(labels, "|")})
	if err != nil {
		return nil, err
	}
	terms := strings.Split(normalizeText(question), " ")
	out := []TopNode{}
	for _, r := range recs {
		title, body := text(r["title"]), text(r["body"])
		hay := normalizeText(title + " " + body)
		score := 0
		for _, term := range terms {
			if term != "" {
				score += strings.Count(hay, term)
			}
		}
		if score == 0 {
			continue
		}
		out = append(out, TopNode{
			NodeID: cast.ToInt64(r["id"]),
			Label:  text(r["label"]),
			Title:  title,
			Body:   body,
			Score:  float64(score),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func neighborRows(ctx context.Context, sess Session, top []TopNode, neighborK int) ([]NeighborRow, error) {
	ids := make([]int64, 0, len(top))
	for _, n := range top {
		ids = append(ids, n.NodeID)
	}
	recs, err := sess.Run(ctx, neighborQuery, map[string]any{"ids": ids, "k": int64(neighborK)})
	if err != nil {
		return nil, err
	}
	rows := make([]NeighborRow, 0, len(recs))
	for _, r := range recs {
		row := NeighborRow{
			SrcID:    cast.ToInt64(r["src_id"]),
			SrcLabel: text(r["src_label"]),
			SrcTitle: text(r["src_title"]),
			SrcBody:  text(r["src_body"]),
			NbrLabel: optional(r["nbr_label"]),
			NbrTitle: optional(r["nbr_title"]),
			NbrBody:  optional(r["nbr_body"]),
			RelProps: map[string]any{},
		}
		if v := r["nbr_id"]; v != nil {
			id := cast.ToInt64(v)
			row.NbrID = &id
		}
		if props, ok := r["rel_props"].(map[string]any); ok && props != nil {
			row.RelProps = props
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return cast.ToString(v)
}

func optional(v any) *string {
	s := text(v)
	if s == "" {
		return nil
	}
	return &s
}
