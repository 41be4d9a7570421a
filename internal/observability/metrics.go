package observability

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zerochrono/copilot-backend/internal/config"
)

// Metrics is a small Prometheus text-format registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec

	graphBuilds     *CounterVec
	graphBuildNodes *GaugeVec
	graphSyncs      *CounterVec

	ragQueries *CounterVec
	ragLatency *HistogramVec
	ragNodes   *HistogramVec

	dataQuality *CounterVec
}

func NewMetrics(cfg config.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	return &Metrics{
		apiRequests: NewCounterVec("copilot_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("copilot_api_request_duration_seconds", "API request latency in seconds by method/route/status.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("copilot_api_inflight_requests", "In-flight API requests."),

		llmRequests: NewCounterVec("copilot_llm_requests_total", "Completion calls by call style and outcome.", []string{"style", "status"}),
		llmLatency: NewHistogramVec("copilot_llm_request_duration_seconds", "Completion call latency in seconds.", []string{"style", "status"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}),

		graphBuilds:     NewCounterVec("copilot_graph_builds_total", "Graph document builds by outcome.", []string{"status"}),
		graphBuildNodes: NewGaugeVec("copilot_graph_category_nodes", "Nodes per category in the last build.", []string{"category"}),
		graphSyncs:      NewCounterVec("copilot_graph_syncs_total", "Neo4j syncs by outcome.", []string{"status"}),

		ragQueries: NewCounterVec("copilot_graphrag_queries_total", "Retrieval queries by search path and outcome.", []string{"path", "status"}),
		ragLatency: NewHistogramVec("copilot_graphrag_query_duration_seconds", "Retrieval latency in seconds.", []string{"path"}, latency),
		ragNodes: NewHistogramVec("copilot_graphrag_top_nodes", "Top nodes returned per retrieval.", []string{"path"},
			[]float64{0, 1, 2, 4, 6, 10, 20}),

		dataQuality: NewCounterVec("copilot_data_quality_issues_total", "Rejected model output entries by stage and issue.", []string{"stage", "issue"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.graphBuilds, m.graphBuildNodes, m.graphSyncs,
		m.ragQueries, m.ragLatency, m.ragNodes,
		m.dataQuality,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveLLMRequest records one upstream call; style is "chat" or
// "responses".
func (m *Metrics) ObserveLLMRequest(style string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	style = strings.TrimSpace(style)
	if style == "" {
		style = "unknown"
	}
	status := statusOf(err)
	m.llmRequests.Inc(style, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), style, status)
	}
}

func (m *Metrics) ObserveGraphBuild(err error, nodesPerCategory map[string]int) {
	if m == nil {
		return
	}
	m.graphBuilds.Inc(statusOf(err))
	for cat, n := range nodesPerCategory {
		m.graphBuildNodes.Set(float64(n), cat)
	}
}

func (m *Metrics) ObserveGraphSync(err error) {
	if m == nil {
		return
	}
	m.graphSyncs.Inc(statusOf(err))
}

// ObserveRetrieval records one retrieval; path is "fulltext", "substring" or
// "none".
func (m *Metrics) ObserveRetrieval(path string, err error, topNodes int, dur time.Duration) {
	if m == nil {
		return
	}
	if path == "" {
		path = "none"
	}
	m.ragQueries.Inc(path, statusOf(err))
	m.ragLatency.Observe(dur.Seconds(), path)
	if err == nil {
		m.ragNodes.Observe(float64(topNodes), path)
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
