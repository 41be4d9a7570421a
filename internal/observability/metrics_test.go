package observability

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zerochrono/copilot-backend/internal/config"
)

func TestNewMetricsDisabledIsNil(t *testing.T) {
	m := NewMetrics(config.MetricsConfig{})
	if m != nil {
		t.Fatalf("expected nil metrics when disabled")
	}
	// nil receivers are no-ops
	m.ObserveAPI("GET", "/health", "200", time.Millisecond)
	m.ObserveLLMRequest("chat", nil, time.Second)
	m.ObserveGraphBuild(nil, map[string]int{"labs": 1})
	m.ObserveRetrieval("fulltext", nil, 3, time.Millisecond)

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestWritePrometheus(t *testing.T) {
	m := NewMetrics(config.MetricsConfig{Enabled: true})
	m.ObserveAPI("POST", "/generate", "200", 30*time.Millisecond)
	m.ObserveAPI("POST", "/generate", "200", 30*time.Millisecond)
	m.ObserveLLMRequest("chat", errors.New("boom"), 2*time.Second)
	m.ObserveGraphBuild(nil, map[string]int{"diagnoses": 4})
	m.ObserveRetrieval("substring", nil, 2, 5*time.Millisecond)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE copilot_api_requests_total counter",
		`copilot_api_requests_total{method="POST",route="/generate",status="200"} 2`,
		`copilot_api_request_duration_seconds_bucket{method="POST",route="/generate",status="200",le="0.05"} 2`,
		`copilot_api_request_duration_seconds_count{method="POST",route="/generate",status="200"} 2`,
		`copilot_llm_requests_total{style="chat",status="error"} 1`,
		`copilot_graph_builds_total{status="ok"} 1`,
		`copilot_graph_category_nodes{category="diagnoses"} 4`,
		`copilot_graphrag_queries_total{path="substring",status="ok"} 1`,
		"copilot_api_inflight_requests 0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("got %s", got)
	}
	if withLe("", "1") != `{le="1"}` {
		t.Fatalf("withLe empty")
	}
}

func TestOtlpHeaders(t *testing.T) {
	h := otlpHeaders(" a=1, bad ,b = 2,c=")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("headers=%v", h)
	}
	if otlpHeaders("") != nil {
		t.Fatalf("expected nil")
	}
}
