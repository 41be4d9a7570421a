package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

func TestReportRejectionsCountsByIssue(t *testing.T) {
	m := NewMetrics(config.MetricsConfig{Enabled: true})
	_, rejected := graph.NodesFrom([]any{
		"plain string",
		map[string]any{"title": ""},
		map[string]any{"title": "Ok"},
		42,
	})
	rejected = append(rejected, errors.New("something else"))

	m.ReportRejections(context.Background(), logger.Nop(), "nodes.labs", rejected)

	if got := m.dataQuality.Value("nodes.labs", "not_object"); got != 2 {
		t.Fatalf("not_object=%v", got)
	}
	if got := m.dataQuality.Value("nodes.labs", "missing_title"); got != 1 {
		t.Fatalf("missing_title=%v", got)
	}
	if got := m.dataQuality.Value("nodes.labs", "validation_error"); got != 1 {
		t.Fatalf("validation_error=%v", got)
	}
}

func TestReportRejectionsNilMetrics(t *testing.T) {
	var m *Metrics
	m.ReportRejections(context.Background(), logger.Nop(), "links", []error{errors.New("x")})
	m.ReportRejections(context.Background(), nil, "links", nil)
}
