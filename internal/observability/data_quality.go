package observability

import (
	"context"
	"errors"
	"strings"

	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/ctxutil"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

// ReportRejections counts entries of model output that failed the validating
// parse and logs a sample. A nil *Metrics still logs.
func (m *Metrics) ReportRejections(ctx context.Context, log *logger.Logger, stage string, rejected []error) {
	if len(rejected) == 0 {
		return
	}
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}

	issueCounts := map[string]int{}
	samples := make([]string, 0, 3)
	for _, err := range rejected {
		if err == nil {
			continue
		}
		if len(samples) < 3 {
			samples = append(samples, err.Error())
		}
		issue := classifyRejection(err)
		issueCounts[issue]++
		if m != nil {
			m.dataQuality.Inc(stage, issue)
		}
	}

	if log == nil {
		return
	}
	fields := []interface{}{"stage", stage, "issues", issueCounts, "sample_errors", samples}
	fields = append(fields, ctxutil.LogFields(ctx)...)
	log.Warn("data quality issue detected", fields...)
}

func classifyRejection(err error) string {
	var rej *graph.Rejection
	if !errors.As(err, &rej) {
		return "validation_error"
	}
	reason := strings.ToLower(rej.Reason)
	switch {
	case strings.Contains(reason, "not an object"):
		return "not_object"
	case strings.Contains(reason, "no title"):
		return "missing_title"
	default:
		return "validation_error"
	}
}
