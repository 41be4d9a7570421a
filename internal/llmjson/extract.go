// Package llmjson recovers JSON values from model output that may carry prose
// around the payload.
package llmjson

import (
	"encoding/json"
	"strings"
)

// Extract parses text as JSON. On failure it retries with the span from the
// first '{' to the last '}', then the span from the first '[' to the last ']'.
// If nothing parses, the error from the direct attempt is returned.
//
// The spans are greedy, so text holding two separate JSON values can be
// mis-extracted.
func Extract(text string) (any, error) {
	var v any
	firstErr := json.Unmarshal([]byte(text), &v)
	if firstErr == nil {
		return v, nil
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		span, ok := greedySpan(text, pair[0], pair[1])
		if !ok {
			continue
		}
		var sv any
		if err := json.Unmarshal([]byte(span), &sv); err == nil {
			return sv, nil
		}
	}
	return nil, firstErr
}

func greedySpan(text, open, close string) (string, bool) {
	start := strings.Index(text, open)
	end := strings.LastIndex(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
