package graph

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Rejection explains why a raw value did not become a Node or Link.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "graph: rejected: " + r.Reason }

// ParseNode accepts an object with a non-empty title. Title, body and tags are
// coerced to trimmed strings.
func ParseNode(raw any) (Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Node{}, &Rejection{Reason: "node is not an object"}
	}
	n := Node{
		Title: str(m["title"]),
		Body:  str(m["body"]),
		Tags:  str(m["tags"]),
	}
	if n.Title == "" {
		return Node{}, &Rejection{Reason: "node has no title"}
	}
	return n, nil
}

// ParseLink accepts any object. Endpoints may be empty; the serving layer
// drops such links. Types come from source_type or sourceType (trimmed, not
// resolved). Value prefers "value" over "confidence" and is nil unless it
// converts to a finite number.
func ParseLink(raw any) (Link, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Link{}, &Rejection{Reason: "link is not an object"}
	}
	return Link{
		Source:      str(m["source"]),
		SourceType:  firstNonEmpty(str(m["source_type"]), str(m["sourceType"])),
		Target:      str(m["target"]),
		TargetType:  firstNonEmpty(str(m["target_type"]), str(m["targetType"])),
		Description: str(m["description"]),
		Value:       number(firstNonNil(m["value"], m["confidence"])),
	}, nil
}

// NodesFrom unwraps a model reply that is either a bare array of nodes or an
// object with a Nodes field. Entries that fail ParseNode are returned as
// rejections.
func NodesFrom(v any) ([]Node, []error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items, _ = t["Nodes"].([]any)
	}
	nodes := make([]Node, 0, len(items))
	var rejected []error
	for _, it := range items {
		n, err := ParseNode(it)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, rejected
}

// LinksFrom reads the Links field of a linker reply.
func LinksFrom(v any) ([]Link, []error) {
	obj, _ := v.(map[string]any)
	items, _ := obj["Links"].([]any)
	links := make([]Link, 0, len(items))
	var rejected []error
	for _, it := range items {
		l, err := ParseLink(it)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		links = append(links, l)
	}
	return links, rejected
}

// UnmarshalJSON reads documents written by older tools too: nodes and links
// pass through the same validating parse as model output.
func (d *Document) UnmarshalJSON(b []byte) error {
	var raw struct {
		Nodes any `json:"Nodes"`
		Links any `json:"Links"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Nodes, _ = NodesFrom(raw.Nodes)
	d.Links = []Link{}
	if items, ok := raw.Links.([]any); ok {
		for _, it := range items {
			if l, err := ParseLink(it); err == nil {
				d.Links = append(d.Links, l)
			}
		}
	}
	return nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func number(v any) *float64 {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// Clamp01 pins f into [0,1].
func Clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
