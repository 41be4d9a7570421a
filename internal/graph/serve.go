package graph

import (
	"fmt"
	"strings"
)

const defaultConfidence = 0.8

// BuildView derives the served graph from a document. Every titled node is
// seeded first (first id wins), then each link with two non-empty endpoints
// becomes an edge, synthesizing endpoint nodes that were not seeded. Edge
// type comes from the link's raw type strings.
func BuildView(doc Document) View {
	byTitle := map[string]Node{}
	for _, n := range doc.Nodes {
		if t := strings.ToLower(strings.TrimSpace(n.Title)); t != "" {
			byTitle[t] = n
		}
	}

	v := View{Nodes: []ServedNode{}, Edges: []Edge{}}
	seen := map[string]bool{}
	add := func(sn ServedNode) {
		if seen[sn.ID] {
			return
		}
		seen[sn.ID] = true
		v.Nodes = append(v.Nodes, sn)
	}

	for _, n := range doc.Nodes {
		label := strings.TrimSpace(n.Title)
		if label == "" {
			continue
		}
		tags := strings.TrimSpace(n.Tags)
		t := NodeTypeFrom(tags)
		body := n.Body
		add(ServedNode{ID: NodeID(t, label), Type: t, Label: label, Body: &body, Tags: tags})
	}

	for idx, l := range doc.Links {
		src := strings.TrimSpace(l.Source)
		tgt := strings.TrimSpace(l.Target)
		if src == "" || tgt == "" {
			continue
		}
		srcRaw := strings.TrimSpace(l.SourceType)
		tgtRaw := strings.TrimSpace(l.TargetType)
		srcType := NodeTypeFrom(srcRaw)
		tgtType := NodeTypeFrom(tgtRaw)
		srcID := NodeID(srcType, src)
		tgtID := NodeID(tgtType, tgt)

		if !seen[srcID] {
			add(stubNode(srcID, srcType, src, byTitle))
		}
		if !seen[tgtID] {
			add(stubNode(tgtID, tgtType, tgt, byTitle))
		}

		conf := defaultConfidence
		if l.Value != nil {
			conf = *l.Value
		}
		v.Edges = append(v.Edges, Edge{
			ID:          fmt.Sprintf("edge-%d", idx),
			Source:      srcID,
			Target:      tgtID,
			Type:        EdgeTypeFrom(srcRaw, tgtRaw),
			Confidence:  Clamp01(conf),
			Description: strings.TrimSpace(l.Description),
		})
	}
	return v
}

func stubNode(id string, t NodeType, label string, byTitle map[string]Node) ServedNode {
	sn := ServedNode{ID: id, Type: t, Label: label}
	if info, ok := byTitle[strings.ToLower(label)]; ok {
		if info.Body != "" {
			body := info.Body
			sn.Body = &body
		}
		sn.Tags = info.Tags
	}
	return sn
}
