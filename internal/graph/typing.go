package graph

import (
	"regexp"
	"strings"
)

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// NodeTypeFrom maps a raw category tag to a display type. Unknown or empty
// tags are guidelines.
func NodeTypeFrom(raw string) NodeType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "diagnosis", "condition":
		return TypeCondition
	case "test", "test results", "lab", "labtest", "lab test":
		return TypeLabTest
	case "medication", "drug":
		return TypeDrug
	default:
		return TypeGuideline
	}
}

// EdgeTypeFrom resolves both raw tags and looks the pair up in the
// directional edge table.
func EdgeTypeFrom(rawSource, rawTarget string) EdgeType {
	return edgeTypeFor(NodeTypeFrom(rawSource), NodeTypeFrom(rawTarget))
}

func edgeTypeFor(src, tgt NodeType) EdgeType {
	switch {
	case src == TypeCondition && tgt == TypeLabTest:
		return EdgeHasLab
	case src == TypeCondition && tgt == TypeDrug:
		return EdgePrescribed
	case src == TypeLabTest && tgt == TypeDrug:
		return EdgePrescribed
	case src == TypeDrug && tgt == TypeDrug:
		return EdgeInteractsWith
	case src == TypePatient && tgt == TypeAppointment:
		return EdgeHasAppointment
	default:
		return EdgeGuideline
	}
}

func Slugify(title string) string {
	s := nonSlugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-")
	return strings.Trim(s, "-")
}

// NodeID is lower(type) + ":" + slug(title).
func NodeID(t NodeType, title string) string {
	return strings.ToLower(string(t)) + ":" + Slugify(title)
}
