package graphrag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const maxBodyRunes = 400

// BuildContext renders ranked nodes and their neighbor relationships into the
// text block handed to the completion gateway. Rows without a neighbor are
// skipped.
func BuildContext(top []TopNode, rows []NeighborRow) string {
	lines := []string{"Relevant Nodes:"}
	for i, n := range top {
		body := strings.TrimSpace(n.Body)
		if r := []rune(body); len(r) > maxBodyRunes {
			body = string(r[:maxBodyRunes]) + "…"
		}
		lines = append(lines, strconv.Itoa(i+1)+". ["+n.Label+"] "+n.Title+"\n"+body)
	}
	if len(rows) > 0 {
		lines = append(lines, "\nNeighbor Relationships:")
		for _, row := range rows {
			if row.NbrID == nil {
				continue
			}
			src := "[" + row.SrcLabel + "] " + row.SrcTitle
			tgt := "[" + deref(row.NbrLabel) + "] " + deref(row.NbrTitle)
			lines = append(lines, "- "+src+" --ASSOCIATED_WITH--> "+tgt+" :: "+relDescription(row.RelProps))
		}
	}
	return strings.Join(lines, "\n")
}

func relDescription(props map[string]any) string {
	if d, ok := props["description"]; ok && d != nil {
		if s := fmt.Sprint(d); s != "" {
			return s
		}
	}
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Sprint(props)
	}
	return string(b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
