package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxRows  = 1000
	DefaultMaxChars = 4000
	minPromptChars  = 500
)

var ErrNilText = errors.New("csv text is nil")

// ParseError wraps anything that stops CSV text from becoming a Table.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e == nil || e.Err == nil {
		return "tabular: parse error"
	}
	return "tabular: parse error: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

type Table struct {
	Header []string
	Rows   [][]string
}

// ParseTable reads delimited text with relaxed quoting and ragged rows. The
// first record is the header; at most max(1, maxRows) data rows are kept.
// Every cell is trimmed.
func ParseTable(text *string, delimiter string, maxRows int) (Table, error) {
	if text == nil {
		return Table{}, &ParseError{Err: ErrNilText}
	}
	if maxRows < 1 {
		maxRows = 1
	}

	comma, err := delimiterRune(delimiter)
	if err != nil {
		return Table{}, &ParseError{Err: err}
	}

	r := csv.NewReader(strings.NewReader(*text))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var t Table
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, &ParseError{Err: err}
		}
		if first {
			t.Header = trimCells(rec)
			first = false
			continue
		}
		if len(t.Rows) >= maxRows {
			break
		}
		t.Rows = append(t.Rows, trimCells(rec))
	}
	if t.Header == nil {
		t.Header = []string{}
	}
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	return t, nil
}

// delimiterRune maps a delimiter option to the reader's separator. The empty
// string means comma and the two-character escape `\t` means tab.
func delimiterRune(d string) (rune, error) {
	if d == "" {
		return ',', nil
	}
	if d == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(d) > 1 {
		return 0, fmt.Errorf("unsupported multi-character delimiter %q", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return ',', nil
	}
	return r, nil
}

func trimCells(rec []string) []string {
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// SelectColumns resolves a column selector against header. "*" or blank
// selects everything; otherwise it is a comma list of zero-based indices or
// case-insensitive header names. Unresolved entries are dropped, duplicates
// keep their first position, and an empty result means every column.
func SelectColumns(header []string, spec string) []int {
	if len(header) == 0 {
		return []int{}
	}
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "*" {
		return allColumns(len(header))
	}

	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(h)
	}

	seen := map[int]bool{}
	out := []int{}
	for _, part := range strings.Split(spec, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		idx := -1
		if isDigits(name) {
			if n, err := strconv.Atoi(name); err == nil && n < len(header) {
				idx = n
			}
		} else {
			for i, h := range lower {
				if h == name {
					idx = i
					break
				}
			}
		}
		if idx < 0 || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	if len(out) == 0 {
		return allColumns(len(header))
	}
	return out
}

func allColumns(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func rowText(row []string, indices []int) string {
	if len(indices) == 0 {
		return strings.Join(row, " | ")
	}
	cells := make([]string, len(indices))
	for j, i := range indices {
		if i < len(row) {
			cells[j] = row[i]
		}
	}
	return strings.Join(cells, " | ")
}

// RenderTable renders every row of t over the given column indices.
func RenderTable(t Table, indices []int, maxChars int) string {
	return renderRows(t, allColumns(len(t.Rows)), indices, maxChars)
}

// renderRows stops adding rows once the running length (newlines counted)
// passes maxChars, then hard-truncates to maxChars with a "..." marker.
func renderRows(t Table, rowOrder []int, indices []int, maxChars int) string {
	header := t.Header
	if len(indices) > 0 {
		header = make([]string, len(indices))
		for j, i := range indices {
			if i < len(t.Header) {
				header[j] = t.Header[i]
			}
		}
	}

	dashes := make([]string, len(header))
	for i, h := range header {
		n := utf8.RuneCountInString(h)
		if n > 20 {
			n = 20
		}
		if n < 3 {
			n = 3
		}
		dashes[i] = strings.Repeat("-", n)
	}

	lines := []string{strings.Join(header, " | "), strings.Join(dashes, " | ")}
	running := utf8.RuneCountInString(lines[0]) + 1 + utf8.RuneCountInString(lines[1]) + 1
	for _, ri := range rowOrder {
		if ri < 0 || ri >= len(t.Rows) {
			continue
		}
		line := rowText(t.Rows[ri], indices)
		lines = append(lines, line)
		running += utf8.RuneCountInString(line) + 1
		if running > maxChars {
			break
		}
	}

	table := strings.Join(lines, "\n")
	if utf8.RuneCountInString(table) > maxChars {
		keep := maxChars - 3
		if keep < 0 {
			keep = 0
		}
		table = string([]rune(table)[:keep]) + "..."
	}
	return table
}

// BuildContextPrompt wraps the rendered table in the fixed grounding preamble.
// maxChars is floored at 500.
func BuildContextPrompt(t Table, columnsSpec string, maxChars int) string {
	if maxChars < minPromptChars {
		maxChars = minPromptChars
	}
	indices := SelectColumns(t.Header, columnsSpec)
	table := RenderTable(t, indices, maxChars)
	return contextPreamble(fmt.Sprintf("all %d rows", len(t.Rows)), table)
}

func contextPreamble(annotation, table string) string {
	return "You are given a CSV-derived context table.\n" +
		"Use this table as authoritative context if it answers the question.\n\n" +
		"CSV Context (" + annotation + "):\n" + table + "\n\n"
}
