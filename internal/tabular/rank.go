package tabular

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

func splitWords(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

type RankedRow struct {
	Index int
	Score int
}

// RankRows scores each row by how many prompt words (repeats included) occur
// in the row's word set over the selected columns. Rows scoring zero are
// dropped; the rest are ordered by score desc then index asc and capped at
// max(1, topK).
func RankRows(t Table, indices []int, prompt string, topK int) []RankedRow {
	words := splitWords(prompt)
	if len(words) == 0 {
		return []RankedRow{}
	}

	scored := []RankedRow{}
	for i, row := range t.Rows {
		rowWords := map[string]struct{}{}
		for _, w := range splitWords(rowText(row, indices)) {
			rowWords[w] = struct{}{}
		}
		if len(rowWords) == 0 {
			continue
		}
		score := 0
		for _, w := range words {
			if _, ok := rowWords[w]; ok {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, RankedRow{Index: i, Score: score})
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Index < scored[b].Index
	})

	if topK < 1 {
		topK = 1
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// BuildContextPromptRanked renders only the rows most related to prompt. When
// nothing overlaps it falls back to BuildContextPrompt over every row.
func BuildContextPromptRanked(t Table, columnsSpec string, maxChars int, prompt string, topK int) string {
	if maxChars < minPromptChars {
		maxChars = minPromptChars
	}
	indices := SelectColumns(t.Header, columnsSpec)
	ranked := RankRows(t, indices, prompt, topK)
	if len(ranked) == 0 {
		return BuildContextPrompt(t, columnsSpec, maxChars)
	}
	order := make([]int, len(ranked))
	for i, r := range ranked {
		order[i] = r.Index
	}
	table := renderRows(t, order, indices, maxChars)
	return contextPreamble(fmt.Sprintf("top %d of %d rows", len(ranked), len(t.Rows)), table)
}
