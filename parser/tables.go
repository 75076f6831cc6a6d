package parser

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TableContinuationChecker resolves ambiguous cross-page table continuations
// by consulting an LLM with the two candidate headers. It is only called
// when the local heuristics (column-count match plus header-token Jaccard
// similarity) cannot decide on their own.
type TableContinuationChecker interface {
	IsContinuation(ctx context.Context, prevHeader, nextHeader []string) (bool, error)
}

// jaccardAmbiguityThreshold is the minimum header-token Jaccard similarity
// required before an LLM consult is even attempted. Below this, two tables
// are treated as unrelated without spending a model call.
const jaccardAmbiguityThreshold = 0.5

// extractPageTablesSafe wraps extractPageTables with panic recovery so that
// one page's malformed content stream cannot abort extraction for the whole
// document.
func extractPageTablesSafe(page pdf.Page, pageNum int) (tables []RawTable) {
	defer func() {
		if r := recover(); r != nil {
			tables = nil
		}
	}()
	return extractPageTables(page, pageNum)
}

// extractPageTables clusters a page's positioned text into candidate tables.
// It groups text into visual lines by Y proximity (same idiom as
// extractPageTextOrdered), then clusters each line's elements into columns
// by X gaps. A run of 2+ consecutive lines that all produce 2+ columns, with
// a stable column count, is treated as one table; the first such line is its
// header.
func extractPageTables(page pdf.Page, pageNum int) []RawTable {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	lines := groupIntoLines(content.Text)
	if len(lines) == 0 {
		return nil
	}

	type tableLine struct {
		cells []string
	}

	var candidates []tableLine
	for _, l := range lines {
		cells := clusterColumns(l)
		candidates = append(candidates, tableLine{cells: cells})
	}

	var tables []RawTable
	i := 0
	for i < len(candidates) {
		if len(candidates[i].cells) < 2 {
			i++
			continue
		}
		width := len(candidates[i].cells)
		start := i
		j := i + 1
		for j < len(candidates) && len(candidates[j].cells) == width {
			j++
		}
		// Require at least 2 rows (header + 1 data row) to call this a table
		// rather than a two-column layout artifact.
		if j-start >= 2 {
			header := candidates[start].cells
			var rows [][]string
			for k := start + 1; k < j; k++ {
				rows = append(rows, candidates[k].cells)
			}
			tables = append(tables, RawTable{
				Header:    header,
				Rows:      rows,
				PageStart: pageNum,
				PageEnd:   pageNum,
			})
		}
		i = j
	}
	return tables
}

// groupIntoLines groups positioned text elements into visual lines by Y
// proximity, sorted top-to-bottom, each line itself sorted left-to-right by X.
func groupIntoLines(elems []pdf.Text) [][]pdf.Text {
	const lineTolerance = 3.0

	type line struct {
		y     float64
		elems []pdf.Text
	}

	var lines []*line
	var cur *line
	for _, t := range elems {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &line{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.elems = append(cur.elems, t)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	result := make([][]pdf.Text, len(lines))
	for i, l := range lines {
		sort.SliceStable(l.elems, func(a, b int) bool { return l.elems[a].X < l.elems[b].X })
		result[i] = l.elems
	}
	return result
}

// clusterColumns groups a line's text elements into columns (cells) by
// detecting horizontal gaps wider than the typical glyph spacing. This is
// the X-axis complement to the Y-axis line clustering above.
func clusterColumns(elems []pdf.Text) []string {
	if len(elems) == 0 {
		return nil
	}

	const columnGapThreshold = 8.0 // points; wider than normal word spacing

	var cells []string
	var buf strings.Builder
	lastX := elems[0].X
	for i, e := range elems {
		if i > 0 && e.X-lastX > columnGapThreshold {
			cells = append(cells, strings.TrimSpace(buf.String()))
			buf.Reset()
		} else if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(e.S)
		lastX = e.X + float64(len(e.S))*4.0 // approximate glyph advance
	}
	if buf.Len() > 0 {
		cells = append(cells, strings.TrimSpace(buf.String()))
	}
	return cells
}

// mergeTableContinuations applies the cross-page continuation policy:
// column-count match is a hard prerequisite for merging. Identical headers
// (case-insensitive) merge immediately. Otherwise, when the header-token
// Jaccard similarity is at or above jaccardAmbiguityThreshold, an LLM
// consult (if available) decides; below the threshold, the tables are kept
// separate without ever calling the model.
func mergeTableContinuations(ctx context.Context, tables []RawTable, checker TableContinuationChecker) []RawTable {
	if len(tables) == 0 {
		return nil
	}

	merged := []RawTable{tables[0]}
	for _, t := range tables[1:] {
		prev := &merged[len(merged)-1]

		if len(prev.Header) != len(t.Header) {
			merged = append(merged, t)
			continue
		}

		isContinuation := false
		if headersEqual(prev.Header, t.Header) {
			isContinuation = true
		} else {
			sim := jaccardSimilarity(prev.Header, t.Header)
			if sim >= jaccardAmbiguityThreshold && checker != nil {
				ok, err := checker.IsContinuation(ctx, prev.Header, t.Header)
				if err == nil && ok {
					isContinuation = true
				}
			}
		}

		if isContinuation {
			// Drop the duplicated header row on continuation; only its data
			// rows extend the existing table.
			prev.Rows = append(prev.Rows, t.Rows...)
			prev.PageEnd = t.PageEnd
		} else {
			merged = append(merged, t)
		}
	}

	// Flush-at-EOD / zero-row discard: a table with no data rows (header
	// only, e.g. a column-count false-positive from a two-column caption)
	// is dropped rather than persisted.
	var result []RawTable
	for _, m := range merged {
		if len(m.Rows) > 0 {
			result = append(result, m)
		}
	}
	return result
}

func headersEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), strings.TrimSpace(b[i])) {
			return false
		}
	}
	return true
}

// jaccardSimilarity computes token-set Jaccard similarity between two
// headers, case-insensitive.
func jaccardSimilarity(a, b []string) float64 {
	setA := make(map[string]bool)
	for _, s := range a {
		for _, w := range strings.Fields(strings.ToLower(s)) {
			setA[w] = true
		}
	}
	setB := make(map[string]bool)
	for _, s := range b {
		for _, w := range strings.Fields(strings.ToLower(s)) {
			setB[w] = true
		}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
