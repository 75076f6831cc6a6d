package parser

import "context"

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // Ordered prose sections extracted from the document
	Tables   []RawTable // Ordered raw tables extracted from the document
	Method   string     // "native"
	Metadata map[string]string
}

// Section represents a logical section of a parsed document.
type Section struct {
	Heading    string
	Content    string
	Level      int    // Heading level (1=top, 2=sub, etc.)
	PageNumber int
	Type       string // "section", "definition", "requirement", "paragraph"
	Children   []Section
	Metadata   map[string]string
}

// RawTable is a single extracted table before schema inference: a header
// row (if detected) plus data rows, as raw strings straight off the page.
// Cross-page continuations of the same table are already merged by the
// time a RawTable reaches the caller.
type RawTable struct {
	Header     []string
	Rows       [][]string
	PageStart  int
	PageEnd    int
	NearHeading string // heading text immediately preceding the table, if any
}

// Parser can parse a specific document format, producing both prose
// sections and raw tables in a single pass.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
