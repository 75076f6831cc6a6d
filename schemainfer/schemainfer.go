// Package schemainfer implements the schema inferrer (spec §4.2): given a
// raw table's header plus a sample of its rows, it asks an LLM to name the
// table and assign each column a semantic type drawn from
// {string, integer, float, currency, percentage, date}.
package schemainfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/hybridrag/llm"
	"github.com/brunobiangulo/hybridrag/parser"
	"github.com/brunobiangulo/hybridrag/store"
)

// sampleRows caps how many data rows are shown to the LLM; large tables
// are summarized from their first rows only, per spec §4.2.
const sampleRows = 3

const schemaPrompt = `You are a data schema inference engine. Given a table's header row and a sample of its data rows, infer a typed schema.

TYPE VOCABULARY (use exactly these values):
- string     : free text, identifiers, names
- integer    : whole numbers
- float      : decimal numbers
- currency   : monetary values (symbols like $/€/£/¥/₹ or a column name hint like "price", "revenue", "cost")
- percentage : values written with a trailing %, or a column name hint like "rate", "share", "percent"
- date       : recognizable date patterns

Return a JSON object with exactly these keys:
  "table_name_hint" : a short snake_case descriptive name for the table (2-4 words, e.g. "world_cup_matches")
  "description"     : one sentence summarizing what the table contains
  "columns"         : array of {"name": string, "type": string}, one per input column, in the same order as the header

Rules:
- "columns" must have exactly as many entries as the header has cells, in the same order.
- On ambiguity, fall back to "string".
- Do NOT include any text outside the JSON object.

HEADER:
%s

SAMPLE ROWS:
%s`

const schemaPromptStrict = schemaPrompt + `

Your previous response could not be parsed as JSON. Return ONLY the JSON object, with no markdown fences and no explanatory text.`

// Inferrer calls an LLM to infer a TableSchema from a RawTable.
type Inferrer struct {
	chat llm.Provider
}

// New creates a schema inferrer backed by chat.
func New(chat llm.Provider) *Inferrer {
	return &Inferrer{chat: chat}
}

type inferenceResponse struct {
	TableNameHint string           `json:"table_name_hint"`
	Description   string           `json:"description"`
	Columns       []columnResponse `json:"columns"`
}

type columnResponse struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

var validTypes = map[store.ColumnType]bool{
	store.ColString:     true,
	store.ColInteger:    true,
	store.ColFloat:       true,
	store.ColCurrency:   true,
	store.ColPercentage: true,
	store.ColDate:       true,
}

// Infer derives a TableSchema for table, owned by docID. shortID is a
// short, stable per-document identifier used as the table_name prefix
// (doc_<shortid>_<descriptive>) so schemas from different documents never
// collide. On a first parse failure it retries once with a stricter
// prompt; a second failure returns an error so the caller can skip this
// one table and continue ingesting the rest.
func (inf *Inferrer) Infer(ctx context.Context, table parser.RawTable, docID int64, shortID string) (store.TableSchema, error) {
	header := strings.Join(table.Header, " | ")
	sample := sampleRowsText(table.Rows)

	resp, err := inf.call(ctx, fmt.Sprintf(schemaPrompt, header, sample))
	if err != nil {
		resp, err = inf.call(ctx, fmt.Sprintf(schemaPromptStrict, header, sample))
		if err != nil {
			return store.TableSchema{}, fmt.Errorf("schema inference failed for table after retry: %w", err)
		}
	}

	if len(resp.Columns) != len(table.Header) {
		return store.TableSchema{}, fmt.Errorf("schema inference: got %d columns, header has %d", len(resp.Columns), len(table.Header))
	}

	columns := make([]store.TableColumn, len(resp.Columns))
	for i, c := range resp.Columns {
		colType := store.ColumnType(strings.ToLower(strings.TrimSpace(c.Type)))
		if !validTypes[colType] {
			colType = store.ColString
		}
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = table.Header[i]
		}
		columns[i] = store.TableColumn{Name: name, Type: colType}
	}

	tableName := fmt.Sprintf("doc_%s_%s", shortID, slugify(resp.TableNameHint))

	return store.TableSchema{
		TableName:   tableName,
		DocumentID:  docID,
		Description: strings.TrimSpace(resp.Description),
		Columns:     columns,
	}, nil
}

func (inf *Inferrer) call(ctx context.Context, prompt string) (*inferenceResponse, error) {
	resp, err := inf.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("calling schema inference LLM: %w", err)
	}

	jsonStr, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("extracting JSON from schema inference response: %w", err)
	}

	var parsed inferenceResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("parsing schema inference JSON: %w", err)
	}
	return &parsed, nil
}

const continuationPrompt = `Two candidate table fragments were extracted from consecutive pages of the same document. Decide whether the second is a continuation of the first (the same table split across a page break) or an unrelated table.

PREVIOUS PAGE HEADER:
%s

NEXT PAGE HEADER:
%s

Return a JSON object with exactly this key:
  "continuation" : true or false

Do NOT include any text outside the JSON object.`

type continuationResponse struct {
	Continuation bool `json:"continuation"`
}

// IsContinuation asks the LLM whether nextHeader continues the table started
// by prevHeader, for the ambiguous case where the column counts match but
// the headers are neither identical nor similar enough to decide by Jaccard
// alone. Implements parser.TableContinuationChecker.
func (inf *Inferrer) IsContinuation(ctx context.Context, prevHeader, nextHeader []string) (bool, error) {
	prompt := fmt.Sprintf(continuationPrompt, strings.Join(prevHeader, " | "), strings.Join(nextHeader, " | "))

	resp, err := inf.chat.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return false, fmt.Errorf("calling continuation check LLM: %w", err)
	}

	jsonStr, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		return false, fmt.Errorf("extracting JSON from continuation response: %w", err)
	}

	var parsed continuationResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return false, fmt.Errorf("parsing continuation JSON: %w", err)
	}
	return parsed.Continuation, nil
}

// ShortID derives a short, stable table-name prefix from a doc_id.
func ShortID(docID string) string {
	sum := sha256.Sum256([]byte(docID))
	return hex.EncodeToString(sum[:])[:8]
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "table"
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

func sampleRowsText(rows [][]string) string {
	n := sampleRows
	if len(rows) < n {
		n = len(rows)
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(strings.Join(rows[i], " | "))
		b.WriteString("\n")
	}
	return b.String()
}
