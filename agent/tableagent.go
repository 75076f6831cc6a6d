package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/brunobiangulo/hybridrag/llm"
	"github.com/brunobiangulo/hybridrag/store"
)

// SQLExecutor runs a validated, read-only SQL statement against the
// relational substrate.
type SQLExecutor interface {
	ExecuteSelect(ctx context.Context, query string) (*store.QueryResult, error)
}

const sqlGenPrompt = `You generate a single SQLite SELECT statement to answer a question against the tables described below. Use standard SQLite syntax: double-quoted identifiers, SQLite aggregate functions (COUNT, SUM, AVG, MIN, MAX), no vendor-specific extensions.

TABLES:
%s

QUESTION:
%s

Return a JSON object with exactly this key:
  "sql" : the SELECT statement as a single string, no markdown fences, no trailing semicolon required but allowed, no comments

Rules:
- The statement must be read-only: exactly one SELECT, nothing else.
- Quote every identifier (table and column names) with double quotes.
- Do NOT include any text outside the JSON object.`

const sqlGenPromptStrict = sqlGenPrompt + `

Your previous response could not be parsed as JSON, or did not contain a valid read-only SELECT. Return ONLY the JSON object with a single well-formed SELECT statement.`

type sqlGenResponse struct {
	SQL string `json:"sql"`
}

// TableAgent answers the structured half of a question by generating and
// executing SQL against the per-document dynamic tables.
type TableAgent struct {
	chat    llm.Provider
	schemas SchemaSource
	exec    SQLExecutor
}

// NewTableAgent creates a table agent backed by chat for SQL generation,
// schemas for prompt context, and exec to run the generated statement.
func NewTableAgent(chat llm.Provider, schemas SchemaSource, exec SQLExecutor) *TableAgent {
	return &TableAgent{chat: chat, schemas: schemas, exec: exec}
}

// Answer implements answer_table(sub_query, doc_id) -> rendered_text.
func (a *TableAgent) Answer(ctx context.Context, subQuery string, internalDocID int64) (string, error) {
	schemas, err := a.schemas.ByDoc(ctx, internalDocID)
	if err != nil {
		return "", fmt.Errorf("loading schemas: %w", err)
	}
	if len(schemas) == 0 {
		return MsgNoStructuredData, nil
	}

	summary := schemaSummary(schemas)
	sql, err := a.generateSQL(ctx, summary, subQuery, schemas)
	if err != nil {
		if llm.IsQuotaExceeded(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return MsgQueryFailed, nil
	}

	result, err := a.exec.ExecuteSelect(ctx, sql)
	if err != nil {
		return MsgQueryFailed, nil
	}

	return render(result), nil
}

func (a *TableAgent) generateSQL(ctx context.Context, summary, subQuery string, schemas []store.TableSchema) (string, error) {
	resp, err := a.callSQLGen(ctx, fmt.Sprintf(sqlGenPrompt, summary, subQuery))
	if err == nil {
		if sql, ok := sanitizeSelect(resp.SQL); ok {
			return sql, nil
		}
		err = fmt.Errorf("generated statement is not a read-only SELECT")
	}

	resp, strictErr := a.callSQLGen(ctx, fmt.Sprintf(sqlGenPromptStrict, summary, subQuery))
	if strictErr != nil {
		return "", strictErr
	}
	sql, ok := sanitizeSelect(resp.SQL)
	if !ok {
		return "", fmt.Errorf("generated statement is not a read-only SELECT after retry")
	}
	return sql, nil
}

func (a *TableAgent) callSQLGen(ctx context.Context, prompt string) (*sqlGenResponse, error) {
	resp, err := a.chat.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("calling SQL generation LLM: %w", err)
	}

	jsonStr, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("extracting JSON from SQL generation response: %w", err)
	}

	var parsed sqlGenResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("parsing SQL generation JSON: %w", err)
	}
	return &parsed, nil
}

var (
	forbiddenKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|attach|detach|pragma|create|replace|vacuum)\b`)
	leadingSelect    = regexp.MustCompile(`(?is)^\s*select\b`)
)

// sanitizeSelect strips markdown fences and a trailing semicolon, then
// rejects anything that is not a single, side-effect-free SELECT
// statement. Anything producing side effects is fatal per spec: the table
// agent must never execute it.
func sanitizeSelect(sql string) (string, bool) {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimPrefix(sql, "```sql")
	sql = strings.TrimPrefix(sql, "```")
	sql = strings.TrimSuffix(sql, "```")
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")

	if sql == "" {
		return "", false
	}
	if strings.Contains(sql, ";") {
		// A second statement after the first semicolon is a classic
		// injection shape; reject outright.
		return "", false
	}
	if !leadingSelect.MatchString(sql) {
		return "", false
	}
	if forbiddenKeyword.MatchString(sql) {
		return "", false
	}
	return sql, true
}

var matchRowColumns = regexp.MustCompile(`(?i)^home_?team$|^away_?team$|^home_?score$|^away_?score$`)

// render applies the four rendering rules in spec order: scalar,
// deduplicated single-column list, match-row, general table.
func render(result *store.QueryResult) string {
	if result == nil || len(result.Columns) == 0 {
		return MsgNoStructuredData
	}

	if len(result.Columns) == 1 {
		if len(result.Rows) == 1 {
			return "Result: " + cellString(result.Rows[0][0])
		}
		return dedupList(result)
	}

	if isMatchRowShape(result.Columns) {
		return renderMatchRows(result)
	}

	return renderPipeTable(result)
}

func isMatchRowShape(columns []string) bool {
	hits := 0
	for _, c := range columns {
		if matchRowColumns.MatchString(strings.TrimSpace(c)) {
			hits++
		}
	}
	return hits >= 3
}

func colIndex(columns []string, names ...string) int {
	for i, c := range columns {
		lc := strings.ToLower(strings.TrimSpace(c))
		for _, n := range names {
			if lc == n {
				return i
			}
		}
	}
	return -1
}

func renderMatchRows(result *store.QueryResult) string {
	homeTeam := colIndex(result.Columns, "home_team", "hometeam")
	awayTeam := colIndex(result.Columns, "away_team", "awayteam")
	homeScore := colIndex(result.Columns, "home_score", "homescore")
	awayScore := colIndex(result.Columns, "away_score", "awayscore")
	year := colIndex(result.Columns, "year")
	round := colIndex(result.Columns, "round", "stage")

	var lines []string
	for _, row := range result.Rows {
		var prefix string
		if year >= 0 {
			prefix += cellString(row[year])
		}
		if round >= 0 {
			if prefix != "" {
				prefix += " "
			}
			prefix += cellString(row[round])
		}
		line := fmt.Sprintf("%s-%s", cellString(row[homeScore]), cellString(row[awayScore]))
		full := fmt.Sprintf("%s, %s %s %s", prefix, cellString(row[homeTeam]), line, cellString(row[awayTeam]))
		lines = append(lines, strings.TrimSpace(strings.TrimPrefix(full, ",")))
	}
	return strings.Join(lines, "\n")
}

// dedupList renders a single-column multi-row result as a bullet list,
// deduplicated case-sensitively in order of first occurrence.
func dedupList(result *store.QueryResult) string {
	seen := make(map[string]bool)
	var lines []string
	for _, row := range result.Rows {
		v := cellString(row[0])
		if seen[v] {
			continue
		}
		seen[v] = true
		lines = append(lines, "- "+v)
	}
	if len(lines) == 0 {
		return MsgNoStructuredData
	}
	return strings.Join(lines, "\n")
}

func renderPipeTable(result *store.QueryResult) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	for _, row := range result.Rows {
		b.WriteString("\n")
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellString(v)
		}
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String()
}

// cellString renders a single query result cell, null as blank and floats
// to at most two decimals.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
