package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/brunobiangulo/hybridrag/cache"
	"github.com/brunobiangulo/hybridrag/llm"
	"github.com/brunobiangulo/hybridrag/store"
)

// SchemaSource resolves the inferred table schemas owned by a document, for
// both the classifier's schema summary and the table agent's SQL prompt.
type SchemaSource interface {
	ByDoc(ctx context.Context, docID int64) ([]store.TableSchema, error)
}

const classifyPrompt = `You are a routing classifier for a hybrid question-answering system over one document. The document has both free-text prose and, possibly, structured tables described below.

TABLES AVAILABLE:
%s

QUESTION:
%s

Decide whether answering requires the structured tables, the prose, or both, then return a JSON object with exactly these keys:
  "status"          : one of "table", "rag", "both"
  "table_sub_query"  : a self-contained question answerable by SQL against the tables above (empty string if status is "rag")
  "rag_sub_query"    : a self-contained question answerable from prose (empty string if status is "table")

Rules:
- If status is "both", table_sub_query and rag_sub_query must each be a complete standalone question covering their half of the original intent. Neither may just repeat the full original question verbatim.
- If there are no tables available, status can never be "table" or "both".
- Do NOT include any text outside the JSON object.`

const classifyPromptStrict = classifyPrompt + `

Your previous response could not be parsed as JSON. Return ONLY the JSON object, with no markdown fences and no explanatory text.`

type classifyResponse struct {
	Status        string `json:"status"`
	TableSubQuery string `json:"table_sub_query"`
	RAGSubQuery   string `json:"rag_sub_query"`
}

// Manager is the classifier/router node: it decides whether a question
// needs the table agent, the RAG agent, or both, and rewrites it into the
// sub-queries each will answer.
type Manager struct {
	chat    llm.Provider
	schemas SchemaSource
	cache   *cache.ClassificationCache
}

// NewManager creates a Manager backed by chat for classification and
// schemas for the per-document schema summary. cls may be nil to disable
// classification caching.
func NewManager(chat llm.Provider, schemas SchemaSource, cls *cache.ClassificationCache) *Manager {
	return &Manager{chat: chat, schemas: schemas, cache: cls}
}

// Classify populates state's Classification, NeedsTable, NeedsRAG,
// TableSubQuery, and RAGSubQuery fields, the only fields this node owns.
func (m *Manager) Classify(ctx context.Context, state *State, internalDocID int64) error {
	key := cache.Key(state.Question, strconv.FormatInt(internalDocID, 10))
	if m.cache != nil {
		if cl, ok := m.cache.Get(key); ok {
			applyClassification(state, cl)
			return nil
		}
	}

	schemas, err := m.schemas.ByDoc(ctx, internalDocID)
	if err != nil {
		return fmt.Errorf("loading schemas for classification: %w", err)
	}

	summary := schemaSummary(schemas)
	resp, err := m.classify(ctx, fmt.Sprintf(classifyPrompt, summary, state.Question))
	if err != nil {
		resp, err = m.classify(ctx, fmt.Sprintf(classifyPromptStrict, summary, state.Question))
		if err != nil {
			if llm.IsQuotaExceeded(err) {
				return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
			}
			// Classification itself is not in the taxonomy's escaping set;
			// degrade to a guess ("both" when the document has tables,
			// otherwise "rag") rather than failing the whole question.
			resp = fallbackClassification(len(schemas) > 0, state.Question)
		}
	}

	status := strings.ToLower(strings.TrimSpace(resp.Status))
	if len(schemas) == 0 && (status == "table" || status == "both") {
		status = "rag"
	}

	cl := cache.Classification{
		Status:        status,
		TableSubQuery: resp.TableSubQuery,
		RAGSubQuery:   resp.RAGSubQuery,
	}
	if cl.TableSubQuery == "" {
		cl.TableSubQuery = state.Question
	}
	if cl.RAGSubQuery == "" {
		cl.RAGSubQuery = state.Question
	}

	if m.cache != nil {
		m.cache.Put(key, cl)
	}
	applyClassification(state, cl)
	return nil
}

func applyClassification(state *State, cl cache.Classification) {
	state.Classification = cl.Status
	state.NeedsTable = cl.Status == "table" || cl.Status == "both"
	state.NeedsRAG = cl.Status == "rag" || cl.Status == "both"
	state.TableSubQuery = cl.TableSubQuery
	state.RAGSubQuery = cl.RAGSubQuery
}

// fallbackClassification is used when both classification attempts fail to
// parse: a document with tables is guessed "both" (the safer over-fetch),
// otherwise "rag".
func fallbackClassification(hasSchemas bool, question string) *classifyResponse {
	status := "rag"
	if hasSchemas {
		status = "both"
	}
	return &classifyResponse{Status: status, TableSubQuery: question, RAGSubQuery: question}
}

func (m *Manager) classify(ctx context.Context, prompt string) (*classifyResponse, error) {
	resp, err := m.chat.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("calling classifier LLM: %w", err)
	}

	jsonStr, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("extracting JSON from classifier response: %w", err)
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("parsing classifier JSON: %w", err)
	}
	return &parsed, nil
}

func schemaSummary(schemas []store.TableSchema) string {
	if len(schemas) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, s := range schemas {
		fmt.Fprintf(&b, "- %s: %s\n", s.TableName, s.Description)
		for _, c := range s.Columns {
			fmt.Fprintf(&b, "    %s (%s)\n", c.Name, c.Type)
		}
	}
	return b.String()
}
