package agent

import (
	"context"
	"strings"

	"github.com/brunobiangulo/hybridrag/reasoning"
	"github.com/brunobiangulo/hybridrag/retrieval"
	"github.com/brunobiangulo/hybridrag/store"
)

// Retriever fetches the chunks most relevant to a query, optionally scoped
// to one document.
type Retriever interface {
	Search(ctx context.Context, docID int64, query string, opts retrieval.SearchOptions) ([]store.RetrievalResult, *retrieval.SearchTrace, error)
}

// Reasoner turns retrieved chunks plus a question into a grounded answer.
type Reasoner interface {
	Reason(ctx context.Context, question string, chunks []store.RetrievalResult) (*reasoning.Answer, error)
}

// minAnswerConfidence is the floor below which a reasoned answer is treated
// as unreliable and replaced with an insufficient-context response, rather
// than surfaced as a confident-looking answer the retrieved chunks don't
// actually support.
const minAnswerConfidence = 0.35

// RAGAgent answers the prose half of a question via adaptive-k hybrid
// retrieval followed by validated reasoning.
type RAGAgent struct {
	retriever Retriever
	reasoner  Reasoner
}

// NewRAGAgent creates a RAG agent backed by retriever for context fetch and
// reasoner for grounded synthesis.
func NewRAGAgent(retriever Retriever, reasoner Reasoner) *RAGAgent {
	return &RAGAgent{retriever: retriever, reasoner: reasoner}
}

// analyticalKeywords and comprehensiveKeywords drive the adaptive-k heuristic:
// short factual questions need few chunks, broad or comparative ones need
// more context to avoid missing a side of the comparison.
var (
	comprehensiveKeywords = []string{"overview", "summary", "summarize", "everything", "all the", "comprehensive"}
	analyticalKeywords    = []string{"compare", "comparison", "why", "difference", "relationship", "trend", "analyze", "analysis"}
)

// adaptiveK picks a retrieval depth from the question's shape: short
// factual lookups need few chunks, broad or comparative questions need
// more to avoid missing one side of the answer.
func adaptiveK(question string) int {
	q := strings.ToLower(question)
	for _, kw := range comprehensiveKeywords {
		if strings.Contains(q, kw) {
			return 8
		}
	}
	for _, kw := range analyticalKeywords {
		if strings.Contains(q, kw) {
			return 5
		}
	}
	if len(strings.Fields(question)) <= 8 {
		return 3
	}
	return 5
}

// Answer implements answer_rag(sub_query, doc_id) -> (text, sources).
// It makes at most two retrieval attempts: the first scoped to doc_id, and
// if that returns nothing, a second, unscoped attempt used only to decide
// between a genuine "not in this document" answer and a broader miss; its
// results are never fed to the reasoner. override, if given, replaces the
// adaptive-k default and/or the fusion weights for this one call; zero
// fields fall back to the adaptive default.
func (a *RAGAgent) Answer(ctx context.Context, subQuery string, internalDocID int64, override ...retrieval.SearchOptions) (string, []reasoning.Source, error) {
	opts := retrieval.SearchOptions{MaxResults: adaptiveK(subQuery)}
	if len(override) > 0 {
		o := override[0]
		if o.MaxResults > 0 {
			opts.MaxResults = o.MaxResults
		}
		if o.WeightVec > 0 {
			opts.WeightVec = o.WeightVec
		}
		if o.WeightFTS > 0 {
			opts.WeightFTS = o.WeightFTS
		}
		if o.WeightGraph > 0 {
			opts.WeightGraph = o.WeightGraph
		}
	}

	chunks, _, err := a.retriever.Search(ctx, internalDocID, subQuery, opts)
	if err != nil {
		return "", nil, err
	}

	if len(chunks) == 0 {
		// Diagnostic-only second attempt: confirms the miss is real rather
		// than the retriever being broken, but its hits are discarded.
		_, _, _ = a.retriever.Search(ctx, 0, subQuery, opts)
		return MsgInsufficientContext, nil, nil
	}

	ans, err := a.reasoner.Reason(ctx, subQuery, chunks)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(ans.Text) == "" || ans.Confidence < minAnswerConfidence {
		return MsgInsufficientContext, nil, nil
	}

	return ans.Text, ans.Sources, nil
}
