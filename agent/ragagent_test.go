package agent

import (
	"context"
	"testing"

	"github.com/brunobiangulo/hybridrag/reasoning"
	"github.com/brunobiangulo/hybridrag/retrieval"
	"github.com/brunobiangulo/hybridrag/store"
)

type fakeRetriever struct {
	scopedResults   []store.RetrievalResult
	unscopedResults []store.RetrievalResult
	calls           []int64
}

func (f *fakeRetriever) Search(ctx context.Context, docID int64, query string, opts retrieval.SearchOptions) ([]store.RetrievalResult, *retrieval.SearchTrace, error) {
	f.calls = append(f.calls, docID)
	if docID == 0 {
		return f.unscopedResults, &retrieval.SearchTrace{}, nil
	}
	return f.scopedResults, &retrieval.SearchTrace{}, nil
}

type fakeReasoner struct {
	answer *reasoning.Answer
	err    error
}

func (f *fakeReasoner) Reason(ctx context.Context, question string, chunks []store.RetrievalResult) (*reasoning.Answer, error) {
	return f.answer, f.err
}

func TestRAGAgentAnswersWithHits(t *testing.T) {
	ret := &fakeRetriever{scopedResults: []store.RetrievalResult{{ChunkID: 1, Content: "the final was played in Montevideo"}}}
	reasoner := &fakeReasoner{answer: &reasoning.Answer{Text: "The 1930 final was played in Montevideo.", Confidence: 0.9}}
	a := NewRAGAgent(ret, reasoner)

	text, _, err := a.Answer(context.Background(), "where was the 1930 final played?", 1)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if text != "The 1930 final was played in Montevideo." {
		t.Fatalf("got %q", text)
	}
	if len(ret.calls) != 1 || ret.calls[0] != 1 {
		t.Fatalf("expected a single scoped retrieval call, got %v", ret.calls)
	}
}

func TestRAGAgentZeroHitsTriesUnscopedThenGivesUp(t *testing.T) {
	ret := &fakeRetriever{unscopedResults: []store.RetrievalResult{{ChunkID: 9, Content: "irrelevant"}}}
	reasoner := &fakeReasoner{}
	a := NewRAGAgent(ret, reasoner)

	text, sources, err := a.Answer(context.Background(), "an unanswerable question", 1)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if text != MsgInsufficientContext {
		t.Fatalf("got %q, want %q", text, MsgInsufficientContext)
	}
	if sources != nil {
		t.Fatalf("expected no sources on a miss, got %v", sources)
	}
	if len(ret.calls) != 2 {
		t.Fatalf("expected scoped then diagnostic unscoped retrieval, got %v", ret.calls)
	}
}

func TestRAGAgentLowConfidenceAnswerDegrades(t *testing.T) {
	ret := &fakeRetriever{scopedResults: []store.RetrievalResult{{ChunkID: 1, Content: "tangentially related text"}}}
	reasoner := &fakeReasoner{answer: &reasoning.Answer{Text: "This might possibly be related.", Confidence: 0.1}}
	a := NewRAGAgent(ret, reasoner)

	text, sources, err := a.Answer(context.Background(), "what is the exact figure?", 1)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if text != MsgInsufficientContext {
		t.Fatalf("got %q, want %q for a low-confidence answer", text, MsgInsufficientContext)
	}
	if sources != nil {
		t.Fatalf("expected no sources surfaced for a degraded answer, got %v", sources)
	}
}

func TestAdaptiveKHeuristic(t *testing.T) {
	cases := []struct {
		q    string
		want int
	}{
		{"What year did Uruguay win?", 3},
		{"Compare the 1930 and 1950 finals", 5},
		{"Give me a comprehensive overview of every World Cup final", 8},
	}
	for _, c := range cases {
		if got := adaptiveK(c.q); got != c.want {
			t.Errorf("adaptiveK(%q) = %d, want %d", c.q, got, c.want)
		}
	}
}
