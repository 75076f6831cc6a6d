package schemainfer

import (
	"context"
	"testing"

	"github.com/brunobiangulo/hybridrag/llm"
	"github.com/brunobiangulo/hybridrag/parser"
	"github.com/brunobiangulo/hybridrag/store"
)

type fakeProvider struct {
	responses []string
	calls     int
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return &llm.ChatResponse{Content: f.responses[i]}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func TestInferBasic(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{
		"table_name_hint": "world cup matches",
		"description": "Results of World Cup matches.",
		"columns": [
			{"name": "year", "type": "integer"},
			{"name": "home_team", "type": "string"},
			{"name": "home_score", "type": "integer"}
		]
	}`}}

	inf := New(fake)
	table := parser.RawTable{
		Header: []string{"year", "home_team", "home_score"},
		Rows: [][]string{
			{"1930", "Uruguay", "4"},
			{"1934", "Italy", "2"},
		},
	}

	schema, err := inf.Infer(context.Background(), table, 1, "abc12345")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if schema.TableName != "doc_abc12345_world_cup_matches" {
		t.Errorf("table name = %q", schema.TableName)
	}
	if len(schema.Columns) != 3 {
		t.Fatalf("got %d columns, want 3", len(schema.Columns))
	}
	if schema.Columns[0].Type != store.ColInteger {
		t.Errorf("column 0 type = %q, want integer", schema.Columns[0].Type)
	}
}

func TestInferRetriesOnParseFailure(t *testing.T) {
	fake := &fakeProvider{responses: []string{
		"I cannot help with that.",
		`{"table_name_hint": "matches", "description": "d", "columns": [{"name": "a", "type": "string"}]}`,
	}}

	inf := New(fake)
	table := parser.RawTable{Header: []string{"a"}, Rows: [][]string{{"x"}}}

	schema, err := inf.Infer(context.Background(), table, 1, "abc")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 calls (initial + strict retry), got %d", fake.calls)
	}
	if len(schema.Columns) != 1 {
		t.Fatalf("got %d columns", len(schema.Columns))
	}
}

func TestInferFailsAfterTwoBadResponses(t *testing.T) {
	fake := &fakeProvider{responses: []string{"nope", "still nope"}}
	inf := New(fake)
	table := parser.RawTable{Header: []string{"a"}, Rows: [][]string{{"x"}}}

	if _, err := inf.Infer(context.Background(), table, 1, "abc"); err == nil {
		t.Fatal("expected error after two unparseable responses")
	}
}

func TestInferFallsBackToStringOnUnknownType(t *testing.T) {
	fake := &fakeProvider{responses: []string{
		`{"table_name_hint": "t", "description": "d", "columns": [{"name": "a", "type": "bogus"}]}`,
	}}
	inf := New(fake)
	table := parser.RawTable{Header: []string{"a"}, Rows: [][]string{{"x"}}}

	schema, err := inf.Infer(context.Background(), table, 1, "abc")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if schema.Columns[0].Type != store.ColString {
		t.Errorf("got type %q, want fallback to string", schema.Columns[0].Type)
	}
}

func TestInferRejectsColumnCountMismatch(t *testing.T) {
	fake := &fakeProvider{responses: []string{
		`{"table_name_hint": "t", "description": "d", "columns": [{"name": "a", "type": "string"}]}`,
		`{"table_name_hint": "t", "description": "d", "columns": [{"name": "a", "type": "string"}]}`,
	}}
	inf := New(fake)
	table := parser.RawTable{Header: []string{"a", "b"}, Rows: [][]string{{"x", "y"}}}

	if _, err := inf.Infer(context.Background(), table, 1, "abc"); err == nil {
		t.Fatal("expected error on column count mismatch")
	}
}
