//go:build cgo

package tablewriter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/hybridrag/parser"
	"github.com/brunobiangulo/hybridrag/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 8)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPersistCoercesAndInserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	docID, err := s.UpsertDocument(ctx, store.Document{Path: "d1", Filename: "a.pdf", Format: "pdf", ContentHash: "h", ParseMethod: "native", Status: "ready"})
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}

	schema := store.TableSchema{
		TableName:  "doc_abc_matches",
		DocumentID: docID,
		Columns: []store.TableColumn{
			{Name: "home_team", Type: store.ColString},
			{Name: "home_score", Type: store.ColInteger},
			{Name: "revenue", Type: store.ColCurrency},
			{Name: "win_rate", Type: store.ColPercentage},
			{Name: "played_on", Type: store.ColDate},
		},
	}
	table := parser.RawTable{
		Header: []string{"home_team", "home_score", "revenue", "win_rate", "played_on"},
		Rows: [][]string{
			{"Uruguay", "4", "$1,200,000", "35%", "1930-07-30"},
			{"Italy", "2", "", "not-a-percent", "garbage"},
		},
	}

	w := New(s)
	n, err := w.Persist(ctx, schema, table)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d rows stored, want 2", n)
	}

	result, err := s.ExecuteSelect(ctx, `SELECT home_team, home_score, revenue, win_rate, played_on FROM "doc_abc_matches" ORDER BY home_score DESC`)
	if err != nil {
		t.Fatalf("ExecuteSelect: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("got %d result rows, want 2", len(result.Rows))
	}

	first := result.Rows[0]
	if first[0] != "Uruguay" {
		t.Errorf("home_team = %v", first[0])
	}
	if revenue, ok := first[2].(float64); !ok || revenue != 1200000 {
		t.Errorf("revenue = %v, want 1200000", first[2])
	}
	if rate, ok := first[3].(float64); !ok || rate != 35.0 {
		t.Errorf("win_rate = %v, want literal 35.0 (not 0.35)", first[3])
	}
	if first[4] != "1930-07-30" {
		t.Errorf("played_on = %v", first[4])
	}

	second := result.Rows[1]
	if second[2] != nil {
		t.Errorf("empty revenue cell should coerce to NULL, got %v", second[2])
	}
	if second[3] != nil {
		t.Errorf("unparseable percentage should coerce to NULL, got %v", second[3])
	}
	if second[4] != nil {
		t.Errorf("unparseable date should coerce to NULL, got %v", second[4])
	}
}

func TestPersistAppendsOnSecondCall(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	docID, _ := s.UpsertDocument(ctx, store.Document{Path: "d1", Filename: "a.pdf", Format: "pdf", ContentHash: "h", ParseMethod: "native", Status: "ready"})

	schema := store.TableSchema{
		TableName:  "doc_abc_t",
		DocumentID: docID,
		Columns:    []store.TableColumn{{Name: "v", Type: store.ColInteger}},
	}
	w := New(s)

	if _, err := w.Persist(ctx, schema, parser.RawTable{Header: []string{"v"}, Rows: [][]string{{"1"}, {"2"}}}); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if _, err := w.Persist(ctx, schema, parser.RawTable{Header: []string{"v"}, Rows: [][]string{{"3"}}}); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	result, err := s.ExecuteSelect(ctx, `SELECT COUNT(*) FROM "doc_abc_t"`)
	if err != nil {
		t.Fatalf("ExecuteSelect: %v", err)
	}
	if count, ok := result.Rows[0][0].(int64); !ok || count != 3 {
		t.Errorf("row count = %v, want 3", result.Rows[0][0])
	}
}
