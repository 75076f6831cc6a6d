package agent

import (
	"context"
	"testing"
)

func TestCombinerPassthroughWhenTableEmpty(t *testing.T) {
	c := NewCombiner(&fakeProvider{})
	got, err := c.Combine(context.Background(), "q", MsgNoStructuredData, "The answer is in the prose.")
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got != "The answer is in the prose." {
		t.Fatalf("got %q", got)
	}
}

func TestCombinerPassthroughWhenRAGEmpty(t *testing.T) {
	c := NewCombiner(&fakeProvider{})
	got, err := c.Combine(context.Background(), "q", "- Uruguay\n- Argentina", MsgInsufficientContext)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got != "- Uruguay\n- Argentina" {
		t.Fatalf("got %q", got)
	}
}

func TestCombinerBothEmpty(t *testing.T) {
	c := NewCombiner(&fakeProvider{})
	got, err := c.Combine(context.Background(), "q", MsgNoStructuredData, MsgInsufficientContext)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got != MsgInsufficientContext {
		t.Fatalf("got %q, want %q", got, MsgInsufficientContext)
	}
}

func TestCombinerSynthesizesWhenBothPresent(t *testing.T) {
	fake := &fakeProvider{responses: []string{"Uruguay and Argentina both qualified, and Uruguay won the inaugural final 4-2 over Argentina."}}
	c := NewCombiner(fake)
	got, err := c.Combine(context.Background(), "who played in the 1930 final?", "- Uruguay\n- Argentina", "Uruguay won the inaugural final 4-2 over Argentina.")
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got == "" {
		t.Fatalf("expected a synthesized answer")
	}
}

func TestCombinerFallsBackToConcatenationWhenSynthesisDropsItems(t *testing.T) {
	fake := &fakeProvider{responses: []string{"Uruguay won the final."}}
	c := NewCombiner(fake)
	got, err := c.Combine(context.Background(), "who played?", "- Uruguay\n- Argentina", "Uruguay won the inaugural final.")
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got != "- Uruguay\n- Argentina\n\nUruguay won the inaugural final." {
		t.Fatalf("expected concatenation fallback, got %q", got)
	}
}
