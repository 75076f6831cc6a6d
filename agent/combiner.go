package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/brunobiangulo/hybridrag/llm"
)

const synthesisPrompt = `You are reconciling two partial answers to the same question into one final answer.

QUESTION:
%s

STRUCTURED DATA ANSWER:
%s

PROSE ANSWER:
%s

Write one final answer that combines both. Every distinct item, name, or value present in the structured data answer must also appear in your final answer; do not drop or summarize any of them away. Use the prose answer to add context and explanation around those items. Return plain text only, no JSON, no markdown.`

// Combiner reconciles the table and RAG agents' independent answers into
// one final response.
type Combiner struct {
	chat llm.Provider
}

// NewCombiner creates a Combiner backed by chat for synthesis of
// both-present cases.
func NewCombiner(chat llm.Provider) *Combiner {
	return &Combiner{chat: chat}
}

// Combine implements the reconciliation rules: pass through whichever half
// answered alone, report insufficient context when neither did, and
// synthesize with the LLM when both did, falling back to concatenation if
// synthesis drops items the table answer established.
func (c *Combiner) Combine(ctx context.Context, question, tableResponse, ragResponse string) (string, error) {
	tableEmpty := isEmptyAnswer(tableResponse)
	ragEmpty := isEmptyAnswer(ragResponse)

	switch {
	case tableEmpty && ragEmpty:
		return MsgInsufficientContext, nil
	case tableEmpty:
		return ragResponse, nil
	case ragEmpty:
		return tableResponse, nil
	}

	synthesized, err := c.synthesize(ctx, question, tableResponse, ragResponse)
	if err != nil {
		if llm.IsQuotaExceeded(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return concatenate(tableResponse, ragResponse), nil
	}

	if !preservesTableItems(tableResponse, synthesized) {
		return concatenate(tableResponse, ragResponse), nil
	}
	return synthesized, nil
}

func isEmptyAnswer(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" ||
		s == MsgNoStructuredData ||
		s == MsgInsufficientContext ||
		s == MsgQueryFailed
}

func (c *Combiner) synthesize(ctx context.Context, question, tableResponse, ragResponse string) (string, error) {
	prompt := fmt.Sprintf(synthesisPrompt, question, tableResponse, ragResponse)
	resp, err := c.chat.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("calling combiner synthesis LLM: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// preservesTableItems is the safety net for the preservation rule: every
// non-trivial line item the table agent produced (bullet, pipe-row, or
// scalar) must show up somewhere in the synthesized text, or synthesis is
// rejected in favor of plain concatenation.
func preservesTableItems(tableResponse, synthesized string) bool {
	lower := strings.ToLower(synthesized)
	for _, line := range strings.Split(tableResponse, "\n") {
		item := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		item = strings.TrimPrefix(item, "Result: ")
		if item == "" {
			continue
		}
		for _, field := range strings.Split(item, "|") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if !strings.Contains(lower, strings.ToLower(field)) {
				return false
			}
		}
	}
	return true
}

func concatenate(tableResponse, ragResponse string) string {
	return tableResponse + "\n\n" + ragResponse
}
