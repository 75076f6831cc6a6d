package agent

// Canonical user-facing messages. These strings are the contract: callers
// (and tests) match on them, so they are never built with fmt.Sprintf from
// a raw engine/LLM error.
const (
	MsgNoStructuredData   = "No structured data is available for this document."
	MsgQueryFailed        = "I am not able to process this query. Please try rephrasing."
	MsgInsufficientContext = "I don't have enough information in this document to answer that."
	MsgTimeout            = "The request took too long to process. Please try again."

	// QuotaMarker prefixes any answer text that reached the user despite a
	// quota failure, per spec's "distinguishable marker" requirement.
	QuotaMarker = "⚠️ QUOTA EXCEEDED"
)
