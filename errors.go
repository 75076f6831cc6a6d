package hybridrag

import "errors"

var (
	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("hybridrag: document not found")

	// ErrDocumentExists is returned when trying to ingest a duplicate path.
	ErrDocumentExists = errors.New("hybridrag: document already exists")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("hybridrag: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("hybridrag: parsing failed")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("hybridrag: embedding generation failed")

	// ErrLLMUnavailable is returned when the LLM provider is unreachable.
	ErrLLMUnavailable = errors.New("hybridrag: LLM provider unavailable")

	// ErrLLMRequestFailed is returned when an LLM request fails.
	ErrLLMRequestFailed = errors.New("hybridrag: LLM request failed")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("hybridrag: store is closed")

	// ErrNoResults is returned when retrieval yields no matching chunks.
	ErrNoResults = errors.New("hybridrag: no results found")

	// ErrLowConfidence is returned when the answer confidence is below threshold.
	ErrLowConfidence = errors.New("hybridrag: answer confidence below threshold")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("hybridrag: invalid configuration")

	// ErrInvalidInput is returned for malformed requests: empty or unknown
	// doc_id, empty file bytes, empty question. Always escapes Answer/Ingest.
	ErrInvalidInput = errors.New("hybridrag: invalid input")

	// ErrQuotaExceeded is returned when an upload exceeds the configured
	// size limit (Ingest), or when the LLM provider reports a quota or
	// rate-limit error (Answer/Compare). Always escapes to the caller.
	ErrQuotaExceeded = errors.New("hybridrag: quota exceeded")

	// ErrRetrievalFailure is returned internally when a retrieval node
	// (vector/FTS/graph search, or SQL execution) fails. Converted to a
	// canonical inert response at the node boundary; never escapes Answer.
	ErrRetrievalFailure = errors.New("hybridrag: retrieval failure")

	// ErrSchemaInferenceFailure is returned internally when the schema
	// inferrer cannot parse a structured response for a candidate table.
	// The table is skipped rather than failing the whole ingest.
	ErrSchemaInferenceFailure = errors.New("hybridrag: schema inference failure")

	// ErrTimeout is returned internally when a node exceeds its deadline.
	// Converted to a canonical inert response at the node boundary.
	ErrTimeout = errors.New("hybridrag: timeout")

	// ErrFatal wraps unrecoverable internal errors (store unavailable,
	// closed engine). Always escapes Ingest/Answer.
	ErrFatal = errors.New("hybridrag: fatal error")
)
