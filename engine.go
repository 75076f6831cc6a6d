package hybridrag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brunobiangulo/hybridrag/agent"
	"github.com/brunobiangulo/hybridrag/cache"
	"github.com/brunobiangulo/hybridrag/chunker"
	"github.com/brunobiangulo/hybridrag/graph"
	"github.com/brunobiangulo/hybridrag/llm"
	"github.com/brunobiangulo/hybridrag/parser"
	"github.com/brunobiangulo/hybridrag/reasoning"
	"github.com/brunobiangulo/hybridrag/registry"
	"github.com/brunobiangulo/hybridrag/retrieval"
	"github.com/brunobiangulo/hybridrag/schemainfer"
	"github.com/brunobiangulo/hybridrag/store"
	"github.com/brunobiangulo/hybridrag/tablewriter"
)

// Engine is the main entry point for the hybrid RAG question-answering
// system: ingest PDFs into a vector + relational substrate, then answer
// questions by routing across both.
type Engine interface {
	// Ingest parses, chunks, embeds, and extracts tables for one document,
	// identified by the caller-supplied content-hash doc_id. Re-ingesting
	// the same doc_id replaces its derived data rather than duplicating it.
	Ingest(ctx context.Context, docID string, fileBytes []byte, displayName string, opts ...IngestOption) (IngestResult, error)

	// Answer routes a question through the Manager/Table/RAG/Combiner
	// pipeline and returns the reconciled answer.
	Answer(ctx context.Context, question, docID string, opts ...QueryOption) (*AnswerResult, error)

	// Compare runs the full hybrid Answer alongside a pure-RAG bypass of
	// the same question, for side-by-side comparison.
	Compare(ctx context.Context, question, docID string) (*CompareResult, error)

	// DeleteDocument removes a document and all data derived from it:
	// chunks, embeddings, graph entities, and table schemas/physical
	// tables.
	DeleteDocument(ctx context.Context, docID string) error

	// ClearAllData removes every ingested document and its derived data.
	ClearAllData(ctx context.Context) error

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]Document, error)

	// Health reports whether the engine's backing store is reachable.
	Health(ctx context.Context) error

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// IngestResult reports what ingestion actually produced.
type IngestResult struct {
	Tables  int      `json:"tables"`
	Chunks  int      `json:"chunks"`
	Schemas []string `json:"schemas"`
}

// AnswerResult is the reconciled response to one question.
type AnswerResult struct {
	Answer         string `json:"answer"`
	Classification string `json:"classification"`
	TableResponse  string `json:"table_response,omitempty"`
	RAGResponse    string `json:"rag_response,omitempty"`
}

// CompareResult pairs the full hybrid answer with a pure-RAG bypass of the
// same question, for the /compare external interface.
type CompareResult struct {
	Answer  *AnswerResult `json:"answer"`
	PureRAG string        `json:"pure_rag_answer"`
}

// Document represents an ingested document.
type Document struct {
	DocID       string            `json:"doc_id"`
	DisplayName string            `json:"display_name"`
	Filename    string            `json:"filename"`
	Format      string            `json:"format"`
	ParseMethod string            `json:"parse_method"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// IngestOption configures a single Ingest call.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	metadata map[string]string
}

// WithMetadata attaches custom metadata to the ingested document.
func WithMetadata(metadata map[string]string) IngestOption {
	return func(o *ingestOptions) { o.metadata = metadata }
}

// QueryOption configures a single Answer call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	ragOverride retrieval.SearchOptions
}

// WithMaxResults overrides the RAG agent's adaptive-k chunk count for this
// call only.
func WithMaxResults(n int) QueryOption {
	return func(o *queryOptions) { o.ragOverride.MaxResults = n }
}

// WithWeights overrides the hybrid fusion weights for this call only.
func WithWeights(vec, fts, graph float64) QueryOption {
	return func(o *queryOptions) {
		o.ragOverride.WeightVec = vec
		o.ragOverride.WeightFTS = fts
		o.ragOverride.WeightGraph = graph
	}
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	chatLLM   llm.Provider
	embedLLM  llm.Provider
	visionLLM llm.Provider
	parsers   *parser.Registry
	chunkr    *chunker.Chunker
	graphB    *graph.Builder
	retriever *retrieval.Engine
	reasoner  *reasoning.Engine

	schemaInferrer *schemainfer.Inferrer
	tableWriter    *tablewriter.Writer
	registry       *registry.Registry
	schemaCache    *cache.SchemaCache
	classCache     *cache.ClassificationCache

	manager    *agent.Manager
	tableAgent *agent.TableAgent
	ragAgent   *agent.RAGAgent
	combiner   *agent.Combiner
}

// New creates a new hybridrag engine with the given configuration.
func New(cfg Config) (Engine, error) {
	dbPath := cfg.resolveDBPath()

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	var visionLLM llm.Provider
	if cfg.Vision.Provider != "" {
		visionLLM, err = llm.NewProvider(llm.Config{
			Provider: cfg.Vision.Provider,
			Model:    cfg.Vision.Model,
			BaseURL:  cfg.Vision.BaseURL,
			APIKey:   cfg.Vision.APIKey,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating vision provider: %w", err)
		}
	}

	schemaInferrer := schemainfer.New(chatLLM)
	reg := parser.NewRegistryWithContinuation(schemaInferrer)

	chunkr := chunker.New(chunker.Config{
		MaxTokens: cfg.MaxChunkTokens,
		Overlap:   cfg.ChunkOverlap,
	})

	graphB := graph.NewBuilder(s, chatLLM, embedLLM, cfg.GraphConcurrency)

	retriever := retrieval.New(s, embedLLM, retrieval.Config{
		WeightVector: cfg.WeightVector,
		WeightFTS:    cfg.WeightFTS,
		WeightGraph:  cfg.WeightGraph,
	})

	reasoner := reasoning.New(chatLLM, reasoning.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	})

	tableWriter := tablewriter.New(s)

	regPath := filepath.Join(filepath.Dir(dbPath), "schema_registry.json")
	schemaRegistry := registry.New(regPath, s)
	if err := schemaRegistry.Load(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("loading schema registry: %w", err)
	}

	schemaCacheSize := cfg.SchemaCacheSize
	if schemaCacheSize <= 0 {
		schemaCacheSize = 256
	}
	schemaCache, err := cache.NewSchemaCache(func(ctx context.Context, docID int64) ([]store.TableSchema, error) {
		return schemaRegistry.ByDoc(docID), nil
	}, schemaCacheSize)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating schema cache: %w", err)
	}

	classCacheSize := cfg.ClassificationCacheSize
	if classCacheSize <= 0 {
		classCacheSize = 512
	}
	classCache, err := cache.NewClassificationCache(classCacheSize)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating classification cache: %w", err)
	}

	manager := agent.NewManager(chatLLM, schemaCache, classCache)
	tableAgent := agent.NewTableAgent(chatLLM, schemaCache, s)
	ragAgent := agent.NewRAGAgent(retriever, reasoner)
	combiner := agent.NewCombiner(chatLLM)

	return &engine{
		cfg:            cfg,
		store:          s,
		chatLLM:        chatLLM,
		embedLLM:       embedLLM,
		visionLLM:      visionLLM,
		parsers:        reg,
		chunkr:         chunkr,
		graphB:         graphB,
		retriever:      retriever,
		reasoner:       reasoner,
		schemaInferrer: schemaInferrer,
		tableWriter:    tableWriter,
		registry:       schemaRegistry,
		schemaCache:    schemaCache,
		classCache:     classCache,
		manager:        manager,
		tableAgent:     tableAgent,
		ragAgent:       ragAgent,
		combiner:       combiner,
	}, nil
}

// Ingest processes a document through the full pipeline: stage, parse,
// chunk, embed, build graph, and extract/infer/persist tables.
func (e *engine) Ingest(ctx context.Context, docID string, fileBytes []byte, displayName string, opts ...IngestOption) (IngestResult, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	docID = strings.TrimSpace(docID)
	if docID == "" {
		return IngestResult{}, fmt.Errorf("%w: empty doc_id", ErrInvalidInput)
	}
	if len(fileBytes) == 0 {
		return IngestResult{}, fmt.Errorf("%w: empty file_bytes", ErrInvalidInput)
	}
	if e.cfg.MaxUploadBytes > 0 && int64(len(fileBytes)) > e.cfg.MaxUploadBytes {
		return IngestResult{}, fmt.Errorf("%w: upload of %d bytes exceeds %d byte limit", ErrQuotaExceeded, len(fileBytes), e.cfg.MaxUploadBytes)
	}
	if displayName == "" {
		displayName = docID
	}

	deadline := time.Duration(e.cfg.IngestDeadlineSeconds) * time.Second
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(displayName), "."))
	if format == "" {
		format = "pdf"
	}

	stagedPath, cleanup, err := stageTempFile(fileBytes, format)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: staging upload: %v", ErrFatal, err)
	}
	defer cleanup()

	var metadataJSON string
	if options.metadata != nil {
		data, _ := json.Marshal(options.metadata)
		metadataJSON = string(data)
	}

	internalID, err := e.store.UpsertDocumentByHash(ctx, store.Document{
		Path:        stagedPath,
		DisplayName: displayName,
		Filename:    filepath.Base(displayName),
		Format:      format,
		ContentHash: docID,
		ParseMethod: "pending",
		Status:      "processing",
		Metadata:    metadataJSON,
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: upserting document: %v", ErrFatal, err)
	}

	p, err := e.parsers.Get(format)
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, internalID, "error")
		return IngestResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	slog.Info("ingest: parsing document", "doc_id", docID, "format", format, "internal_id", internalID)
	parseStart := time.Now()
	parsed, err := p.Parse(ctx, stagedPath)
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, internalID, "error")
		return IngestResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	slog.Info("ingest: parsing complete",
		"doc_id", docID, "method", parsed.Method,
		"sections", len(parsed.Sections), "tables", len(parsed.Tables),
		"elapsed", time.Since(parseStart).Round(time.Millisecond))
	e.store.UpdateDocumentParseMethod(ctx, internalID, parsed.Method)

	// Re-ingestion of the same doc_id replaces rather than duplicates: wipe
	// prior chunks/entities/embeddings and prior schemas/physical tables
	// before writing the fresh extraction.
	if err := e.store.DeleteDocumentData(ctx, internalID); err != nil {
		return IngestResult{}, fmt.Errorf("%w: cleaning prior chunk data: %v", ErrFatal, err)
	}
	if err := e.registry.Delete(ctx, internalID); err != nil {
		return IngestResult{}, fmt.Errorf("%w: cleaning prior schemas: %v", ErrFatal, err)
	}
	e.schemaCache.Invalidate(internalID)

	chunks := e.chunkr.Chunk(parsed.Sections)
	for i := range chunks {
		chunks[i].DocumentID = internalID
	}
	chunkIDs, err := e.store.InsertChunks(ctx, chunks)
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, internalID, "error")
		return IngestResult{}, fmt.Errorf("%w: inserting chunks: %v", ErrFatal, err)
	}

	slog.Info("ingest: embedding chunks", "doc_id", docID, "chunks", len(chunks))
	if err := e.embedChunks(ctx, chunks, chunkIDs); err != nil {
		e.store.UpdateDocumentStatus(ctx, internalID, "error")
		return IngestResult{}, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	if !e.cfg.SkipGraph {
		slog.Info("ingest: building knowledge graph", "doc_id", docID, "concurrency", e.cfg.GraphConcurrency)
		if err := e.graphB.Build(ctx, internalID, chunks, chunkIDs); err != nil {
			slog.Warn("graph build had errors (non-fatal)", "doc_id", docID, "error", err)
		}
	}

	shortID := schemainfer.ShortID(docID)
	var storedSchemas []string
	tablesStored := 0
	for i, raw := range parsed.Tables {
		if len(raw.Rows) == 0 {
			continue
		}
		schema, err := e.schemaInferrer.Infer(ctx, raw, internalID, shortID)
		if err != nil {
			slog.Warn("ingest: schema inference failed, skipping table",
				"doc_id", docID, "table_index", i, "error", fmt.Errorf("%w: %v", ErrSchemaInferenceFailure, err))
			continue
		}
		if err := e.store.CreateTableForSchema(ctx, schema); err != nil {
			slog.Warn("ingest: creating physical table failed, skipping", "table", schema.TableName, "error", err)
			continue
		}
		if _, err := e.tableWriter.Persist(ctx, schema, raw); err != nil {
			slog.Warn("ingest: persisting rows failed, skipping", "table", schema.TableName, "error", err)
			continue
		}
		if err := e.registry.Put(ctx, schema); err != nil {
			slog.Warn("ingest: registering schema failed, skipping", "table", schema.TableName, "error", err)
			continue
		}
		storedSchemas = append(storedSchemas, schema.TableName)
		tablesStored++
	}
	e.schemaCache.Invalidate(internalID)

	e.store.UpdateDocumentStatus(ctx, internalID, "ready")
	slog.Info("ingest: document ready", "doc_id", docID, "internal_id", internalID,
		"chunks", len(chunks), "tables", tablesStored,
		"elapsed", time.Since(parseStart).Round(time.Millisecond))

	return IngestResult{Tables: tablesStored, Chunks: len(chunks), Schemas: storedSchemas}, nil
}

// Answer routes a question through Manager -> (Table, RAG) -> Combiner.
func (e *engine) Answer(ctx context.Context, question, docID string, opts ...QueryOption) (*AnswerResult, error) {
	options := &queryOptions{}
	for _, o := range opts {
		o(options)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidInput)
	}
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, fmt.Errorf("%w: empty doc_id", ErrInvalidInput)
	}

	doc, err := e.store.GetDocumentByHash(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown doc_id %q", ErrInvalidInput, docID)
	}

	deadline := time.Duration(e.cfg.QueryDeadlineSeconds) * time.Second
	if deadline <= 0 {
		deadline = 120 * time.Second
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	state := &agent.State{Question: question, DocID: docID}
	if err := e.manager.Classify(ctx, state, doc.ID); err != nil {
		return nil, translateAgentErr(err)
	}

	var wg sync.WaitGroup
	var tableErr, ragErr error

	if state.NeedsTable {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.tableAgent.Answer(ctx, state.TableSubQuery, doc.ID)
			if err != nil {
				if errors.Is(err, agent.ErrQuotaExceeded) {
					tableErr = err
					return
				}
				slog.Warn("answer: table agent failed, degrading", "doc_id", docID, "error", err)
				state.TableResponse = agent.MsgQueryFailed
				return
			}
			state.TableResponse = resp
		}()
	}

	if state.NeedsRAG {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _, err := e.ragAgent.Answer(ctx, state.RAGSubQuery, doc.ID, options.ragOverride)
			if err != nil {
				if errors.Is(err, agent.ErrQuotaExceeded) {
					ragErr = err
					return
				}
				slog.Warn("answer: rag agent failed, degrading", "doc_id", docID, "error", err)
				state.RAGResponse = agent.MsgInsufficientContext
				return
			}
			state.RAGResponse = resp
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return &AnswerResult{Answer: agent.MsgTimeout, Classification: state.Classification}, nil
	}
	if tableErr != nil {
		return nil, translateAgentErr(tableErr)
	}
	if ragErr != nil {
		return nil, translateAgentErr(ragErr)
	}

	finalAnswer, err := e.combiner.Combine(ctx, question, state.TableResponse, state.RAGResponse)
	if err != nil {
		return nil, translateAgentErr(err)
	}
	state.Answer = finalAnswer

	e.store.LogQuery(ctx, store.QueryLog{
		Query:           question,
		Answer:          finalAnswer,
		RetrievalMethod: state.Classification,
	})

	return &AnswerResult{
		Answer:         finalAnswer,
		Classification: state.Classification,
		TableResponse:  state.TableResponse,
		RAGResponse:    state.RAGResponse,
	}, nil
}

// Compare runs the full hybrid Answer alongside a pure-RAG bypass (Manager
// and Table agent skipped entirely) of the same question.
func (e *engine) Compare(ctx context.Context, question, docID string) (*CompareResult, error) {
	full, err := e.Answer(ctx, question, docID)
	if err != nil {
		return nil, err
	}

	doc, err := e.store.GetDocumentByHash(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown doc_id %q", ErrInvalidInput, docID)
	}

	pureRAG, _, err := e.ragAgent.Answer(ctx, question, doc.ID)
	if err != nil {
		if errors.Is(err, agent.ErrQuotaExceeded) {
			return nil, translateAgentErr(err)
		}
		pureRAG = agent.MsgQueryFailed
	}

	return &CompareResult{Answer: full, PureRAG: pureRAG}, nil
}

// DeleteDocument removes a document and cascades to its schemas, physical
// tables, chunks, embeddings, and graph entities.
func (e *engine) DeleteDocument(ctx context.Context, docID string) error {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return fmt.Errorf("%w: empty doc_id", ErrInvalidInput)
	}
	doc, err := e.store.GetDocumentByHash(ctx, docID)
	if err != nil {
		return fmt.Errorf("%w: unknown doc_id %q", ErrInvalidInput, docID)
	}

	if err := e.registry.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("%w: deleting schemas for doc_id %q: %v", ErrFatal, docID, err)
	}
	e.schemaCache.Invalidate(doc.ID)

	if err := e.store.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("%w: deleting document %q: %v", ErrFatal, docID, err)
	}
	return nil
}

// ClearAllData removes every ingested document and its derived data.
func (e *engine) ClearAllData(ctx context.Context) error {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing documents: %v", ErrFatal, err)
	}
	for _, d := range docs {
		if err := e.registry.Delete(ctx, d.ID); err != nil {
			slog.Warn("clearalldata: registry delete failed", "doc_id", d.ContentHash, "error", err)
		}
		e.schemaCache.Invalidate(d.ID)
		if err := e.store.DeleteDocument(ctx, d.ID); err != nil {
			return fmt.Errorf("%w: deleting document %q: %v", ErrFatal, d.ContentHash, err)
		}
	}
	return nil
}

// ListDocuments returns all ingested documents.
func (e *engine) ListDocuments(ctx context.Context) ([]Document, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = Document{
			DocID:       d.ContentHash,
			DisplayName: d.DisplayName,
			Filename:    d.Filename,
			Format:      d.Format,
			ParseMethod: d.ParseMethod,
			Status:      d.Status,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		}
		if d.Metadata != "" {
			_ = json.Unmarshal([]byte(d.Metadata), &result[i].Metadata)
		}
	}
	return result, nil
}

// Health reports whether the backing store is reachable.
func (e *engine) Health(ctx context.Context) error {
	if err := e.store.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("%w: store unreachable: %v", ErrFatal, err)
	}
	return nil
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}

// translateAgentErr maps an agent-package sentinel to the root package's
// equivalent, so callers only ever see the engine's own error taxonomy.
func translateAgentErr(err error) error {
	switch {
	case errors.Is(err, agent.ErrQuotaExceeded):
		return fmt.Errorf("%s %w: %v", agent.QuotaMarker, ErrQuotaExceeded, err)
	case errors.Is(err, agent.ErrInvalidInput):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, agent.ErrFatal):
		return fmt.Errorf("%w: %v", ErrFatal, err)
	default:
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
}

// stageTempFile writes fileBytes to a temporary file so format-specific
// parsers, which are path-based, can read it. The returned path is
// incidental staging detail, not document identity.
func stageTempFile(fileBytes []byte, format string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "hybridrag-upload-*."+format)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(fileBytes); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// maxEmbedChars bounds the character length of a single text sent to the
// embedding model: ~24000 chars (~6000 tokens) leaves headroom for varied
// tokenisers below an 8192-token context window.
const maxEmbedChars = 24000

func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
	}
	return text[:cut]
}

// embedChunks generates embeddings for chunks in batches. Individual batch
// failures fall back to per-text embedding so one oversized text doesn't
// lose the entire batch.
func (e *engine) embedChunks(ctx context.Context, chunks []store.Chunk, chunkIDs []int64) error {
	const batchSize = 32
	var failed int

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			prefix := ""
			if chunks[j].Heading != "" {
				prefix = chunks[j].Heading + ": "
			}
			texts[j-i] = truncateForEmbed(prefix + chunks[j].Content)
		}

		embeddings, err := e.embedLLM.Embed(ctx, texts)
		if err != nil {
			slog.Warn("embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", err)
			for j, text := range texts {
				single, serr := e.embedLLM.Embed(ctx, []string{text})
				if serr != nil || len(single) == 0 || len(single[0]) == 0 {
					failed++
					continue
				}
				if serr := e.store.InsertEmbedding(ctx, chunkIDs[i+j], single[0]); serr != nil {
					failed++
				}
			}
			continue
		}

		for j, emb := range embeddings {
			if err := e.store.InsertEmbedding(ctx, chunkIDs[i+j], emb); err != nil {
				slog.Warn("storing embedding failed", "chunk_id", chunkIDs[i+j], "error", err)
				failed++
			}
		}
	}

	if failed == len(chunks) && len(chunks) > 0 {
		return fmt.Errorf("all %d chunks failed embedding", len(chunks))
	}
	if failed > 0 {
		slog.Warn("some embeddings failed", "failed", failed, "total", len(chunks))
	}
	return nil
}
