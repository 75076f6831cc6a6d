package hybridrag

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the hybridrag engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.hybridrag/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "hybridrag". The file will be <DBName>.db inside the
	// storage directory (~/.hybridrag/ or working dir).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.hybridrag/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`
	Vision    LLMConfig `json:"vision" yaml:"vision"`

	// Retrieval weights for RRF
	WeightVector float64 `json:"weight_vector" yaml:"weight_vector"`
	WeightFTS    float64 `json:"weight_fts" yaml:"weight_fts"`
	WeightGraph  float64 `json:"weight_graph" yaml:"weight_graph"`

	// Chunking
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Graph building
	SkipGraph        bool `json:"skip_graph" yaml:"skip_graph"`               // Skip knowledge graph extraction during ingest
	GraphConcurrency int  `json:"graph_concurrency" yaml:"graph_concurrency"` // Max parallel LLM calls for graph extraction (default 16)

	// Reasoning. ConfidenceThreshold is passed to the reasoning engine, which
	// logs answers scoring below it. RAGAgent's insufficient-context fallback
	// uses its own fixed floor (minAnswerConfidence), not this value.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// MaxUploadBytes bounds the size of a single ingest's file_bytes. An
	// upload exceeding this returns ErrQuotaExceeded.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// ClassificationCacheSize bounds the Manager's classification_cache
	// entry count (LRU eviction).
	ClassificationCacheSize int `json:"classification_cache_size" yaml:"classification_cache_size"`

	// SchemaCacheSize bounds the schema_cache entry count (LRU eviction).
	SchemaCacheSize int `json:"schema_cache_size" yaml:"schema_cache_size"`

	// QueryDeadlineSeconds bounds a single Answer call, applied via
	// context.WithTimeout when the caller's context carries no deadline.
	QueryDeadlineSeconds int `json:"query_deadline_seconds" yaml:"query_deadline_seconds"`

	// IngestDeadlineSeconds bounds a single Ingest call, same rule.
	IngestDeadlineSeconds int `json:"ingest_deadline_seconds" yaml:"ingest_deadline_seconds"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openrouter, xai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.hybridrag/hybridrag.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "hybridrag",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Vision: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.2-vision",
			BaseURL:  "http://localhost:11434",
		},
		WeightVector:            1.0,
		WeightFTS:               1.0,
		WeightGraph:             0.5,
		MaxChunkTokens:          1024,
		ChunkOverlap:            128,
		ConfidenceThreshold:     0.7,
		EmbeddingDim:            768,
		MaxUploadBytes:          50 * 1024 * 1024,
		ClassificationCacheSize: 512,
		SchemaCacheSize:         256,
		QueryDeadlineSeconds:    120,
		IngestDeadlineSeconds:   600,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "hybridrag"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".hybridrag")
		return filepath.Join(dir, name+".db")
	}
}
