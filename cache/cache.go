// Package cache implements the two process-local bounded caches spec §4.10
// calls for: a read-through schema cache invalidated on registry writes,
// and an LRU classification cache keyed by normalized question + doc_id.
package cache

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/brunobiangulo/hybridrag/store"
)

// SchemaLoader fetches the authoritative schema list for a document,
// called on a cache miss.
type SchemaLoader func(ctx context.Context, docID int64) ([]store.TableSchema, error)

// SchemaCache is a read-through cache over registry.ByDoc, bounded by entry
// count (LRU eviction) and invalidated whenever the owning document's
// schemas change (put or delete).
type SchemaCache struct {
	mu     sync.Mutex
	lru    *lru.Cache[int64, []store.TableSchema]
	loader SchemaLoader
}

// NewSchemaCache creates a schema cache that calls loader on a miss, bounded
// to size documents' worth of entries. size <= 0 falls back to a single
// entry rather than disabling bounding.
func NewSchemaCache(loader SchemaLoader, size int) (*SchemaCache, error) {
	if size <= 0 {
		size = 1
	}
	l, err := lru.New[int64, []store.TableSchema](size)
	if err != nil {
		return nil, err
	}
	return &SchemaCache{lru: l, loader: loader}, nil
}

// ByDoc returns the schemas for docID, loading and caching them on a miss.
func (c *SchemaCache) ByDoc(ctx context.Context, docID int64) ([]store.TableSchema, error) {
	c.mu.Lock()
	if schemas, ok := c.lru.Get(docID); ok {
		c.mu.Unlock()
		return schemas, nil
	}
	c.mu.Unlock()

	schemas, err := c.loader(ctx, docID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Add(docID, schemas)
	c.mu.Unlock()
	return schemas, nil
}

// Invalidate drops the cached entry for docID, forcing the next ByDoc call
// to read through to the loader. Called after registry Put or Delete.
func (c *SchemaCache) Invalidate(docID int64) {
	c.mu.Lock()
	c.lru.Remove(docID)
	c.mu.Unlock()
}

// Classification is the Manager node's cached classifier output.
type Classification struct {
	Status        string // "table", "rag", or "both"
	TableSubQuery string
	RAGSubQuery   string
}

// ClassificationCache is an LRU bounded by entry count, keyed by
// normalize(question) + doc_id.
type ClassificationCache struct {
	lru *lru.Cache[string, Classification]
}

// NewClassificationCache creates an LRU classification cache bounded to
// size entries.
func NewClassificationCache(size int) (*ClassificationCache, error) {
	if size <= 0 {
		size = 1
	}
	l, err := lru.New[string, Classification](size)
	if err != nil {
		return nil, err
	}
	return &ClassificationCache{lru: l}, nil
}

// Key normalizes a question (lowercase, trim, collapse whitespace) and
// pairs it with docID, per spec §4.6's caching rule.
func Key(question string, docID string) string {
	fields := strings.Fields(strings.ToLower(question))
	return strings.Join(fields, " ") + "|" + docID
}

// Get returns the cached classification for key, if present.
func (c *ClassificationCache) Get(key string) (Classification, bool) {
	return c.lru.Get(key)
}

// Put caches a classification for key.
func (c *ClassificationCache) Put(key string, cl Classification) {
	c.lru.Add(key, cl)
}
