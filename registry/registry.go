// Package registry implements the schema registry: the persistent mapping
// from table_name to the typed schema inferred for it, one entry per
// physical table created during ingestion.
//
// The JSON file on disk is the source of truth (spec §6's "Persisted state
// layout": a single JSON-shaped file, atomic rewrite); the schema_registry
// SQL table kept by store is a mirror used for joins and discovery from the
// table agent. Both are written together so neither drifts from the other.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/brunobiangulo/hybridrag/store"
)

// Registry holds the in-memory table_name -> TableSchema map, synced to a
// JSON file on disk (atomic write-to-temp-then-rename) and mirrored into
// the store's schema_registry table.
type Registry struct {
	mu      sync.RWMutex
	path    string
	store   *store.Store
	schemas map[string]store.TableSchema
}

// New creates a registry backed by the JSON file at path and mirrored into
// s's schema_registry table. Call Load to populate it before first use (the
// file when it exists, otherwise the SQL mirror).
func New(path string, s *store.Store) *Registry {
	return &Registry{
		path:    path,
		store:   s,
		schemas: make(map[string]store.TableSchema),
	}
}

// Load populates the in-memory map from the JSON file if it exists,
// otherwise falls back to the SQL mirror (e.g. first run, or a file that
// was lost but the database survived).
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err == nil {
		var fileSchemas map[string]store.TableSchema
		if err := json.Unmarshal(data, &fileSchemas); err != nil {
			return fmt.Errorf("parsing schema registry file: %w", err)
		}
		r.schemas = fileSchemas
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("reading schema registry file: %w", err)
	}

	all, err := r.store.AllSchemas(ctx)
	if err != nil {
		return fmt.Errorf("loading schema registry from store: %w", err)
	}
	for _, sc := range all {
		r.schemas[sc.TableName] = sc
	}
	return r.writeFileLocked()
}

// Put upserts a schema, persisting it to both the JSON file and the SQL
// mirror before returning, so readers never observe a partial write.
func (r *Registry) Put(ctx context.Context, schema store.TableSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if schema.TableName == "" {
		return fmt.Errorf("registry: empty table_name")
	}

	if err := r.store.PutSchema(ctx, schema); err != nil {
		return fmt.Errorf("mirroring schema %q: %w", schema.TableName, err)
	}

	prev, existed := r.schemas[schema.TableName]
	r.schemas[schema.TableName] = schema
	if err := r.writeFileLocked(); err != nil {
		// Roll back the in-memory map; the SQL mirror already committed, so
		// a subsequent Load() will re-derive the file from it.
		if existed {
			r.schemas[schema.TableName] = prev
		} else {
			delete(r.schemas, schema.TableName)
		}
		return err
	}
	return nil
}

// Get returns the schema for table_name, or false if unknown.
func (r *Registry) Get(tableName string) (store.TableSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.schemas[tableName]
	return sc, ok
}

// ByDoc returns every schema owned by docID, ordered by table_name for
// deterministic output.
func (r *Registry) ByDoc(docID int64) []store.TableSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []store.TableSchema
	for _, sc := range r.schemas {
		if sc.DocumentID == docID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}

// All returns every schema in the registry, ordered by table_name.
func (r *Registry) All() []store.TableSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]store.TableSchema, 0, len(r.schemas))
	for _, sc := range r.schemas {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}

// Delete removes every schema owned by docID (and its backing physical
// table, via the store's cascade) from both the SQL mirror and the file.
func (r *Registry) Delete(ctx context.Context, docID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteSchemasByDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting schemas for document %d: %w", docID, err)
	}

	for name, sc := range r.schemas {
		if sc.DocumentID == docID {
			delete(r.schemas, name)
		}
	}
	return r.writeFileLocked()
}

// writeFileLocked atomically rewrites the JSON file. Caller must hold r.mu.
func (r *Registry) writeFileLocked() error {
	data, err := json.MarshalIndent(r.schemas, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating registry directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, strings.TrimSuffix(filepath.Base(r.path), filepath.Ext(r.path))+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp registry file: %w", err)
	}
	return nil
}
