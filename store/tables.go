package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

func marshalColumns(cols []TableColumn) (string, error) {
	b, err := json.Marshal(cols)
	if err != nil {
		return "", fmt.Errorf("marshaling columns: %w", err)
	}
	return string(b), nil
}

func unmarshalColumns(data string) ([]TableColumn, error) {
	var cols []TableColumn
	if err := json.Unmarshal([]byte(data), &cols); err != nil {
		return nil, fmt.Errorf("unmarshaling columns: %w", err)
	}
	return cols, nil
}

// ColumnType enumerates the semantic types the table writer coerces raw
// cell strings into before a physical column stores them.
type ColumnType string

const (
	ColString     ColumnType = "string"
	ColInteger    ColumnType = "integer"
	ColFloat      ColumnType = "float"
	ColCurrency   ColumnType = "currency"
	ColPercentage ColumnType = "percentage"
	ColDate       ColumnType = "date"
)

// sqliteType maps a semantic column type to the SQLite storage class used
// for the physical table.
func (c ColumnType) sqliteType() string {
	switch c {
	case ColInteger:
		return "INTEGER"
	case ColFloat, ColCurrency, ColPercentage:
		return "REAL"
	default:
		return "TEXT"
	}
}

// TableColumn describes one column of an inferred table schema.
type TableColumn struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// TableSchema describes a single physically-materialized table inferred
// from a document's prose or spreadsheet tables.
type TableSchema struct {
	TableName   string        `json:"table_name"`
	DocumentID  int64         `json:"document_id"`
	Description string        `json:"description"`
	Columns     []TableColumn `json:"columns"`
}

// quoteIdent wraps a SQLite identifier in double quotes, escaping any
// embedded quote. Table and column names always flow through this before
// being interpolated into DDL/DML, since SQLite has no placeholder syntax
// for identifiers.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTableForSchema creates the physical table backing an inferred
// schema if it does not already exist. Safe to call repeatedly for the
// same table_name (e.g. on re-ingest or cross-page continuation).
func (s *Store) CreateTableForSchema(ctx context.Context, schema TableSchema) error {
	if schema.TableName == "" {
		return fmt.Errorf("table schema: empty table_name")
	}
	if len(schema.Columns) == 0 {
		return fmt.Errorf("table schema %q: no columns", schema.TableName)
	}

	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), c.Type.sqliteType())
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(schema.TableName), strings.Join(cols, ", "))
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// InsertRows appends rows to a previously-created physical table. Values
// must already be coerced to the column's semantic type by the caller
// (the table writer); this method performs no further conversion.
func (s *Store) InsertRows(ctx context.Context, tableName string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = quoteIdent(c)
		placeholders[i] = "?"
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(tableName), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))

	return s.inTx(ctx, func(tx *sql.Tx) error {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("preparing insert for %q: %w", tableName, err)
		}
		defer prepared.Close()

		for _, row := range rows {
			if len(row) != len(columns) {
				return fmt.Errorf("table %q: row has %d values, expected %d", tableName, len(row), len(columns))
			}
			if _, err := prepared.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("inserting row into %q: %w", tableName, err)
			}
		}
		return nil
	})
}

// QueryResult holds the generic result of an ad-hoc SELECT against a
// dynamic table, for the table reasoning agent to render.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// ExecuteSelect runs a SQL query generated by the table agent and returns
// its result generically. Callers are responsible for rejecting anything
// that is not a single SELECT statement before calling this.
func (s *Store) ExecuteSelect(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, vals)
	}
	return result, rows.Err()
}

// DropTable removes a dynamic table, used when a schema is deleted as part
// of a document's full removal.
func (s *Store) DropTable(ctx context.Context, tableName string) error {
	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(tableName))
	return err
}

// --- schema_registry mirror ---

// PutSchema upserts a schema's mirror row, keyed by table_name.
func (s *Store) PutSchema(ctx context.Context, schema TableSchema) error {
	colsJSON, err := marshalColumns(schema.Columns)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schema_registry (table_name, document_id, description, columns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			document_id = excluded.document_id,
			description = excluded.description,
			columns = excluded.columns
	`, schema.TableName, schema.DocumentID, schema.Description, colsJSON)
	return err
}

// GetSchema returns a schema by table_name.
func (s *Store) GetSchema(ctx context.Context, tableName string) (*TableSchema, error) {
	var schema TableSchema
	var colsJSON string
	row := s.db.QueryRowContext(ctx,
		"SELECT table_name, document_id, COALESCE(description, ''), columns FROM schema_registry WHERE table_name = ?",
		tableName)
	if err := row.Scan(&schema.TableName, &schema.DocumentID, &schema.Description, &colsJSON); err != nil {
		return nil, err
	}
	cols, err := unmarshalColumns(colsJSON)
	if err != nil {
		return nil, err
	}
	schema.Columns = cols
	return &schema, nil
}

// SchemasByDocument returns every schema registered for a document.
func (s *Store) SchemasByDocument(ctx context.Context, docID int64) ([]TableSchema, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, document_id, COALESCE(description, ''), columns FROM schema_registry WHERE document_id = ?",
		docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchemas(rows)
}

// AllSchemas returns every schema in the registry mirror.
func (s *Store) AllSchemas(ctx context.Context) ([]TableSchema, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, document_id, COALESCE(description, ''), columns FROM schema_registry")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchemas(rows)
}

// DeleteSchemasByDocument removes every schema mirror row (and backing
// physical table) for a document, as part of cascading document deletion.
func (s *Store) DeleteSchemasByDocument(ctx context.Context, docID int64) error {
	schemas, err := s.SchemasByDocument(ctx, docID)
	if err != nil {
		return err
	}
	for _, sc := range schemas {
		if err := s.DropTable(ctx, sc.TableName); err != nil {
			return fmt.Errorf("dropping table %q: %w", sc.TableName, err)
		}
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM schema_registry WHERE document_id = ?", docID)
	return err
}

func scanSchemas(rows *sql.Rows) ([]TableSchema, error) {
	var schemas []TableSchema
	for rows.Next() {
		var schema TableSchema
		var colsJSON string
		if err := rows.Scan(&schema.TableName, &schema.DocumentID, &schema.Description, &colsJSON); err != nil {
			return nil, err
		}
		cols, err := unmarshalColumns(colsJSON)
		if err != nil {
			return nil, err
		}
		schema.Columns = cols
		schemas = append(schemas, schema)
	}
	return schemas, rows.Err()
}
