// Package tablewriter implements the table writer (spec §4.4): creates the
// physical table backing a TableSchema on first use, then coerces and
// appends each incoming row's cells to the column's semantic type.
package tablewriter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/hybridrag/parser"
	"github.com/brunobiangulo/hybridrag/store"
)

// Writer persists coerced rows into the dynamic tables the schema
// inferrer names.
type Writer struct {
	store *store.Store
}

// New creates a table writer backed by s.
func New(s *store.Store) *Writer {
	return &Writer{store: s}
}

// Persist creates schema's physical table if it does not already exist,
// coerces every cell of table's data rows per its column's semantic type,
// and appends them. Returns the number of rows stored.
func (w *Writer) Persist(ctx context.Context, schema store.TableSchema, table parser.RawTable) (int, error) {
	if err := w.store.CreateTableForSchema(ctx, schema); err != nil {
		return 0, fmt.Errorf("creating table %q: %w", schema.TableName, err)
	}

	colNames := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		colNames[i] = c.Name
	}

	rows := make([][]any, 0, len(table.Rows))
	for _, raw := range table.Rows {
		row := make([]any, len(schema.Columns))
		for i, col := range schema.Columns {
			var cell string
			if i < len(raw) {
				cell = raw[i]
			}
			row[i] = coerce(cell, col.Type)
		}
		rows = append(rows, row)
	}

	if err := w.store.InsertRows(ctx, schema.TableName, colNames, rows); err != nil {
		return 0, fmt.Errorf("inserting rows into %q: %w", schema.TableName, err)
	}
	return len(rows), nil
}

var currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", "₹", "", ",", "")
var groupingSeparators = strings.NewReplacer(",", "")

// coerce converts a raw cell string to the Go value matching typ's SQLite
// storage class. A failed coercion becomes nil (stored as SQL NULL),
// never a string fallback, per spec §4.4.
func coerce(cell string, typ store.ColumnType) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		if typ == store.ColString {
			return ""
		}
		return nil
	}

	switch typ {
	case store.ColInteger:
		n, err := strconv.ParseInt(groupingSeparators.Replace(cell), 10, 64)
		if err != nil {
			return nil
		}
		return n
	case store.ColFloat:
		f, err := strconv.ParseFloat(groupingSeparators.Replace(cell), 64)
		if err != nil {
			return nil
		}
		return f
	case store.ColCurrency:
		f, err := strconv.ParseFloat(currencySymbols.Replace(cell), 64)
		if err != nil {
			return nil
		}
		return f
	case store.ColPercentage:
		// The displayed magnitude is stored literally: "35%" -> 35.0, not
		// 0.35. A downstream SUM/AVG over this column matches what a reader
		// sees in the source table without an implicit /100 convention.
		stripped := strings.TrimSuffix(cell, "%")
		f, err := strconv.ParseFloat(strings.TrimSpace(groupingSeparators.Replace(stripped)), 64)
		if err != nil {
			return nil
		}
		return f
	case store.ColDate:
		if iso, ok := parseDate(cell); ok {
			return iso
		}
		return nil
	default: // string
		return cell
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02-01-2006",
}

var looksLikeNumber = regexp.MustCompile(`^[\d.,]+$`)

// parseDate tries a handful of common layouts and returns the value in
// canonical ISO-8601 (YYYY-MM-DD) form.
func parseDate(cell string) (string, bool) {
	if looksLikeNumber.MatchString(cell) {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
