package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xls"} }

// Parse treats each worksheet as a prose section (a pipe-delimited preview,
// kept for search/snippet purposes) AND, when the sheet has a header row
// plus at least one data row, a RawTable fed to the same schema inferrer
// and table writer that PDF-extracted tables go through.
func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var sections []Section
	var tables []RawTable

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		if len(rows) == 0 {
			continue
		}

		var content strings.Builder
		for _, row := range rows {
			content.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}

		sections = append(sections, Section{
			Heading: sheet,
			Content: content.String(),
			Type:    "table",
			Level:   1,
			Metadata: map[string]string{
				"sheet_name": sheet,
				"row_count":  fmt.Sprintf("%d", len(rows)),
			},
		})

		if len(rows) >= 2 {
			header := rows[0]
			dataRows := rows[1:]

			width := len(header)
			normalized := make([][]string, 0, len(dataRows))
			for _, r := range dataRows {
				if len(r) == 0 {
					continue
				}
				row := make([]string, width)
				copy(row, r) // shorter rows zero-pad, excel trims trailing blank cells
				normalized = append(normalized, row)
			}

			if len(normalized) > 0 {
				tables = append(tables, RawTable{
					Header:      header,
					Rows:        normalized,
					NearHeading: sheet,
				})
			}
		}
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}

	return &ParseResult{
		Sections: sections,
		Tables:   tables,
		Method:   "native",
	}, nil
}
