package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/insurspeak/internal/doctree"
)

// CSVParser handles CSV files such as benefit schedules. The first row is
// the header; every data row becomes one line of "header: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := doctree.NewBuilder(trimExt(filename))
	if len(records) == 0 {
		return b.Tree(), nil
	}

	headers := records[0]
	for _, row := range records[1:] {
		pairs := make([]string, 0, len(row))
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
				pairs = append(pairs, strings.TrimSpace(headers[j])+": "+cell)
			} else {
				pairs = append(pairs, cell)
			}
		}
		b.Paragraph(strings.Join(pairs, "; "))
	}
	return b.Tree(), nil
}
