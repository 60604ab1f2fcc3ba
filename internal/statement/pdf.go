package statement

import "strings"

// TableExtractor pulls tables out of a PDF document. Each table is a list
// of rows of cell text and its first row is the header.
type TableExtractor interface {
	ExtractTables(data []byte) ([][][]string, error)
}

// PDFAdapter maps tables found in a PDF statement to canonical rows.
type PDFAdapter struct {
	extractor TableExtractor
}

// NewPDFAdapter creates a PDF adapter. A nil extractor selects the
// text-layout extractor.
func NewPDFAdapter(extractor TableExtractor) *PDFAdapter {
	if extractor == nil {
		extractor = NewLayoutExtractor()
	}
	return &PDFAdapter{extractor: extractor}
}

// Parse extracts every table on every page, in document order.
func (a *PDFAdapter) Parse(data []byte) ([]CanonicalRow, error) {
	tables, err := a.extractor.ExtractTables(data)
	if err != nil {
		return nil, &FormatError{Format: FormatPDF, Err: err}
	}

	var rows []CanonicalRow
	for _, table := range tables {
		if len(table) == 0 {
			continue
		}
		cols := detectPDFColumns(table[0])
		if cols.debit < 0 && len(table[0]) >= 6 {
			cols = positionalColumns(cols, table[1:])
		}

		for _, cells := range table[1:] {
			if isBlank(cells) {
				continue
			}
			row := cols.rowFromCells(cells)
			if isMerged(row) {
				rows = append(rows, explodeMergedRow(row)...)
				continue
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func normalizePDFHeader(s string) string {
	s = normalizeHeader(s)
	s = strings.ReplaceAll(s, "*", "")
	s = strings.ReplaceAll(s, ".", "")
	return strings.TrimSpace(s)
}

func detectPDFColumns(rawHeader []string) columnMap {
	header := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = normalizePDFHeader(h)
	}
	cols := noColumns()
	cols.date = findColumn(header, pdfDateHeaders)
	cols.description = findColumn(header, pdfDescriptionHeaders)
	cols.reference = findColumn(header, pdfReferenceHeaders)
	cols.debit = findColumn(header, pdfDebitHeaders)
	cols.credit = findColumn(header, pdfCreditHeaders)
	return cols
}

// positionalColumns fills unmatched fields with the common layout
// Date | Narration | Chq/Ref No | Value Dt | Withdrawal | Deposit | Balance.
// The layout is only trusted when the date column holds dates; otherwise the
// header-based mapping is returned untouched.
func positionalColumns(cols columnMap, data [][]string) columnMap {
	guess := cols
	if guess.date < 0 {
		guess.date = 0
	}
	if guess.description < 0 {
		guess.description = 1
	}
	if guess.reference < 0 {
		guess.reference = 2
	}
	if guess.debit < 0 {
		guess.debit = 4
	}
	if guess.credit < 0 {
		guess.credit = 5
	}
	if !columnHoldsDates(data, guess.date) {
		return cols
	}
	return guess
}

// columnHoldsDates reports whether at least half of the non-empty cells in
// column idx start with a parseable date.
func columnHoldsDates(data [][]string, idx int) bool {
	seen, parsed := 0, 0
	for _, cells := range data {
		if idx >= len(cells) {
			continue
		}
		lines := splitLines(&cells[idx])
		if len(lines) == 0 {
			continue
		}
		seen++
		if _, ok := ParseDate(lines[0]); ok {
			parsed++
		}
	}
	return seen > 0 && parsed*2 >= seen
}
