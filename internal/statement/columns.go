package statement

import "strings"

// Candidate header names per canonical field, shared by the text and
// spreadsheet adapters.
var (
	dateHeaders        = []string{"date", "transaction date", "txn date", "value date", "value dt", "valuedt", "posting date"}
	descriptionHeaders = []string{"description", "narration", "details", "merchant", "remarks", "particulars"}
	debitHeaders       = []string{"debit", "debit amount", "withdrawal amt.", "withdrawal amount", "withdrawal", "dr"}
	creditHeaders      = []string{"credit", "credit amount", "deposit amt.", "deposit amount", "deposit", "cr"}
	amountHeaders      = []string{"amount", "transaction amount", "amt"}
	typeHeaders        = []string{"type", "transaction type", "dr/cr", "dr/ cr", "debit/credit", "crdr"}
	referenceHeaders   = []string{"ref", "ref no", "reference", "reference no", "utr", "transaction id", "cheque no"}
)

// PDF renderers mangle headers ("Withdrawal Amt.", "Chq./Ref.No."), so the PDF
// adapter matches against punctuation-free variants.
var (
	pdfDateHeaders        = []string{"date", "valuedt", "value dt", "valuedate"}
	pdfDescriptionHeaders = []string{"narration", "description", "details"}
	pdfReferenceHeaders   = []string{"chqrefno", "chq/refno", "ref", "ref no", "utr"}
	pdfDebitHeaders       = []string{"withdrawalamt", "withdrawal amt", "debit", "dr"}
	pdfCreditHeaders      = []string{"depositamt", "deposit amt", "credit", "cr"}
)

// columnMap holds the detected column index per canonical field; -1 means
// the field has no column.
type columnMap struct {
	date, description, debit, credit, amount, kind, reference int
}

func noColumns() columnMap {
	return columnMap{-1, -1, -1, -1, -1, -1, -1}
}

// normalizeHeader lowercases and trims a header cell and drops a byte order mark.
func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "\ufeff", "")))
}

// findColumn returns the index of the header cell matching one of the
// candidates, or -1. An exact match anywhere in the header beats a substring
// match; within a pass the leftmost cell wins.
func findColumn(header []string, candidates []string) int {
	for idx, name := range header {
		for _, cand := range candidates {
			if cand == name {
				return idx
			}
		}
	}
	for idx, name := range header {
		for _, cand := range candidates {
			if strings.Contains(name, cand) {
				return idx
			}
		}
	}
	return -1
}

// detectColumns maps a raw header row using the shared candidate lists.
func detectColumns(rawHeader []string) columnMap {
	header := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = normalizeHeader(h)
	}
	return columnMap{
		date:        findColumn(header, dateHeaders),
		description: findColumn(header, descriptionHeaders),
		debit:       findColumn(header, debitHeaders),
		credit:      findColumn(header, creditHeaders),
		amount:      findColumn(header, amountHeaders),
		kind:        findColumn(header, typeHeaders),
		reference:   findColumn(header, referenceHeaders),
	}
}

// rowFromCells builds a canonical row. Cells past the end of the record and
// fields without a column are nil.
func (c columnMap) rowFromCells(cells []string) CanonicalRow {
	get := func(idx int) *string {
		if idx < 0 || idx >= len(cells) {
			return nil
		}
		v := cells[idx]
		return &v
	}
	return CanonicalRow{
		Date:        get(c.date),
		Description: get(c.description),
		Debit:       get(c.debit),
		Credit:      get(c.credit),
		Amount:      get(c.amount),
		Type:        get(c.kind),
		Reference:   get(c.reference),
	}
}
