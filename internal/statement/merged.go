package statement

import "strings"

// Description fragments that mark a reconstructed transaction as money out.
var debitMarkers = []string{"UPI-", "POS ", "ATM", "WITHDRAWAL"}

// isMerged reports whether a PDF row bundles several lines in one of the
// cells that drive reconstruction.
func isMerged(row CanonicalRow) bool {
	for _, p := range []*string{row.Date, row.Description, row.Debit, row.Credit} {
		if p != nil && strings.Contains(*p, "\n") {
			return true
		}
	}
	return false
}

func splitLines(p *string) []string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	var lines []string
	for _, l := range strings.Split(*p, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// explodeMergedRow rebuilds one row per date line. Descriptions are split
// evenly across the dates and amounts are handed out with separate debit and
// credit cursors.
func explodeMergedRow(row CanonicalRow) []CanonicalRow {
	dates := splitLines(row.Date)
	if len(dates) == 0 {
		return nil
	}
	debits := splitLines(row.Debit)
	credits := splitLines(row.Credit)
	descLines := splitLines(row.Description)
	refs := splitLines(row.Reference)

	n := len(dates)
	perTx := len(descLines) / n
	if perTx < 1 {
		perTx = 1
	}
	var descs []string
	for i := 0; i < len(descLines); i += perTx {
		end := i + perTx
		if end > len(descLines) {
			end = len(descLines)
		}
		descs = append(descs, strings.Join(descLines[i:end], " "))
	}
	for len(descs) < n {
		descs = append(descs, "")
	}

	debitIdx, creditIdx := 0, 0
	out := make([]CanonicalRow, 0, n)
	for i := 0; i < n; i++ {
		desc := descs[i]
		var debit, credit *string

		if desc != "" {
			if hasDebitMarker(desc) {
				if debitIdx < len(debits) {
					debit = Str(debits[debitIdx])
					debitIdx++
				}
			} else if creditIdx < len(credits) {
				credit = Str(credits[creditIdx])
				creditIdx++
			}
		}
		if debit == nil && credit == nil {
			if debitIdx < len(debits) {
				debit = Str(debits[debitIdx])
				debitIdx++
			} else if creditIdx < len(credits) {
				credit = Str(credits[creditIdx])
				creditIdx++
			}
		}

		var ref *string
		if i < len(refs) {
			ref = Str(refs[i])
		}
		out = append(out, CanonicalRow{
			Date:        Str(dates[i]),
			Description: Str(desc),
			Debit:       debit,
			Credit:      credit,
			Reference:   ref,
		})
	}
	return out
}

func hasDebitMarker(desc string) bool {
	upper := strings.ToUpper(desc)
	for _, m := range debitMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}
