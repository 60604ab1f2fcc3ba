package importer

import (
	"strings"

	"github.com/dvloznov/statement-importer/internal/statement"
	"github.com/shopspring/decimal"
)

var (
	debitTypes  = map[string]bool{"debit": true, "dr": true, "d": true}
	creditTypes = map[string]bool{"credit": true, "cr": true, "c": true}
)

// ResolveWithdrawal returns the withdrawn amount of a row. It reports false
// for deposits and for rows whose amounts cannot be read.
//
// A positive debit wins, then a positive credit marks a deposit. Otherwise
// the signed amount column decides, using the type column when it names a
// side and the sign when it does not.
func ResolveWithdrawal(row statement.CanonicalRow) (decimal.Decimal, bool) {
	if debit, ok := statement.ParseAmount(row.Debit); ok && debit.IsPositive() {
		return debit, true
	}
	if credit, ok := statement.ParseAmount(row.Credit); ok && credit.IsPositive() {
		return decimal.Zero, false
	}

	amount, ok := statement.ParseAmount(row.Amount)
	if !ok {
		return decimal.Zero, false
	}
	kind := strings.ToLower(strings.TrimSpace(statement.Value(row.Type)))
	switch {
	case debitTypes[kind]:
		amount = amount.Abs()
	case creditTypes[kind]:
		return decimal.Zero, false
	case amount.IsNegative():
		amount = amount.Abs()
	default:
		return decimal.Zero, false
	}
	if !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

// BuildDescription joins the description and reference cells. It never
// returns an empty string.
func BuildDescription(row statement.CanonicalRow) string {
	base := strings.TrimSpace(statement.Value(row.Description))
	ref := strings.TrimSpace(statement.Value(row.Reference))
	switch {
	case base != "" && ref != "":
		return base + " (Ref: " + ref + ")"
	case base != "":
		return base
	case ref != "":
		return "Ref: " + ref
	default:
		return "Transaction"
	}
}
