package notionsync

import (
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the transactions database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropAmount        = "Amount"
	PropDate          = "Date"
	PropCategory      = "Category"
	PropUser          = "User"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// TransactionToNotionProperties maps a stored withdrawal to a page of the
// transactions database. Uncategorised transactions get no Category.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	date := notionapi.Date(tx.TransactionDate)
	props := notionapi.Properties{
		PropDescription:   notionapi.TitleProperty{Title: richText(tx.Description)},
		PropTransactionID: notionapi.RichTextProperty{RichText: richText(tx.ID)},
		PropAmount:        notionapi.NumberProperty{Number: tx.Amount.Round(2).InexactFloat64()},
		PropDate:          notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		PropUser:          notionapi.RichTextProperty{RichText: richText(tx.UserID)},
	}
	if tx.CategoryName != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.CategoryName}}
	}
	return props
}

// extractTransactionID reads the Transaction ID property of a page returned
// by the API. Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		if len(p.RichText) > 0 {
			return p.RichText[0].PlainText
		}
	case notionapi.RichTextProperty:
		if len(p.RichText) > 0 {
			return p.RichText[0].PlainText
		}
	}
	return ""
}
