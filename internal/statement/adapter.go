package statement

import (
	"mime"
	"path/filepath"
	"strings"
)

// Adapter turns the raw bytes of one uploaded statement into canonical rows.
type Adapter interface {
	Parse(data []byte) ([]CanonicalRow, error)
}

// Format identifies one of the supported statement formats.
type Format string

const (
	FormatText        Format = "text"
	FormatSpreadsheet Format = "spreadsheet"
	FormatPDF         Format = "pdf"
)

var extensionFormats = map[string]Format{
	".csv":  FormatText,
	".txt":  FormatText,
	".tsv":  FormatText,
	".xlsx": FormatSpreadsheet,
	".xlsm": FormatSpreadsheet,
	".xls":  FormatSpreadsheet,
	".pdf":  FormatPDF,
}

func formatForContentType(mediaType string) (Format, bool) {
	switch strings.ToLower(mediaType) {
	case "text/csv", "text/plain", "text/tab-separated-values", "application/csv":
		return FormatText, true
	case "application/vnd.ms-excel",
		"application/vnd.ms-excel.sheet.macroenabled.12",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatSpreadsheet, true
	case "application/pdf":
		return FormatPDF, true
	}
	return "", false
}

// DetectFormat picks a format from the file extension, then the declared
// content type. Anything ambiguous is treated as delimited text.
func DetectFormat(filename, contentType string) Format {
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if f, ok := formatForContentType(mediaType); ok {
				return f
			}
		}
	}
	return FormatText
}

// ParseFormat accepts an explicit format name ("csv", "xlsx", "pdf", ...).
func ParseFormat(name string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text", "csv", "tsv", "txt":
		return FormatText, true
	case "spreadsheet", "excel", "xlsx", "xls":
		return FormatSpreadsheet, true
	case "pdf":
		return FormatPDF, true
	}
	return "", false
}

// AdapterFor returns the adapter for the given format, falling back to the
// text adapter for unknown values.
func AdapterFor(f Format) Adapter {
	switch f {
	case FormatSpreadsheet:
		return NewSpreadsheetAdapter()
	case FormatPDF:
		return NewPDFAdapter(nil)
	default:
		return NewTextAdapter()
	}
}
