package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// TextAdapter parses delimited text exports (CSV, TSV, semicolon files).
type TextAdapter struct{}

// NewTextAdapter creates a delimited-text adapter.
func NewTextAdapter() *TextAdapter {
	return &TextAdapter{}
}

// Parse decodes the bytes, treats the first non-empty record as the header
// and maps every later non-empty record to a canonical row.
func (a *TextAdapter) Parse(data []byte) ([]CanonicalRow, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, &FormatError{Format: FormatText, Err: err}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var (
		cols      columnMap
		hasHeader bool
		rows      []CanonicalRow
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && hasHeader {
				rows = append(rows, CanonicalRow{})
				continue
			}
			return nil, &FormatError{Format: FormatText, Err: fmt.Errorf("reading record: %w", err)}
		}
		if isBlank(record) {
			continue
		}
		if !hasHeader {
			cols = detectColumns(record)
			hasHeader = true
			continue
		}
		rows = append(rows, cols.rowFromCells(record))
	}
	return rows, nil
}

// decodeText honours a UTF-8/UTF-16 byte order mark. Input that is not valid
// UTF-8 keeps its valid sequences and drops the undecodable bytes, unless no
// multi-byte sequence decodes at all: that is a legacy export and is read as
// Windows-1252, which maps every byte.
func decodeText(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return "", fmt.Errorf("decodeText: %w", err)
	}
	if utf8.Valid(out) {
		return string(out), nil
	}
	if hasMultiByteRune(out) {
		return strings.ToValidUTF8(string(out), ""), nil
	}
	out, _, err = transform.Bytes(charmap.Windows1252.NewDecoder(), out)
	if err != nil {
		return "", fmt.Errorf("decodeText: windows-1252: %w", err)
	}
	return string(out), nil
}

// hasMultiByteRune reports whether b holds at least one valid UTF-8 sequence
// longer than one byte.
func hasMultiByteRune(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError && size > 1 {
			return true
		}
		b = b[size:]
	}
	return false
}

// sniffDelimiter counts candidate separators on the first non-empty line,
// ignoring quoted sections. Comma wins ties and empty input.
func sniffDelimiter(text string) rune {
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	counts := make(map[rune]int, len(delimiterCandidates))
	inQuotes := false
	for _, ch := range line {
		if ch == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[ch]++
		}
	}

	best := ','
	for _, d := range delimiterCandidates {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
