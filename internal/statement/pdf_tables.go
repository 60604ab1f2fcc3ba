package statement

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// LayoutExtractor rebuilds tables from positioned text runs. Runs sharing a
// baseline form a line, horizontal gaps split a line into cells and cells are
// aligned to the columns of the header line.
type LayoutExtractor struct {
	// CellGap is the horizontal distance (in points) that starts a new cell.
	CellGap float64
	// SpaceGap is the distance between runs that is rendered as a space.
	SpaceGap float64
}

// NewLayoutExtractor returns an extractor tuned for typical A4 statements.
func NewLayoutExtractor() *LayoutExtractor {
	return &LayoutExtractor{CellGap: 10, SpaceGap: 1.5}
}

type layoutCell struct {
	x, end float64
	text   string
}

func (c layoutCell) center() float64 {
	return (c.x + c.end) / 2
}

// ExtractTables returns one table per page that has text.
func (e *LayoutExtractor) ExtractTables(data []byte) (tables [][][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			tables, err = nil, fmt.Errorf("ExtractTables: pdf reader crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("ExtractTables: open: %w", err)
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, errors.New("ExtractTables: document has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if table := e.tableFromTexts(page.Content().Text); len(table) > 0 {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

func (e *LayoutExtractor) tableFromTexts(texts []pdf.Text) [][]string {
	lines := e.groupLines(texts)
	if len(lines) == 0 {
		return nil
	}

	headerIdx := 0
	for i, line := range lines {
		if findColumn(cellTexts(line, normalizePDFHeader), pdfDateHeaders) >= 0 {
			headerIdx = i
			break
		}
	}
	header := lines[headerIdx]
	dateCol := findColumn(cellTexts(header, normalizePDFHeader), pdfDateHeaders)
	if dateCol < 0 {
		dateCol = 0
	}

	table := [][]string{cellTexts(header, nil)}
	for _, line := range lines[headerIdx+1:] {
		cells := alignToHeader(header, line)
		if strings.TrimSpace(cells[dateCol]) == "" && len(table) > 1 {
			prev := table[len(table)-1]
			for j, text := range cells {
				if text == "" {
					continue
				}
				if prev[j] == "" {
					prev[j] = text
				} else {
					prev[j] += "\n" + text
				}
			}
			continue
		}
		table = append(table, cells)
	}
	return table
}

// groupLines groups runs by rounded baseline, top of the page first, and
// splits each line into cells.
func (e *LayoutExtractor) groupLines(texts []pdf.Text) [][]layoutCell {
	byY := make(map[int][]pdf.Text)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		y := int(math.Round(t.Y))
		byY[y] = append(byY[y], t)
	}

	ys := make([]int, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	// PDF coordinates grow upwards.
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	lines := make([][]layoutCell, 0, len(ys))
	for _, y := range ys {
		runs := byY[y]
		sort.SliceStable(runs, func(a, b int) bool { return runs[a].X < runs[b].X })

		var cells []layoutCell
		for _, t := range runs {
			width := t.W
			if width <= 0 {
				width = t.FontSize * 0.5 * float64(utf8.RuneCountInString(t.S))
			}
			if len(cells) > 0 {
				cur := &cells[len(cells)-1]
				gap := t.X - cur.end
				if gap <= e.CellGap {
					if gap > e.SpaceGap && !strings.HasSuffix(cur.text, " ") {
						cur.text += " "
					}
					cur.text += t.S
					cur.end = math.Max(cur.end, t.X+width)
					continue
				}
			}
			cells = append(cells, layoutCell{x: t.X, end: t.X + width, text: t.S})
		}
		for i := range cells {
			cells[i].text = strings.TrimSpace(cells[i].text)
		}
		lines = append(lines, cells)
	}
	return lines
}

// alignToHeader places every cell of line in the header column whose center
// is closest to the cell's center.
func alignToHeader(header, line []layoutCell) []string {
	out := make([]string, len(header))
	for _, c := range line {
		best, bestDist := 0, math.Inf(1)
		for j, h := range header {
			if d := math.Abs(c.center() - h.center()); d < bestDist {
				best, bestDist = j, d
			}
		}
		if out[best] == "" {
			out[best] = c.text
		} else {
			out[best] += " " + c.text
		}
	}
	return out
}

func cellTexts(line []layoutCell, normalize func(string) string) []string {
	out := make([]string, len(line))
	for i, c := range line {
		if normalize != nil {
			out[i] = normalize(c.text)
		} else {
			out[i] = c.text
		}
	}
	return out
}
