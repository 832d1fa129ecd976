package statement

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
)

// Document is the text of a statement: one slice of lines per page, in
// reading order.
type Document struct {
	Pages [][]string
}

// Sample returns the lower-cased text of the first n pages, used for bank
// detection.
func (d Document) Sample(n int) string {
	var parts []string
	for i, page := range d.Pages {
		if i >= n {
			break
		}
		parts = append(parts, strings.Join(page, "\n"))
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Extractor turns an uploaded file into text lines.
type Extractor interface {
	Extract(data []byte) (Document, error)
}

// PDFExtractor reads text rows from a PDF content stream.
type PDFExtractor struct{}

// Extract returns the rows of every page. Glyph runs on the same row are
// joined with a space when there is a visible gap between them.
//
// The PDF reader panics on some malformed files; the panic is turned into
// an error.
func (PDFExtractor) Extract(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = Document{}
			err = fmt.Errorf("%w: malformed PDF: %v", apperrors.ErrFailedToParseStatement, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToParseStatement, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return Document{}, fmt.Errorf("%w: page %d: %v", apperrors.ErrFailedToParseStatement, i, err)
		}

		var lines []string
		for _, row := range rows {
			if line := joinRow(row.Content); line != "" {
				lines = append(lines, line)
			}
		}
		doc.Pages = append(doc.Pages, lines)
	}
	return doc, nil
}

func joinRow(texts pdf.TextHorizontal) string {
	items := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			items = append(items, t)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].X < items[j].X })

	var b strings.Builder
	for i, t := range items {
		if i > 0 {
			prev := items[i-1]
			gap := t.X - (prev.X + prev.W)
			if gap > math.Max(1, 0.15*t.FontSize) && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return strings.TrimSpace(b.String())
}

// TextExtractor treats the upload as plain text with form feeds between
// pages. It serves tests and the CLI for already-extracted statements.
type TextExtractor struct{}

// Extract splits data into pages and lines.
func (TextExtractor) Extract(data []byte) (Document, error) {
	var doc Document
	for _, page := range strings.Split(string(data), "\f") {
		doc.Pages = append(doc.Pages, strings.Split(strings.ReplaceAll(page, "\r\n", "\n"), "\n"))
	}
	return doc, nil
}
