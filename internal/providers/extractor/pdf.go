package extractor

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (e *PDFExtractor) ExtractQuestions(ctx context.Context, doc io.ReaderAt, size int64) ([]string, error) {
	r, err := pdf.NewReader(doc, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		lines, err := pageLines(p)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		for _, l := range lines {
			text.WriteString(l)
			text.WriteString("\n")
		}
	}
	return FilterQuestions(text.String()), nil
}

// pageLines rebuilds the page's visual lines from positioned glyphs. The
// library's plain-text mode drops line breaks between Td-positioned runs,
// which would glue consecutive questions into one candidate.
func pageLines(p pdf.Page) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	return glyphLines(p.Content().Text), nil
}

// glyphLines joins glyphs in content-stream order, starting a new line
// whenever the baseline moves. A horizontal gap wider than a fraction of
// the font size becomes a space.
func glyphLines(glyphs []pdf.Text) []string {
	var (
		lines []string
		cur   strings.Builder
		prev  *pdf.Text
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
		prev = nil
	}

	for i := range glyphs {
		g := &glyphs[i]
		if g.S == "\n" || g.S == "\r" {
			flush()
			continue
		}
		if prev != nil {
			tol := math.Max(prev.FontSize, g.FontSize) / 2
			if tol <= 0 {
				tol = 1
			}
			if math.Abs(g.Y-prev.Y) > tol {
				flush()
			} else if gap := g.X - (prev.X + prev.W); gap > tol/2 && prev.S != " " && g.S != " " {
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.S)
		prev = g
	}
	flush()
	return lines
}
