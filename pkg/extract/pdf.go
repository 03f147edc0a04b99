package extract

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xhad/hybridrag/internal/models"
)

// PDF reads the file at path into a paginated document with span-level
// font attributes.
func PDF(path string) (models.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	return pdfDocument(r, filepath.Base(path))
}

// PDFFile is a PDF on disk used as a document source.
type PDFFile string

func (f PDFFile) Document(ctx context.Context) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return models.Document{}, err
	}
	return PDF(string(f))
}

// PDFFromReader is PDF for an already open source, e.g. an upload.
func PDFFromReader(ra io.ReaderAt, size int64, id string) (models.Document, error) {
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return models.Document{}, fmt.Errorf("read pdf: %w", err)
	}
	return pdfDocument(r, id)
}

func pdfDocument(r *pdf.Reader, id string) (models.Document, error) {
	doc := models.Document{ID: id, Source: "PDF"}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		doc.Pages = append(doc.Pages, models.Page{
			Number: i,
			Blocks: groupBlocks(p.Content().Text),
		})
	}

	return doc, nil
}

// groupBlocks rebuilds spans, lines and blocks from positioned text runs
// in content-stream order. Runs on the same baseline with the same font
// merge into one span; a baseline change starts a new line; a large
// vertical gap or a font size change starts a new block.
func groupBlocks(texts []pdf.Text) []models.Block {
	var (
		blocks  []models.Block
		block   models.Block
		line    models.Line
		span    models.Span
		spanBuf strings.Builder
		started bool
		prev    pdf.Text
	)

	flushSpan := func() {
		text := strings.TrimSpace(spanBuf.String())
		spanBuf.Reset()
		if text == "" {
			return
		}
		span.Text = text
		line.Spans = append(line.Spans, span)
	}
	flushLine := func() {
		flushSpan()
		if len(line.Spans) > 0 {
			block.Lines = append(block.Lines, line)
		}
		line = models.Line{}
	}
	flushBlock := func() {
		flushLine()
		if len(block.Lines) > 0 {
			blocks = append(blocks, block)
		}
		block = models.Block{}
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if !started {
			started = true
			span = models.Span{Font: t.Font, Size: t.FontSize}
			spanBuf.WriteString(t.S)
			prev = t
			continue
		}

		height := math.Max(prev.FontSize, 1)
		sameLine := math.Abs(t.Y-prev.Y) < height*0.5

		switch {
		case !sameLine:
			gap := prev.Y - t.Y
			if gap < 0 || gap > height*1.8 || math.Abs(t.FontSize-prev.FontSize) > 0.5 {
				flushBlock()
			} else {
				flushLine()
			}
			span = models.Span{Font: t.Font, Size: t.FontSize}
		case t.Font != span.Font || t.FontSize != span.Size:
			flushSpan()
			span = models.Span{Font: t.Font, Size: t.FontSize}
		case t.X-(prev.X+prev.W) > height*0.15:
			spanBuf.WriteByte(' ')
		}

		spanBuf.WriteString(t.S)
		prev = t
	}
	flushBlock()

	return blocks
}
