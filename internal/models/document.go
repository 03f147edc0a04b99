package models

import "strings"

// Document is a paginated source as emitted by an extraction layer
// (PDF content stream, HTML page, ...).
type Document struct {
	ID     string
	Source string // "PDF", "HTML"
	Pages  []Page
}

type Page struct {
	Number int // 1-based
	URL    string
	Blocks []Block
}

type Block struct {
	Lines []Line
}

type Line struct {
	Spans []Span
}

// Span is a run of text sharing one font.
type Span struct {
	Text string
	Font string
	Size float64
}

// Text joins spans with a space inside a line and lines with a space
// inside the block.
func (b Block) Text() string {
	lines := make([]string, 0, len(b.Lines))
	for _, line := range b.Lines {
		spans := make([]string, 0, len(line.Spans))
		for _, span := range line.Spans {
			spans = append(spans, span.Text)
		}
		lines = append(lines, strings.Join(spans, " "))
	}
	return strings.Join(lines, " ")
}

// Font returns the family and size of the first span of the first line,
// or zero values when the block has no spans.
func (b Block) Font() (string, float64) {
	if len(b.Lines) == 0 || len(b.Lines[0].Spans) == 0 {
		return "", 0
	}
	span := b.Lines[0].Spans[0]
	return span.Font, span.Size
}

// NewBlock builds a single-line, single-span block.
func NewBlock(text, font string, size float64) Block {
	return Block{Lines: []Line{{Spans: []Span{{Text: text, Font: font, Size: size}}}}}
}
