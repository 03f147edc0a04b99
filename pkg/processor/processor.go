package processor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xhad/hybridrag/internal/models"
)

type ProcessorConfig struct {
	ChunkSize        int     // maximum characters per chunk
	HeaderFontSize   float64 // blocks strictly larger than this may be headers
	SubsectionMarker string
}

// Processor splits paginated documents into size-bounded chunks while
// tracking the section and subsection they fall under.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.HeaderFontSize == 0 {
		config.HeaderFontSize = 12
	}
	if config.SubsectionMarker == "" {
		config.SubsectionMarker = "✅"
	}

	return Processor{
		config: config,
	}
}

// headerState is the sticky section lineage carried across blocks and pages.
type headerState struct {
	section    string
	subsection string
}

// Process chunks every document in order.
func (p *Processor) Process(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, p.Chunk(doc)...)
	}
	return chunks
}

// Chunk walks the document page by page, block by block. Blocks are never
// split: a block larger than ChunkSize becomes a chunk of its own. Buffers
// are flushed at every page end, while section state carries over.
//
// A chunk's metadata is that of the block being processed when it was
// flushed. On overflow that is the block that did not fit, so a chunk
// straddling a header is attributed to the new header.
func (p *Processor) Chunk(doc models.Document) []models.Chunk {
	var (
		chunks  []models.Chunk
		headers headerState
	)

	source := doc.Source
	if source == "" {
		source = "PDF"
	}

	for i, page := range doc.Pages {
		number := page.Number
		if number == 0 {
			number = i + 1
		}

		var (
			buf  strings.Builder
			size int
			meta models.BlockMeta
		)

		flush := func() {
			if text := strings.TrimSpace(buf.String()); text != "" {
				chunks = append(chunks, newChunk(text, meta))
			}
			buf.Reset()
			size = 0
		}

		for _, block := range page.Blocks {
			text := block.Text()
			if strings.TrimSpace(text) == "" {
				continue
			}

			meta = p.observe(block, text, &headers)
			meta.Source = source
			meta.Page = number

			n := utf8.RuneCountInString(text)
			if size+n > p.config.ChunkSize {
				flush()
			}
			buf.WriteString(text)
			buf.WriteByte(' ')
			size += n + 1
		}

		flush()
	}

	return chunks
}

// observe applies header detection for one block and returns its metadata.
func (p *Processor) observe(block models.Block, text string, headers *headerState) models.BlockMeta {
	font, fontSize := block.Font()

	var isSection, isSubsection bool
	if fontSize > p.config.HeaderFontSize {
		switch {
		case strings.IndexFunc(text, unicode.IsDigit) >= 0:
			isSection = true
			headers.section = strings.TrimSpace(text)
			headers.subsection = ""
		case strings.Contains(text, p.config.SubsectionMarker):
			isSubsection = true
			headers.subsection = strings.TrimSpace(text)
		}
	}

	return models.BlockMeta{
		Section:      headers.section,
		Subsection:   headers.subsection,
		IsHeader:     isSection,
		IsSubsection: isSubsection,
		Font:         font,
		FontSize:     fontSize,
	}
}

func newChunk(text string, meta models.BlockMeta) models.Chunk {
	return models.Chunk{
		Text: text,
		Lineage: models.SectionLineage{
			Section:    meta.Section,
			Subsection: meta.Subsection,
		},
		PageMetadata: []models.BlockMeta{meta},
	}
}
