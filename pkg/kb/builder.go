package kb

import (
	"context"
	"fmt"
	"log"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/processor"
	"github.com/xhad/hybridrag/pkg/records"
	"golang.org/x/sync/errgroup"
)

// Saver is implemented by indexes that persist to a file on demand.
type Saver interface {
	Save(path string) error
}

type BuilderConfig struct {
	Concurrency int    // parallel embedding calls, default 4
	IndexPath   string // where a Saver index is written after Add
	Logger      *log.Logger
	OnProgress  func(done, total int)
}

// Builder embeds structured records and document chunks and appends them
// to an index in one batch.
type Builder struct {
	config   BuilderConfig
	embedder types.Embedder
	index    types.Index
}

type Stats struct {
	Records int
	Skipped int
	Chunks  int
}

type item struct {
	text  string
	entry models.Entry
}

func NewWithConfig(embedder types.Embedder, index types.Index, config BuilderConfig) *Builder {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &Builder{config: config, embedder: embedder, index: index}
}

// Build embeds every record and chunk, then adds them with structured
// entries first. Any embedding failure aborts the build before the index
// is touched. Records that cannot be rendered are logged and skipped.
func (b *Builder) Build(ctx context.Context, properties []models.Property, chunks []models.Chunk) (Stats, error) {
	var stats Stats
	items := make([]item, 0, len(properties)+len(chunks))

	for _, p := range properties {
		text, err := records.Render(p)
		if err != nil {
			b.config.Logger.Printf("skipping record: %v", err)
			stats.Skipped++
			continue
		}
		items = append(items, item{text: text, entry: models.NewRecordEntry(p)})
		stats.Records++
	}
	for _, c := range chunks {
		items = append(items, item{text: c.Text, entry: models.NewChunkEntry(c)})
		stats.Chunks++
	}

	if len(items) == 0 {
		return stats, nil
	}

	vectors, err := b.embedAll(ctx, items)
	if err != nil {
		return stats, types.WrapOp("build", err)
	}

	entries := make([]models.Entry, len(items))
	for i, it := range items {
		entries[i] = it.entry
	}

	if err := b.index.Add(ctx, vectors, entries); err != nil {
		return stats, types.WrapOp("build", err)
	}

	if saver, ok := b.index.(Saver); ok && b.config.IndexPath != "" {
		if err := saver.Save(b.config.IndexPath); err != nil {
			return stats, types.WrapOp("build", fmt.Errorf("save index: %w", err))
		}
	}

	b.config.Logger.Printf("knowledge base built: %d records (%d skipped), %d chunks, %d entries total",
		stats.Records, stats.Skipped, stats.Chunks, b.index.Len())
	return stats, nil
}

func (b *Builder) embedAll(ctx context.Context, items []item) ([][]float32, error) {
	vectors := make([][]float32, len(items))
	progress := make(chan struct{}, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Concurrency)

	for i := range items {
		i := i
		g.Go(func() error {
			vector, err := b.embedder.Embed(ctx, items[i].text)
			if err != nil {
				return fmt.Errorf("embed item %d: %w", i, err)
			}
			vectors[i] = vector
			progress <- struct{}{}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for range progress {
			n++
			if b.config.OnProgress != nil {
				b.config.OnProgress(n, len(items))
			}
		}
	}()

	err := g.Wait()
	close(progress)
	<-done
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// Chunks reads each source in order and chunks the resulting documents.
func Chunks(ctx context.Context, proc *processor.Processor, sources ...types.DocumentSource) ([]models.Chunk, error) {
	docs := make([]models.Document, 0, len(sources))
	for _, src := range sources {
		doc, err := src.Document(ctx)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return proc.Process(docs), nil
}
