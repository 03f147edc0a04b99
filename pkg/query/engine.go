package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/records"
)

const (
	DefaultTopK       = 20
	DefaultSystemRole = "You are a helpful real estate assistant."

	NoInformationResponse = "I couldn't find any relevant information in the database for your query."
)

type EngineConfig struct {
	TopK       int
	SystemRole string
	Logger     *log.Logger
}

// Engine answers a query by dense retrieval followed by keyword filtering
// of the candidates, then hands the surviving evidence to the generator.
type Engine struct {
	config    EngineConfig
	embedder  types.Embedder
	index     types.Index
	generator types.Generator
}

// Evidence is the filtered context for one query. Unstructured lines come
// first, in distance order, followed by rendered records.
type Evidence struct {
	Unstructured []string
	Structured   []string
}

func (e Evidence) Lines() []string {
	lines := make([]string, 0, len(e.Unstructured)+len(e.Structured))
	lines = append(lines, e.Unstructured...)
	return append(lines, e.Structured...)
}

func (e Evidence) Empty() bool {
	return len(e.Unstructured) == 0 && len(e.Structured) == 0
}

func NewWithConfig(embedder types.Embedder, index types.Index, generator types.Generator, config EngineConfig) *Engine {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.SystemRole == "" {
		config.SystemRole = DefaultSystemRole
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &Engine{
		config:    config,
		embedder:  embedder,
		index:     index,
		generator: generator,
	}
}

// Retrieve embeds the query, searches the index and filters the results.
func (e *Engine) Retrieve(ctx context.Context, query string) (Evidence, error) {
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return Evidence{}, err
	}

	results, err := e.index.Search(ctx, vector, e.config.TopK)
	if err != nil {
		return Evidence{}, err
	}

	return e.filter(query, results), nil
}

// Answer runs the whole query path. Collaborator failures come back as a
// user-facing message; index validation failures are returned as errors.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	evidence, err := e.Retrieve(ctx, query)
	if err != nil {
		if errors.Is(err, types.ErrExternalService) {
			return fmt.Sprintf("Error embedding query: %v", err), nil
		}
		return "", types.WrapOp("answer", err)
	}

	if evidence.Empty() {
		return NoInformationResponse, nil
	}

	response, err := e.generator.Generate(ctx, e.config.SystemRole, Prompt(query, evidence.Lines()))
	if err != nil {
		return fmt.Sprintf("Error generating response: %v", err), nil
	}
	return response, nil
}

func (e *Engine) filter(query string, results []models.QueryResult) Evidence {
	tokens := Tokenize(query)

	var evidence Evidence
	var structured []models.Property

	for _, r := range results {
		if err := r.Entry.Check(); err != nil {
			e.config.Logger.Printf("query: skipping entry %d: %v", r.Position, err)
			continue
		}

		switch r.Entry.Provenance {
		case models.ProvenanceUnstructured:
			chunk := r.Entry.Chunk
			if !intersects(tokens, Tokenize(chunk.Text)) {
				continue
			}
			evidence.Unstructured = append(evidence.Unstructured, FormatChunk(*chunk))
		case models.ProvenanceStructured:
			structured = append(structured, *r.Entry.Record)
		}
	}

	for _, p := range structured {
		if !MatchRecord(tokens, p) {
			continue
		}
		text, err := records.Render(p)
		if err != nil {
			e.config.Logger.Printf("query: skipping record %q: %v", p.ID, err)
			continue
		}
		evidence.Structured = append(evidence.Structured, text)
	}

	return evidence
}

// Tokenize lower-cases s and returns its set of whitespace-delimited tokens.
func Tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func intersects(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for t := range a {
		if _, ok := b[t]; ok {
			return true
		}
	}
	return false
}

// MatchRecord reports whether any query token is a substring of the
// record's searchable fields.
func MatchRecord(tokens map[string]struct{}, p models.Property) bool {
	haystack := strings.ToLower(strings.Join([]string{
		p.Location,
		records.FormatNumber(p.BHK),
		records.FormatNumber(p.Price),
		strings.Join(p.Amenities, " "),
		strings.Join(p.Nearby, " "),
	}, " "))

	for t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// FormatChunk renders a chunk as an attributed evidence line.
func FormatChunk(c models.ChunkEntry) string {
	source := c.Source
	if source == "" {
		source = "PDF"
	}
	return fmt.Sprintf("From %s (Page %d, Section: %s, Subsection: %s):\n%s\n",
		source, c.Page, c.Section, c.Subsection, c.Text)
}

// Prompt assembles the generation prompt from the evidence and the query.
func Prompt(query string, evidence []string) string {
	return "You are a real estate assistant. Here is some context from our community guidelines:\n\n" +
		strings.Join(evidence, "\n") +
		"\n\nUser query: " + query +
		"\n\nPlease provide a clear and structured response based on the context. " +
		"If the query is about community guidelines, cite the relevant sections and subsections."
}
