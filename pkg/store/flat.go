package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
)

type FlatIndexConfig struct {
	Dimension    int
	MetadataPath string // rewritten after every successful Add; empty disables
	Logger       *log.Logger
}

// FlatIndex is an append-only exhaustive L2 index. Position in the index is
// the entry identifier and never changes once assigned.
//
// Add holds the write lock for the append and the metadata flush only;
// Search runs under the read lock so readers proceed in parallel.
type FlatIndex struct {
	config FlatIndexConfig

	mu      sync.RWMutex
	data    []float32 // len(data) == len(entries) * Dimension unless desync
	count   int
	entries []models.Entry
	desync  bool
}

var _ types.Index = (*FlatIndex)(nil)

func NewFlatIndex(config FlatIndexConfig) (*FlatIndex, error) {
	if config.Dimension == 0 {
		config.Dimension = 1536 // text-embedding-3-small
	}
	if config.Dimension < 0 {
		return nil, fmt.Errorf("invalid dimension: %d", config.Dimension)
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &FlatIndex{config: config}, nil
}

func (s *FlatIndex) Dimension() int {
	return s.config.Dimension
}

// Len returns the number of vectors held.
func (s *FlatIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Desynced reports whether the loaded metadata failed to line up with the
// loaded vectors. A desynced index refuses Add and Search until rebuilt.
func (s *FlatIndex) Desynced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.desync
}

// Entry returns the metadata stored at pos.
func (s *FlatIndex) Entry(pos int) (models.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.desync || pos < 0 || pos >= len(s.entries) {
		return models.Entry{}, false
	}
	return s.entries[pos], true
}

// Add appends vectors and their metadata in order. The batch is validated
// as a whole before anything is appended.
func (s *FlatIndex) Add(_ context.Context, vectors [][]float32, entries []models.Entry) error {
	if len(vectors) != len(entries) {
		return types.WrapOp("add", fmt.Errorf("%w: %d vectors, %d metadata entries",
			types.ErrDimensionMismatch, len(vectors), len(entries)))
	}
	for i, v := range vectors {
		if len(v) != s.config.Dimension {
			return types.WrapOp("add", fmt.Errorf("%w: vector %d has length %d, want %d",
				types.ErrDimensionMismatch, i, len(v), s.config.Dimension))
		}
	}
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.desync {
		return types.WrapOp("add", types.ErrMetadataDesync)
	}

	for _, v := range vectors {
		s.data = append(s.data, v...)
	}
	s.entries = append(s.entries, entries...)
	s.count += len(vectors)

	if s.config.MetadataPath == "" {
		return nil
	}
	if err := writeMetadata(s.config.MetadataPath, s.entries); err != nil {
		// the append stands; the on-disk copy catches up on the next Add or Save
		s.config.Logger.Printf("store: failed to persist metadata after add: %v", err)
		return types.WrapOp("add", fmt.Errorf("persist metadata: %w", err))
	}
	return nil
}

// Search returns the min(k, N) entries closest to query by squared L2
// distance, ascending, ties going to the lower position.
func (s *FlatIndex) Search(_ context.Context, query []float32, k int) ([]models.QueryResult, error) {
	if k < 1 {
		return nil, types.WrapOp("search", fmt.Errorf("k must be positive, got %d", k))
	}
	if len(query) != s.config.Dimension {
		return nil, types.WrapOp("search", fmt.Errorf("%w: query has length %d, want %d",
			types.ErrDimensionMismatch, len(query), s.config.Dimension))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.desync {
		return nil, types.WrapOp("search", types.ErrMetadataDesync)
	}

	dim := s.config.Dimension
	results := make([]models.QueryResult, s.count)
	for i := 0; i < s.count; i++ {
		results[i] = models.QueryResult{
			Distance: squaredL2(query, s.data[i*dim:(i+1)*dim]),
			Position: i,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k < len(results) {
		results = results[:k]
	}
	for i := range results {
		results[i].Entry = s.entries[results[i].Position]
	}
	return results, nil
}

// Save writes the vector file at path and the metadata file at the
// configured metadata path.
func (s *FlatIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.desync {
		return types.WrapOp("save", types.ErrMetadataDesync)
	}
	if err := writeVectors(path, s.config.Dimension, s.count, s.data); err != nil {
		return types.WrapOp("save", err)
	}
	if s.config.MetadataPath == "" {
		return nil
	}
	if err := writeMetadata(s.config.MetadataPath, s.entries); err != nil {
		return types.WrapOp("save", err)
	}
	return nil
}

// Load replaces the index contents with the vector file at path and the
// configured metadata file. A missing or unreadable metadata file resets
// metadata to empty; if the counts then disagree the index is marked
// desynced instead of failing, so the caller can still inspect it.
func (s *FlatIndex) Load(path string) error {
	dim, count, data, err := readVectors(path)
	if err != nil {
		return types.WrapOp("load", err)
	}
	if dim != s.config.Dimension {
		return types.WrapOp("load", fmt.Errorf("%w: index file has dimension %d, want %d",
			types.ErrDimensionMismatch, dim, s.config.Dimension))
	}

	var entries []models.Entry
	if s.config.MetadataPath != "" {
		entries, err = readMetadata(s.config.MetadataPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				s.config.Logger.Printf("store: metadata file %s not found, starting with empty metadata", s.config.MetadataPath)
			} else {
				s.config.Logger.Printf("store: metadata file %s unreadable, starting with empty metadata: %v", s.config.MetadataPath, err)
			}
			entries = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data
	s.count = count
	s.entries = entries
	s.desync = len(entries) != count
	if s.desync {
		s.config.Logger.Printf("store: loaded %d vectors but %d metadata entries; index must be rebuilt", count, len(entries))
	}
	return nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
