package models

import (
	"errors"
	"fmt"
)

type Provenance string

const (
	ProvenanceStructured   Provenance = "structured"
	ProvenanceUnstructured Provenance = "unstructured"
)

// ChunkEntry is the stored form of an embedded chunk: its text plus the
// metadata of the block that owns it.
type ChunkEntry struct {
	Text string `json:"text"`
	BlockMeta
}

// Entry is the metadata stored next to each vector. Exactly one of Record
// and Chunk is set, selected by Provenance.
type Entry struct {
	Provenance Provenance  `json:"provenance"`
	Record     *Property   `json:"record,omitempty"`
	Chunk      *ChunkEntry `json:"chunk,omitempty"`
}

func NewRecordEntry(p Property) Entry {
	return Entry{Provenance: ProvenanceStructured, Record: &p}
}

func NewChunkEntry(c Chunk) Entry {
	meta, _ := c.Owner()
	return Entry{
		Provenance: ProvenanceUnstructured,
		Chunk:      &ChunkEntry{Text: c.Text, BlockMeta: meta},
	}
}

// Check reports entries whose payload does not match their provenance.
// Such entries only come from hand-edited or foreign metadata files.
func (e Entry) Check() error {
	switch e.Provenance {
	case ProvenanceStructured:
		if e.Record == nil {
			return errors.New("structured entry has no record")
		}
	case ProvenanceUnstructured:
		if e.Chunk == nil {
			return errors.New("unstructured entry has no chunk")
		}
	default:
		return fmt.Errorf("unknown provenance %q", e.Provenance)
	}
	return nil
}

// QueryResult pairs an entry with its squared L2 distance to the query.
type QueryResult struct {
	Distance float32
	Position int
	Entry    Entry
}
