package models

// SectionLineage is the header state a chunk was emitted under.
type SectionLineage struct {
	Section    string `json:"section,omitempty"`
	Subsection string `json:"subsection,omitempty"`
}

// BlockMeta describes the block that was active when a chunk was flushed.
type BlockMeta struct {
	Source       string  `json:"source,omitempty"`
	Page         int     `json:"page"`
	Section      string  `json:"section,omitempty"`
	Subsection   string  `json:"subsection,omitempty"`
	IsHeader     bool    `json:"is_header"`
	IsSubsection bool    `json:"is_subsection"`
	Font         string  `json:"font"`
	FontSize     float64 `json:"font_size"`
}

// Chunk is a bounded span of document text before it is embedded.
// PageMetadata always holds exactly one element: the last contributing block.
type Chunk struct {
	Text         string         `json:"text"`
	Lineage      SectionLineage `json:"lineage"`
	PageMetadata []BlockMeta    `json:"metadata"`
}

// Owner returns the block metadata that attributes this chunk.
func (c Chunk) Owner() (BlockMeta, bool) {
	if len(c.PageMetadata) == 0 {
		return BlockMeta{}, false
	}
	return c.PageMetadata[0], true
}
