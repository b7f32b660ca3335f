package domain

import (
	"time"
	"unicode/utf8"
)

// VectorRecord is an embedded chunk ready for storage. Ids are assigned by
// the store; records are immutable once written.
type VectorRecord struct {
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Payload is the metadata stored alongside a vector.
type Payload struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// RetrievedContext is a chunk returned by a similarity search, ranked by
// cosine similarity (higher is more similar).
type RetrievedContext struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Citation is the user-facing projection of a retrieved chunk.
type Citation struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// CitationContentLimit bounds the content echoed back in a citation,
// counted in runes so truncation never splits a multi-byte character.
const CitationContentLimit = 200

// ToCitation truncates the chunk content to the citation display bound.
func (r RetrievedContext) ToCitation() Citation {
	content := r.Content
	if utf8.RuneCountInString(content) > CitationContentLimit {
		runes := []rune(content)
		content = string(runes[:CitationContentLimit])
	}
	return Citation{
		Source:  r.Source,
		Content: content,
		Score:   r.Score,
	}
}

// KBDocument is the ingestion registry entry for one ingested document.
// The document body itself is not persisted, only its chunks in the vector
// store.
type KBDocument struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	ChunkCount int       `json:"chunk_count"`
	Checksum   string    `json:"checksum"`
	IngestedAt time.Time `json:"ingested_at"`
}
