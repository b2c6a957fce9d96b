package domain

import "fmt"

// AccessLabel is the persisted access level of a chunk.
type AccessLabel string

const (
	// AccessPublic marks a chunk visible to any caller.
	AccessPublic AccessLabel = "public"
	// AccessAdmin marks a chunk visible to privileged callers only.
	AccessAdmin AccessLabel = "admin"
)

// Valid reports whether the label is one of the closed set.
func (l AccessLabel) Valid() bool {
	return l == AccessPublic || l == AccessAdmin
}

// Chunk is a bounded segment of document text with its vector and access label.
type Chunk struct {
	ChunkID       string
	Source        string
	Text          string
	Vector        []float32
	Access        AccessLabel
	Tags          []string
	SentinelLabel string
	SentinelScore float64
}

// ChunkID builds the corpus-unique chunk identifier from a document ID and ordinal.
func ChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, ordinal)
}

// Assessment is the per-chunk security verdict produced at ingestion time.
type Assessment struct {
	Access        AccessLabel
	Tags          []string
	SentinelLabel string
	SentinelScore float64
}
