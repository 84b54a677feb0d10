package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// pointNamespace is the fixed UUIDv5 namespace for point ids. Frozen: changing
// it would break idempotent overwrites for all previously ingested content.
var pointNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

// PointID derives the deterministic vector-store id for a chunk. Re-ingesting
// unchanged content yields the same id and overwrites in place.
func PointID(pageID, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%d:%d", pageID, chunkIndex))).String()
}

// PointPayload is the metadata stored alongside each chunk vector.
type PointPayload struct {
	Source     string `json:"source"`
	Topic      string `json:"topic"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	ChunkIndex int    `json:"chunk_index"`
	WordCount  int    `json:"word_count"`
	PageID     int    `json:"page_id"`
	Content    string `json:"content"`
}

// Point is a stored (id, vector, payload) record in the vector store.
type Point struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload PointPayload `json:"payload"`
}

// RetrievedChunk is a single search hit. Read-only to callers.
type RetrievedChunk struct {
	ID      string
	Score   float64
	Payload PointPayload
	Vector  []float32 // populated only when requested
}
