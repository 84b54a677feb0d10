package domain

// KnowledgeReference is one ingested article, aggregated from its stored
// chunks.
type KnowledgeReference struct {
	PageID     int    `json:"page_id"`
	Title      string `json:"title,omitempty"`
	Topic      string `json:"topic,omitempty"`
	URL        string `json:"url,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}
