package domain

// WikiPage is the minimal page information carried through ingestion.
// Created by the fetcher, consumed once by the ingestor, never persisted as-is.
type WikiPage struct {
	PageID  int
	Title   string
	URL     string
	Content string
	Topic   string
}
