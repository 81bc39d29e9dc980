package domain

// DocumentMetadata ties a retrievable text back to the harmonized row it was
// rendered from.
type DocumentMetadata struct {
	Dataset string `json:"dataset"`
	State   string `json:"state,omitempty"`
	Year    int    `json:"year,omitempty"`
	RowRef  string `json:"row_ref,omitempty"`
}

// Document is an immutable unit of retrievable text. Created at ingestion,
// never mutated, removed only by publishing a fresh index generation.
type Document struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Embedding []float32        `json:"-"`
	Metadata  DocumentMetadata `json:"metadata"`
}

// ScoredDocument pairs a document with its cosine similarity to a query
// embedding. Scores are in [0,1].
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}
