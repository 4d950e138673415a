// Package retrieval defines the retrieval capability and the context filter
// that ranks and prunes retrieved passages before prompting.
package retrieval

import "context"

// RetrievedPassage is one knowledge-base passage returned by a Retriever.
type RetrievedPassage struct {
	ID      string  `json:"id,omitempty"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Document is a knowledge-base document for ingestion.
type Document struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Retriever is the pluggable retrieval capability. Search may fail; the
// pipeline catches the error and degrades.
type Retriever interface {
	// Search returns up to k passages relevant to the query.
	Search(ctx context.Context, query string, k int) ([]RetrievedPassage, error)

	// AddDocuments upserts documents into the backing store.
	AddDocuments(ctx context.Context, docs []Document) error
}
