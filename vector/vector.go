package vector

import "context"

type Config struct {
	Path        string `yaml:"path"`
	Collection  string `yaml:"collection"`
	Compress    bool   `yaml:"compress"`
	Concurrency int    `yaml:"concurrency"`
}

// VectorDB holds named collections and moves them to and from a single file.
type VectorDB interface {
	Collection(name string) (Collection, error)
	Export(path string) error
	Import(path string) error
}

type Collection interface {
	AddDocuments(ctx context.Context, docs []Document) error
	FindDocument(ctx context.Context, id string) (Document, error)
	Query(ctx context.Context, query string, k int) ([]Document, error)
	Count() int
}

type Document struct {
	ID         string            `json:"id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Similarity float32           `json:"similarity,omitempty"`
}

// EmbeddingFunc maps text to a normalized vector.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)
