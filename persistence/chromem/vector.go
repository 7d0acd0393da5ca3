package chromem

import (
	"context"
	"errors"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/codechat/vector"
)

const defaultConcurrency = 4

func NewChromemVectorDB(cfg vector.Config, embed vector.EmbeddingFunc) (vector.VectorDB, error) {
	if embed == nil {
		return nil, errors.New("embedding function not set")
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	return &chromemVectorDB{
		db:          chromem.NewDB(),
		embed:       chromem.EmbeddingFunc(embed),
		compress:    cfg.Compress,
		concurrency: concurrency,
	}, nil
}

// NewOllamaEmbeddingFunc uses chromem's Ollama client; its vectors come back normalized.
func NewOllamaEmbeddingFunc(model string, baseURL string) vector.EmbeddingFunc {
	return vector.EmbeddingFunc(chromem.NewEmbeddingFuncOllama(model, baseURL))
}

type chromemVectorDB struct {
	db          *chromem.DB
	embed       chromem.EmbeddingFunc
	compress    bool
	concurrency int
}

func (vector *chromemVectorDB) Collection(name string) (vector.Collection, error) {
	c, err := vector.db.GetOrCreateCollection(name, nil, vector.embed)
	if err != nil {
		return nil, err
	}

	return &collection{c, vector.concurrency}, nil
}

func (vector *chromemVectorDB) Export(path string) error {
	return vector.db.ExportToFile(path, vector.compress, "")
}

func (vector *chromemVectorDB) Import(path string) error {
	return vector.db.ImportFromFile(path, "")
}

type collection struct {
	collection  *chromem.Collection
	concurrency int
}

func (c *collection) AddDocuments(ctx context.Context, docs []vector.Document) error {
	documents := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		documents[i] = chromem.Document{
			ID:        doc.ID,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
			Content:   doc.Content,
		}
	}

	return c.collection.AddDocuments(ctx, documents, c.concurrency)
}

func (c *collection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	document, err := c.collection.GetByID(ctx, id)
	if err != nil {
		return vector.Document{}, err
	}

	return vector.Document{
		ID:        document.ID,
		Metadata:  document.Metadata,
		Embedding: document.Embedding,
		Content:   document.Content,
	}, nil
}

func (c *collection) Query(ctx context.Context, query string, k int) ([]vector.Document, error) {
	if k > c.collection.Count() {
		k = c.collection.Count()
	}

	if k <= 0 {
		return []vector.Document{}, nil
	}

	results, err := c.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, err
	}

	docs := make([]vector.Document, len(results))
	for i, result := range results {
		docs[i] = vector.Document{
			ID:         result.ID,
			Metadata:   result.Metadata,
			Embedding:  result.Embedding,
			Content:    result.Content,
			Similarity: result.Similarity,
		}
	}

	return docs, nil
}

func (c *collection) Count() int {
	return c.collection.Count()
}
