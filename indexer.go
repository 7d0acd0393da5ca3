package codechat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/flarexio/codechat/vector"
)

// Indexer builds, saves and loads the vector index of a source tree.
type Indexer struct {
	db   vector.VectorDB
	name string
	log  *zap.Logger
}

func NewIndexer(db vector.VectorDB, collection string) *Indexer {
	log := zap.L().With(
		zap.String("service", "indexer"),
		zap.String("collection", collection),
	)

	return &Indexer{
		db:   db,
		name: collection,
		log:  log,
	}
}

// Build embeds every chunk and adds it to the collection.
func (ix *Indexer) Build(ctx context.Context, chunks iter.Seq2[Chunk, error]) (vector.Collection, error) {
	log := ix.log.With(
		zap.String("action", "build"),
	)

	var (
		docs = make([]vector.Document, 0)
		seen = make(map[string]struct{})
	)

	for chunk, err := range chunks {
		if err != nil {
			return nil, err
		}

		if _, ok := seen[chunk.ID]; ok {
			continue
		}

		seen[chunk.ID] = struct{}{}
		docs = append(docs, ChunkToDocument(chunk))
	}

	if len(docs) == 0 {
		return nil, ErrNoChunks
	}

	collection, err := ix.db.Collection(ix.name)
	if err != nil {
		return nil, err
	}

	log.Info("embedding chunks", zap.Int("count", len(docs)))

	if err := collection.AddDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("indexing chunks: %w", err)
	}

	log.Info("index built", zap.Int("count", collection.Count()))
	return collection, nil
}

// Save writes the whole index to a single file at location.
func (ix *Indexer) Save(location string) error {
	if dir := filepath.Dir(location); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if err := ix.db.Export(location); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	ix.log.Info("index saved",
		zap.String("action", "save"),
		zap.String("location", location),
	)

	return nil
}

func (ix *Indexer) Load(location string) (vector.Collection, error) {
	if err := ix.db.Import(location); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedIndex, err)
	}

	collection, err := ix.db.Collection(ix.name)
	if err != nil {
		return nil, err
	}

	if collection.Count() == 0 {
		return nil, fmt.Errorf("%w: collection %q is empty", ErrMalformedIndex, ix.name)
	}

	ix.log.Info("index loaded",
		zap.String("action", "load"),
		zap.String("location", location),
		zap.Int("count", collection.Count()),
	)

	return collection, nil
}

// Open loads the index at location when it exists, otherwise builds it from
// source and saves it there. An empty location builds an in-memory index.
// The returned bool reports whether a build happened.
func (ix *Indexer) Open(ctx context.Context, location string, source iter.Seq2[Chunk, error]) (vector.Collection, bool, error) {
	if location != "" {
		_, err := os.Stat(location)
		if err == nil {
			collection, err := ix.Load(location)
			return collection, false, err
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, err
		}
	}

	collection, err := ix.Build(ctx, source)
	if err != nil {
		return nil, true, err
	}

	if location != "" {
		if err := ix.Save(location); err != nil {
			return nil, true, err
		}
	}

	return collection, true, nil
}
