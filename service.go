package codechat

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/flarexio/codechat/llm"
	"github.com/flarexio/codechat/vector"
)

// Service answers questions about an indexed codebase.
type Service interface {

	// Close releases the service; the index itself is owned by the caller.
	Close() error

	// Retrieve returns the chunks most similar to query, best first.
	Retrieve(ctx context.Context, query string, k ...int) ([]Chunk, error)

	// Ask retrieves context for question and streams the generated answer.
	Ask(ctx context.Context, question string, k ...int) (Stream, error)
}

type ServiceMiddleware func(Service) Service

// NewService wires the pipeline around an already opened, read-only collection.
func NewService(cfg Config, collection vector.Collection, chat llm.ChatModel) (Service, error) {
	if collection == nil {
		return nil, ErrIndexNotReady
	}

	log := zap.L().With(
		zap.String("service", "codechat"),
	)

	k := cfg.Retrieval.K
	if k <= 0 {
		k = DefaultConfig().Retrieval.K
	}

	return &service{
		collection: collection,
		composer:   NewComposer(chat, cfg.Retrieval.Template),
		k:          k,
		log:        log,
	}, nil
}

type service struct {
	// Vector collection (thread-safe by itself, never written after open)
	collection vector.Collection
	composer   *Composer
	k          int
	closed     atomic.Bool

	log *zap.Logger
}

func (svc *service) Close() error {
	svc.closed.Store(true)
	return nil
}

func (svc *service) Retrieve(ctx context.Context, query string, k ...int) ([]Chunk, error) {
	if svc.closed.Load() {
		return nil, ErrIndexNotReady
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	n := svc.k
	if len(k) > 0 {
		n = k[0]
	}

	if n <= 0 {
		return []Chunk{}, nil
	}

	docs, err := svc.collection.Query(ctx, query, n)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(docs))
	for i, doc := range docs {
		chunk, err := DocumentToChunk(doc)
		if err != nil {
			return nil, err
		}

		chunks[i] = chunk
	}

	return chunks, nil
}

func (svc *service) Ask(ctx context.Context, question string, k ...int) (Stream, error) {
	chunks, err := svc.Retrieve(ctx, question, k...)
	if err != nil {
		return nil, err
	}

	return svc.composer.Compose(ctx, chunks, strings.TrimSpace(question))
}
