package llm

import (
	"context"
	"errors"
	"math"
)

var (
	ErrEmptyText      = errors.New("cannot embed empty text")
	ErrNoEmbedding    = errors.New("no embedding returned")
	ErrMissingAPIKey  = errors.New("api key not set")
	ErrUnknownBackend = errors.New("unknown model backend")
)

// Embedder maps text to a fixed-width vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelInfo() string
}

// ChatModel turns a prompt into a stream of generated text.
// Every call issues a new generation request.
type ChatModel interface {
	Stream(ctx context.Context, prompt string) (TokenStream, error)
}

// TokenStream yields generated text until io.EOF.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Normalize scales v to unit length in place.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	if sum == 0 {
		return v
	}

	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}

	return v
}
