package codechat

import (
	"context"
	"hash/fnv"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/flarexio/codechat/llm"
)

const bagDimension = 128

// bagEmbedder hashes word counts into a fixed-width unit vector and counts
// how often it was called.
type bagEmbedder struct {
	calls atomic.Int64
}

func (e *bagEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)

	v := make([]float32, bagDimension+1)
	v[bagDimension] = 0.01

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, word := range words {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%bagDimension]++
	}

	return llm.Normalize(v), nil
}

func (e *bagEmbedder) Calls() int {
	return int(e.calls.Load())
}

// fakeChat echoes canned tokens and remembers the prompts it received.
type fakeChat struct {
	tokens  []string
	err     error
	prompts []string
	sync.Mutex
}

func (c *fakeChat) Stream(ctx context.Context, prompt string) (llm.TokenStream, error) {
	c.Lock()
	defer c.Unlock()

	c.prompts = append(c.prompts, prompt)

	if c.err != nil {
		return nil, c.err
	}

	tokens := make([]string, len(c.tokens))
	copy(tokens, c.tokens)

	return &fakeTokens{tokens: tokens}, nil
}

func (c *fakeChat) LastPrompt() string {
	c.Lock()
	defer c.Unlock()

	if len(c.prompts) == 0 {
		return ""
	}

	return c.prompts[len(c.prompts)-1]
}

type fakeTokens struct {
	tokens []string
	closed bool
}

func (s *fakeTokens) Recv() (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}

	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	return t, nil
}

func (s *fakeTokens) Close() error {
	s.closed = true
	return nil
}
