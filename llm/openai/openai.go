package openai

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/flarexio/codechat/llm"
)

type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Temperature    float32
	Retry          llm.RetryPolicy
}

// NewClient builds the shared go-openai client; it is created once and
// handed to both the embedder and the chat model.
func NewClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrMissingAPIKey
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(config), nil
}

func NewEmbedder(client *openai.Client, cfg Config) llm.Embedder {
	model := cfg.EmbeddingModel
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	// Set dimension based on model
	dim := 1536
	if model == string(openai.LargeEmbedding3) {
		dim = 3072
	}

	return &embedder{
		client: client,
		model:  model,
		dim:    dim,
		retry:  cfg.Retry,
	}
}

type embedder struct {
	client *openai.Client
	model  string
	dim    int
	retry  llm.RetryPolicy
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) == 0 {
		return nil, llm.ErrEmptyText
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	}

	resp, err := llm.Retry(ctx, e.retry, "embed", func() (openai.EmbeddingResponse, error) {
		return e.client.CreateEmbeddings(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, llm.ErrNoEmbedding
	}

	v := make([]float32, len(resp.Data[0].Embedding))
	copy(v, resp.Data[0].Embedding)

	return llm.Normalize(v), nil
}

func (e *embedder) Dimension() int {
	return e.dim
}

func (e *embedder) ModelInfo() string {
	return "openai-" + e.model
}

func NewChatModel(client *openai.Client, cfg Config) llm.ChatModel {
	model := cfg.ChatModel
	if model == "" {
		model = openai.GPT4Turbo
	}

	return &chatModel{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		retry:       cfg.Retry,
	}
}

type chatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	retry       llm.RetryPolicy
}

func (m *chatModel) Stream(ctx context.Context, prompt string) (llm.TokenStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: m.temperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	// Only opening the stream is retried; a stream that fails midway has
	// already produced output.
	stream, err := llm.Retry(ctx, m.retry, "chat", func() (*openai.ChatCompletionStream, error) {
		return m.client.CreateChatCompletionStream(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	return &tokenStream{stream}, nil
}

type tokenStream struct {
	stream *openai.ChatCompletionStream
}

func (s *tokenStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}

			return "", &llm.ServiceError{
				Op:        "chat",
				Transient: llm.IsTransient(err),
				Err:       err,
			}
		}

		if len(resp.Choices) == 0 {
			continue
		}

		content := resp.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		return content, nil
	}
}

func (s *tokenStream) Close() error {
	return s.stream.Close()
}
