package codechat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/codechat/vector"
)

func TestConfigYAMLUnmarshal(t *testing.T) {
	assert := assert.New(t)

	input := `source:
  root: ./src
  extensions:
    - .java
    - kt
  chunk:
    size: 1000
    overlap: 100
model:
  embedding: ollama
  embedModel: nomic-embed-text
retrieval:
  k: 6
retry:
  maxRetries: 5
  initialInterval: 250ms
  maxInterval: 5s`

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		assert.Fail(err.Error())
		return
	}

	cfg.ApplyDefaults()

	assert.Equal("./src", cfg.Source.Root)
	assert.Equal([]string{".java", "kt"}, cfg.Source.Extensions)
	assert.Equal(1000, cfg.Source.Chunk.Size)
	assert.Equal(100, cfg.Source.Chunk.Overlap)
	assert.Equal(BackendOllama, cfg.Model.Embedding)
	assert.Equal("nomic-embed-text", cfg.Model.EmbedModel)
	assert.Equal("gpt-4-turbo", cfg.Model.ChatModel, "unset fields keep their defaults")
	assert.Equal("codebase", cfg.Vector.Collection)
	assert.Equal(6, cfg.Retrieval.K)

	policy := cfg.Retry.Policy()
	assert.Equal(5, policy.MaxRetries)
	assert.Equal(250*time.Millisecond, policy.InitialInterval)
	assert.Equal(5*time.Second, policy.MaxInterval)
}

func TestConfigApplyDefaults(t *testing.T) {
	assert := assert.New(t)

	var cfg Config
	cfg.Source.Chunk.Size = 100
	cfg.Source.Chunk.Overlap = 100

	cfg.ApplyDefaults()

	assert.Equal([]string{".java"}, cfg.Source.Extensions)
	assert.NotEmpty(cfg.Source.Exclude)
	assert.Equal(0, cfg.Source.Chunk.Overlap, "overlap must stay below the chunk size")
	assert.Equal(4, cfg.Retrieval.K)
	assert.Equal(4, cfg.Vector.Concurrency)
	assert.Equal(BackendOpenAI, cfg.Model.Embedding)
}

func TestDurationJSON(t *testing.T) {
	assert := assert.New(t)

	var cfg RetryConfig
	if err := json.Unmarshal([]byte(`{"InitialInterval": "1m30s"}`), &cfg); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(90*time.Second, cfg.InitialInterval.Duration())

	bs, err := json.Marshal(Duration(2 * time.Second))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(`"2s"`, string(bs))

	err = json.Unmarshal([]byte(`"soon"`), new(Duration))
	assert.Error(err)
}

func TestChunkReference(t *testing.T) {
	assert := assert.New(t)

	chunk := NewChunk("src/Foo.java", "java", 3, 10, "class Foo {}")

	assert.Equal("src/Foo.java:3-10", chunk.Reference())
	assert.Contains(chunk.ID, "chunk_")

	same := NewChunk("src/Foo.java", "java", 3, 10, "class Foo {}")
	assert.Equal(chunk.ID, same.ID)

	moved := NewChunk("src/Foo.java", "java", 4, 11, "class Foo {}")
	assert.NotEqual(chunk.ID, moved.ID)
}

func TestDocumentToChunk(t *testing.T) {
	assert := assert.New(t)

	chunk := NewChunk("Foo.java", "java", 1, 2, "class Foo {\n}")

	got, err := DocumentToChunk(ChunkToDocument(chunk))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(chunk, got)

	_, err = DocumentToChunk(vector.Document{ID: "x"})
	assert.ErrorIs(err, ErrInvalidChunk)

	_, err = DocumentToChunk(vector.Document{
		ID: "x",
		Metadata: map[string]string{
			"source_path": "Foo.java",
			"start_line":  "one",
		},
	})
	assert.ErrorIs(err, ErrInvalidChunk)
}
