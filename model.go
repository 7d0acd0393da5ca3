package codechat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/codechat/llm"
	"github.com/flarexio/codechat/vector"
)

var (
	ErrNoChunks       = errors.New("no chunks to index")
	ErrMalformedIndex = errors.New("malformed index")
	ErrIndexNotReady  = errors.New("index not ready")
	ErrEmptyQuery     = errors.New("empty query")
	ErrInvalidChunk   = errors.New("invalid chunk document")
)

type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Vector    vector.Config   `yaml:"vector"`
	Model     ModelConfig     `yaml:"model"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Retry     RetryConfig     `yaml:"retry"`
}

type SourceConfig struct {
	Root       string      `yaml:"root"`
	Extensions []string    `yaml:"extensions"`
	Exclude    []string    `yaml:"exclude"`
	Chunk      ChunkConfig `yaml:"chunk"`
}

// ChunkConfig bounds chunk size and overlap, in characters.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendOllama Backend = "ollama"
)

type ModelConfig struct {
	Embedding   Backend `yaml:"embedding"`
	EmbedModel  string  `yaml:"embedModel"`
	ChatModel   string  `yaml:"chatModel"`
	BaseURL     string  `yaml:"baseURL"`
	OllamaURL   string  `yaml:"ollamaURL"`
	Temperature float32 `yaml:"temperature"`
}

type RetrievalConfig struct {
	K        int    `yaml:"k"`
	Template string `yaml:"template"`
}

type RetryConfig struct {
	MaxRetries      int      `yaml:"maxRetries"`
	InitialInterval Duration `yaml:"initialInterval"`
	MaxInterval     Duration `yaml:"maxInterval"`
}

func (cfg RetryConfig) Policy() llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}

	if d := cfg.InitialInterval.Duration(); d > 0 {
		policy.InitialInterval = d
	}

	if d := cfg.MaxInterval.Duration(); d > 0 {
		policy.MaxInterval = d
	}

	return policy
}

// DefaultConfig indexes Java sources, which is what the tool was first built for.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Extensions: []string{".java"},
			Exclude: []string{
				"**/.git/**",
				"**/target/**",
				"**/build/**",
				"**/node_modules/**",
			},
			Chunk: ChunkConfig{
				Size:    2000,
				Overlap: 200,
			},
		},
		Vector: vector.Config{
			Collection:  "codebase",
			Concurrency: 4,
		},
		Model: ModelConfig{
			Embedding:  BackendOpenAI,
			EmbedModel: "text-embedding-3-small",
			ChatModel:  "gpt-4-turbo",
		},
		Retrieval: RetrievalConfig{
			K: 4,
		},
	}
}

// ApplyDefaults fills zero values left by a partial config file.
func (cfg *Config) ApplyDefaults() {
	def := DefaultConfig()

	if len(cfg.Source.Extensions) == 0 {
		cfg.Source.Extensions = def.Source.Extensions
	}

	if cfg.Source.Exclude == nil {
		cfg.Source.Exclude = def.Source.Exclude
	}

	if cfg.Source.Chunk.Size <= 0 {
		cfg.Source.Chunk.Size = def.Source.Chunk.Size
	}

	if cfg.Source.Chunk.Overlap < 0 || cfg.Source.Chunk.Overlap >= cfg.Source.Chunk.Size {
		cfg.Source.Chunk.Overlap = 0
	}

	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = def.Vector.Collection
	}

	if cfg.Vector.Concurrency <= 0 {
		cfg.Vector.Concurrency = def.Vector.Concurrency
	}

	if cfg.Model.Embedding == "" {
		cfg.Model.Embedding = def.Model.Embedding
	}

	if cfg.Model.EmbedModel == "" {
		cfg.Model.EmbedModel = def.Model.EmbedModel
	}

	if cfg.Model.ChatModel == "" {
		cfg.Model.ChatModel = def.Model.ChatModel
	}

	if cfg.Retrieval.K <= 0 {
		cfg.Retrieval.K = def.Retrieval.K
	}
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// Chunk is a unit of source text stored and retrieved as a whole.
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	Language   string `json:"language"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

// Reference renders the chunk origin as path:start-end.
func (c Chunk) Reference() string {
	if c.StartLine == 0 {
		return c.SourcePath
	}

	return fmt.Sprintf("%s:%d-%d", c.SourcePath, c.StartLine, c.EndLine)
}

func NewChunk(path, language string, startLine, endLine int, text string) Chunk {
	c := Chunk{
		Text:       text,
		SourcePath: path,
		Language:   language,
		StartLine:  startLine,
		EndLine:    endLine,
	}

	c.ID = generateChunkID(c)
	return c
}

func generateChunkID(c Chunk) string {
	data := fmt.Sprintf("%s|%d|%d|%s", c.SourcePath, c.StartLine, c.EndLine, c.Text)

	hash := sha256.Sum256([]byte(data))
	return "chunk_" + hex.EncodeToString(hash[:12])
}

func ChunkToDocument(c Chunk) vector.Document {
	return vector.Document{
		ID:       c.ID,
		Content:  c.Text,
		Metadata: buildMetadata(c),
	}
}

func buildMetadata(c Chunk) map[string]string {
	return map[string]string{
		"source_path": c.SourcePath,
		"language":    c.Language,
		"start_line":  strconv.Itoa(c.StartLine),
		"end_line":    strconv.Itoa(c.EndLine),
	}
}

func DocumentToChunk(doc vector.Document) (Chunk, error) {
	path, ok := doc.Metadata["source_path"]
	if !ok {
		return Chunk{}, ErrInvalidChunk
	}

	c := Chunk{
		ID:         doc.ID,
		Text:       doc.Content,
		SourcePath: path,
		Language:   doc.Metadata["language"],
	}

	if s, ok := doc.Metadata["start_line"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Chunk{}, fmt.Errorf("%w: %w", ErrInvalidChunk, err)
		}

		c.StartLine = n
	}

	if s, ok := doc.Metadata["end_line"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Chunk{}, fmt.Errorf("%w: %w", ErrInvalidChunk, err)
		}

		c.EndLine = n
	}

	return c, nil
}

type Field string

const (
	FieldContext Field = "context"
	FieldAnswer  Field = "answer"
)

// Fragment is one piece of a streamed answer, tagged with the field it belongs to.
type Fragment struct {
	Field Field  `json:"field"`
	Text  string `json:"text"`
}

// AskResult is a fully drained answer stream.
type AskResult struct {
	Sources []string `json:"sources"`
	Answer  string   `json:"answer"`
}
