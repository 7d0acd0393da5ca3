package codechat

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var languages = map[string]string{
	".java":  "java",
	".kt":    "kotlin",
	".scala": "scala",
	".go":    "go",
	".py":    "python",
	".js":    "js",
	".ts":    "ts",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".md":    "markdown",
}

// LanguageOf returns the language tag for a file name, or the bare extension
// when it is not a known source language.
func LanguageOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if lang, ok := languages[ext]; ok {
		return lang
	}

	return strings.TrimPrefix(ext, ".")
}

// Collect walks root lazily and yields the chunks of every file whose
// extension is in cfg.Extensions. Walking stops at the first I/O error, which
// is yielded as the last element.
func Collect(root string, cfg SourceConfig) iter.Seq2[Chunk, error] {
	extensions := make([]string, len(cfg.Extensions))
	for i, ext := range cfg.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		extensions[i] = ext
	}

	return func(yield func(Chunk, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			yield(Chunk{}, err)
			return
		}

		if !info.IsDir() {
			yield(Chunk{}, fmt.Errorf("%s: not a directory", root))
			return
		}

		stopped := false

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel != "." && excluded(cfg.Exclude, rel) {
					return filepath.SkipDir
				}

				return nil
			}

			ext := strings.ToLower(filepath.Ext(path))
			if !slices.Contains(extensions, ext) {
				return nil
			}

			if excluded(cfg.Exclude, rel) {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}

			for _, chunk := range ChunkText(rel, LanguageOf(rel), string(content), cfg.Chunk) {
				if !yield(chunk, nil) {
					stopped = true
					return filepath.SkipAll
				}
			}

			return nil
		})

		if err != nil && !stopped {
			yield(Chunk{}, err)
		}
	}
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}

	return false
}

// ChunkText splits text into line-aligned windows of at most cfg.Size
// characters. Consecutive windows share trailing lines worth up to
// cfg.Overlap characters. A line longer than cfg.Size forms its own chunk.
func ChunkText(path, language, text string, cfg ChunkConfig) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	size := cfg.Size
	if size <= 0 {
		size = DefaultConfig().Source.Chunk.Size
	}

	overlap := cfg.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var chunks []Chunk

	start, last := 0, 0
	for start < len(lines) {
		end := start
		length := 0
		for end < len(lines) {
			n := len(lines[end]) + 1
			if end > start && length+n > size {
				break
			}

			length += n
			end++
		}

		// A window holding only carried lines adds nothing new.
		if end <= last {
			start = last
			continue
		}

		last = end

		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) != "" {
			chunks = append(chunks, NewChunk(path, language, start+1, end, body))
		}

		if end >= len(lines) {
			break
		}

		next := end
		carried := 0
		for next > start+1 {
			n := len(lines[next-1]) + 1
			if carried+n > overlap {
				break
			}

			carried += n
			next--
		}

		start = next
	}

	return chunks
}
