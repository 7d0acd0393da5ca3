package codechat

import (
	"context"
	"strings"

	"github.com/flarexio/codechat/llm"
)

const DefaultTemplate string = `You are an expert software engineer helping a developer understand a codebase.
Answer the question based only on the following context:

{context}

Question: {question}`

// Composer merges retrieved chunks into a prompt and forwards it to the chat model.
type Composer struct {
	template string
	chat     llm.ChatModel
}

func NewComposer(chat llm.ChatModel, template string) *Composer {
	if template == "" {
		template = DefaultTemplate
	}

	return &Composer{
		template: template,
		chat:     chat,
	}
}

func (c *Composer) Context(chunks []Chunk) string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	return strings.Join(texts, "\n\n")
}

// Prompt substitutes both placeholders in a single pass, so placeholder text
// inside the context is left alone.
func (c *Composer) Prompt(context, question string) string {
	r := strings.NewReplacer(
		"{context}", context,
		"{question}", question,
	)

	return r.Replace(c.template)
}

func (c *Composer) Compose(ctx context.Context, chunks []Chunk, question string) (Stream, error) {
	prompt := c.Prompt(c.Context(chunks), question)

	tokens, err := c.chat.Stream(ctx, prompt)
	if err != nil {
		return nil, err
	}

	pending := make([]Fragment, len(chunks))
	for i, chunk := range chunks {
		pending[i] = Fragment{FieldContext, chunk.Reference()}
	}

	return &answerStream{
		pending: pending,
		tokens:  tokens,
	}, nil
}
