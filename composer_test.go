package codechat

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposerPrompt(t *testing.T) {
	assert := assert.New(t)

	c := NewComposer(new(fakeChat), "")

	chunks := []Chunk{
		NewChunk("A.java", "java", 1, 1, "class A {}"),
		NewChunk("B.java", "java", 1, 1, "// see {question}"),
	}

	merged := c.Context(chunks)
	assert.Equal("class A {}\n\n// see {question}", merged)

	prompt := c.Prompt(merged, "What is A?")
	assert.Contains(prompt, "class A {}\n\n// see {question}")
	assert.Contains(prompt, "Question: What is A?")
	assert.NotContains(prompt, "{context}")
}

func TestComposeClosesTokens(t *testing.T) {
	assert := assert.New(t)

	chat := &fakeChat{tokens: []string{"ok"}}
	c := NewComposer(chat, "{question}")

	stream, err := c.Compose(context.Background(), nil, "ping")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	f, err := stream.Recv()
	assert.NoError(err)
	assert.Equal(Fragment{FieldAnswer, "ok"}, f)

	_, err = stream.Recv()
	assert.ErrorIs(err, io.EOF)

	assert.NoError(stream.Close())
	assert.Equal("ping", chat.LastPrompt())
}

func TestAskResultFragments(t *testing.T) {
	assert := assert.New(t)

	result := AskResult{
		Sources: []string{"A.java:1-2", "B.java:3-4"},
		Answer:  "Both are classes.",
	}

	drained, err := Drain(NewSliceStream(result.Fragments()))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(result, drained)
}
