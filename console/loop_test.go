package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/codechat"
	"github.com/flarexio/codechat/llm"
)

type scriptedService struct {
	answers map[string][]codechat.Fragment
	errs    map[string]error
	asked   []string
	k       [][]int
}

func (s *scriptedService) Close() error {
	return nil
}

func (s *scriptedService) Retrieve(ctx context.Context, query string, k ...int) ([]codechat.Chunk, error) {
	return nil, codechat.ErrIndexNotReady
}

func (s *scriptedService) Ask(ctx context.Context, question string, k ...int) (codechat.Stream, error) {
	s.asked = append(s.asked, question)
	s.k = append(s.k, k)

	if err, ok := s.errs[question]; ok {
		return nil, err
	}

	return codechat.NewSliceStream(s.answers[question]), nil
}

func TestLoopGroupsFragmentsByField(t *testing.T) {
	assert := assert.New(t)

	svc := &scriptedService{
		answers: map[string][]codechat.Fragment{
			"What is Foo?": {
				{Field: codechat.FieldContext, Text: "Foo.java:1-1"},
				{Field: codechat.FieldAnswer, Text: "Foo is "},
				{Field: codechat.FieldAnswer, Text: "a class."},
			},
		},
	}

	var out bytes.Buffer
	loop := NewLoop(svc, strings.NewReader("What is Foo?\n"), &out,
		WithHeaderStyle(lipgloss.NewStyle()),
	)

	err := loop.Run(context.Background())

	assert.NoError(err)
	assert.Equal("context:\nFoo.java:1-1\n\nanswer:\nFoo is a class.\n", out.String())
}

func TestLoopContinuesAfterErrors(t *testing.T) {
	assert := assert.New(t)

	svc := &scriptedService{
		answers: map[string][]codechat.Fragment{
			"second": {
				{Field: codechat.FieldAnswer, Text: "fine"},
			},
		},
		errs: map[string]error{
			"first": &llm.ServiceError{
				Op:        "chat",
				Transient: true,
				Err:       errors.New("rate limited"),
			},
			"third": codechat.ErrEmptyQuery,
		},
	}

	var out, errOut bytes.Buffer
	loop := NewLoop(svc, strings.NewReader("first\n\n   \nsecond\nthird\n"), &out,
		WithHeaderStyle(lipgloss.NewStyle()),
		WithErrorOutput(&errOut),
		WithK(2),
	)

	err := loop.Run(context.Background())

	assert.NoError(err)
	assert.Equal([]string{"first", "second", "third"}, svc.asked, "blank lines are skipped")
	assert.Equal([][]int{{2}, {2}, {2}}, svc.k)
	assert.Equal("answer:\nfine\n", out.String())
	assert.Contains(errOut.String(), "temporary failure, please ask again")
	assert.Contains(errOut.String(), "error: empty query")
}

func TestLoopPrompt(t *testing.T) {
	assert := assert.New(t)

	svc := &scriptedService{}

	var out bytes.Buffer
	loop := NewLoop(svc, strings.NewReader("hi\n"), &out,
		WithHeaderStyle(lipgloss.NewStyle()),
		WithPrompt("> "),
	)

	assert.NoError(loop.Run(context.Background()))
	assert.Equal("> > ", out.String())
}

func TestLoopStopsOnCancel(t *testing.T) {
	assert := assert.New(t)

	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewLoop(&scriptedService{}, r, io.Discard).Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		assert.Fail("loop did not stop")
	}
}

func TestPrinterStreamError(t *testing.T) {
	assert := assert.New(t)

	var out bytes.Buffer
	p := NewPrinter(&out, lipgloss.NewStyle())

	assert.NoError(p.Write(codechat.Fragment{Field: codechat.FieldAnswer, Text: "partial"}))
	p.End()
	p.End()

	assert.Equal("answer:\npartial\n", out.String())
}
