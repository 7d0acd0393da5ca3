package nats

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/codechat"
)

type fakeRequest struct {
	data     []byte
	headers  micro.Headers
	response []byte
	code     string
	message  string
}

func (r *fakeRequest) Respond(data []byte, opts ...micro.RespondOpt) error {
	r.response = data
	return nil
}

func (r *fakeRequest) RespondJSON(v any, opts ...micro.RespondOpt) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}

	r.response = bs
	return nil
}

func (r *fakeRequest) Error(code, description string, data []byte, opts ...micro.RespondOpt) error {
	r.code = code
	r.message = description
	return nil
}

func (r *fakeRequest) Data() []byte {
	return r.data
}

func (r *fakeRequest) Headers() micro.Headers {
	return r.headers
}

func (r *fakeRequest) Subject() string {
	return "codechat.test"
}

func (r *fakeRequest) Reply() string {
	return "_INBOX.test"
}

type stubService struct{}

func (s *stubService) Close() error {
	return nil
}

func (s *stubService) Retrieve(ctx context.Context, query string, k ...int) ([]codechat.Chunk, error) {
	if query == "" {
		return nil, codechat.ErrEmptyQuery
	}

	n := 1
	if len(k) > 0 {
		n = k[0]
	}

	chunks := make([]codechat.Chunk, 0, n)
	for i := range n {
		chunks = append(chunks, codechat.NewChunk("Foo.java", "java", i+1, i+1, "class Foo {}"))
	}

	return chunks, nil
}

func (s *stubService) Ask(ctx context.Context, question string, k ...int) (codechat.Stream, error) {
	return codechat.NewSliceStream([]codechat.Fragment{
		{Field: codechat.FieldContext, Text: "Foo.java:1-1"},
		{Field: codechat.FieldAnswer, Text: "Foo "},
		{Field: codechat.FieldAnswer, Text: "is a class."},
	}), nil
}

func TestSearchHandler(t *testing.T) {
	assert := assert.New(t)

	endpoints := codechat.MakeEndpoints(new(stubService))

	r := &fakeRequest{data: []byte(`{"query":"What is Foo?","k":2}`)}
	SearchHandler(endpoints.Search)(r)

	assert.Empty(r.code)

	var chunks []codechat.Chunk
	if err := json.Unmarshal(r.response, &chunks); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Len(chunks, 2)
}

func TestSearchHandlerErrors(t *testing.T) {
	assert := assert.New(t)

	endpoints := codechat.MakeEndpoints(new(stubService))

	r := &fakeRequest{data: []byte(`not json`)}
	SearchHandler(endpoints.Search)(r)
	assert.Equal("400", r.code)

	r = &fakeRequest{data: []byte(`{"query":""}`)}
	SearchHandler(endpoints.Search)(r)
	assert.Equal("400", r.code)
	assert.Equal(codechat.ErrEmptyQuery.Error(), r.message)
}

func TestAskHandlerDrainsStream(t *testing.T) {
	assert := assert.New(t)

	endpoints := codechat.MakeEndpoints(new(stubService))

	r := &fakeRequest{data: []byte(`{"question":"What is Foo?"}`)}
	AskHandler(endpoints.Ask)(r)

	assert.Empty(r.code)

	var result codechat.AskResult
	if err := json.Unmarshal(r.response, &result); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]string{"Foo.java:1-1"}, result.Sources)
	assert.Equal("Foo is a class.", result.Answer)
}

func TestError(t *testing.T) {
	assert := assert.New(t)

	msg := nats.NewMsg("codechat.search")
	assert.NoError(Error(msg))

	msg.Header.Set(micro.ErrorCodeHeader, "400")
	msg.Header.Set(micro.ErrorHeader, "empty query")
	assert.EqualError(Error(msg), "400:empty query")

	assert.Error(Error(nil))
}
