package codechat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProxyMiddleware(t *testing.T) {
	assert := assert.New(t)

	next := &stubService{
		fragments: []Fragment{
			{FieldContext, "Foo.java:1-1"},
			{FieldAnswer, "Foo is a class."},
		},
	}

	endpoints := MakeEndpoints(next)

	var svc Service
	svc = ProxyMiddleware(&endpoints)(svc)

	stream, err := svc.Ask(context.Background(), "What is Foo?", 2)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	result, err := Drain(stream)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]string{"Foo.java:1-1"}, result.Sources)
	assert.Equal("Foo is a class.", result.Answer)

	_, err = svc.Retrieve(context.Background(), "Foo")
	assert.ErrorIs(err, ErrIndexNotReady)
	assert.NoError(svc.Close())
}

func TestProxyMiddlewareDrainedAnswer(t *testing.T) {
	assert := assert.New(t)

	endpoints := &EndpointSet{
		Ask: func(ctx context.Context, request any) (any, error) {
			return AskResult{
				Sources: []string{"Bar.java:3-9"},
				Answer:  "Bar renders.",
			}, nil
		},
	}

	var svc Service
	svc = ProxyMiddleware(endpoints)(svc)

	stream, err := svc.Ask(context.Background(), "What does Bar do?")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	f, err := stream.Recv()
	assert.NoError(err)
	assert.Equal(Fragment{FieldContext, "Bar.java:3-9"}, f)
}
