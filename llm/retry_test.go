package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

var fastPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func TestIsTransient(t *testing.T) {
	assert := assert.New(t)

	assert.False(IsTransient(nil))
	assert.False(IsTransient(errors.New("boom")))
	assert.False(IsTransient(context.Canceled))

	assert.True(IsTransient(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.True(IsTransient(&openai.APIError{HTTPStatusCode: http.StatusBadGateway}))
	assert.False(IsTransient(&openai.APIError{HTTPStatusCode: http.StatusUnauthorized}))

	assert.True(IsTransient(&openai.RequestError{HTTPStatusCode: http.StatusServiceUnavailable}))
	assert.False(IsTransient(&openai.RequestError{HTTPStatusCode: http.StatusNotFound}))

	wrapped := fmt.Errorf("embedding: %w", &ServiceError{Op: "embed", Transient: true, Err: errors.New("x")})
	assert.True(IsTransient(wrapped))
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	assert := assert.New(t)

	attempts := 0
	result, err := Retry(context.Background(), fastPolicy, "embed", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
		}

		return "ok", nil
	})

	assert.NoError(err)
	assert.Equal("ok", result)
	assert.Equal(3, attempts)
}

func TestRetryStopsOnPermanentErrors(t *testing.T) {
	assert := assert.New(t)

	attempts := 0
	_, err := Retry(context.Background(), fastPolicy, "chat", func() (int, error) {
		attempts++
		return 0, &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}
	})

	assert.Equal(1, attempts)

	var svcErr *ServiceError
	if !assert.ErrorAs(err, &svcErr) {
		return
	}

	assert.Equal("chat", svcErr.Op)
	assert.False(svcErr.Transient)
	assert.False(IsTransient(err))

	var apiErr *openai.APIError
	assert.ErrorAs(err, &apiErr)
}

func TestRetryGivesUp(t *testing.T) {
	assert := assert.New(t)

	attempts := 0
	_, err := Retry(context.Background(), fastPolicy, "embed", func() (int, error) {
		attempts++
		return 0, &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}
	})

	assert.Equal(fastPolicy.MaxRetries+1, attempts)
	assert.True(IsTransient(err), "exhausted transient failures stay transient")
}

func TestNormalize(t *testing.T) {
	assert := assert.New(t)

	v := Normalize([]float32{3, 4})
	assert.InDelta(0.6, v[0], 1e-6)
	assert.InDelta(0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal([]float32{0, 0}, zero)
}
