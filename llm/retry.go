package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	initial := p.InitialInterval
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}

	ceiling := p.MaxInterval
	if ceiling < initial {
		ceiling = initial
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(ceiling),
		backoff.WithMaxElapsedTime(0),
	)

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// ServiceError reports a failed call to an external model service.
type ServiceError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ServiceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}

	return e.Op + " failed (" + kind + "): " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: rate limits, server
// errors and network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Transient
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Retry runs op until it succeeds, fails permanently or the policy runs out.
// The final error is a *ServiceError tagged with op.
func Retry[T any](ctx context.Context, policy RetryPolicy, op string, fn func() (T, error)) (T, error) {
	log := zap.L().With(
		zap.String("op", op),
	)

	operation := func() (T, error) {
		result, err := fn()
		if err != nil && !IsTransient(err) {
			return result, backoff.Permanent(err)
		}

		return result, err
	}

	notify := func(err error, next time.Duration) {
		log.Warn("retrying", zap.Error(err), zap.Duration("backoff", next))
	}

	result, err := backoff.RetryNotifyWithData[T](operation, policy.backOff(ctx), notify)
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return result, err
		}

		return result, &ServiceError{
			Op:        op,
			Transient: IsTransient(err),
			Err:       err,
		}
	}

	return result, nil
}
