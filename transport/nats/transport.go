package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/micro"
	"go.uber.org/zap"

	"github.com/flarexio/codechat"
)

const HeaderRequestID = "request_id"

func requestLogger(r micro.Request) *zap.Logger {
	id := r.Headers().Get(HeaderRequestID)
	if id == "" {
		id = uuid.New().String()
	}

	return zap.L().With(
		zap.String("transport", "nats"),
		zap.String("request_id", id),
		zap.String("subject", r.Subject()),
	)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, codechat.ErrEmptyQuery):
		return "400"
	case errors.Is(err, codechat.ErrIndexNotReady):
		return "503"
	default:
		return "417"
	}
}

func SearchHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req codechat.SearchRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			requestLogger(r).Error(err.Error())
			r.Error(errorCode(err), err.Error(), nil)
			return
		}

		chunks, ok := resp.([]codechat.Chunk)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&chunks)
	}
}

// AskHandler drains the answer stream and replies with the whole AskResult;
// request/reply cannot carry partial fragments.
func AskHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req codechat.AskRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		log := requestLogger(r)

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			log.Error(err.Error())
			r.Error(errorCode(err), err.Error(), nil)
			return
		}

		var result codechat.AskResult
		switch v := resp.(type) {
		case codechat.Stream:
			result, err = codechat.Drain(v)
			if err != nil {
				log.Error(err.Error())
				r.Error("417", err.Error(), nil)
				return
			}

		case codechat.AskResult:
			result = v

		default:
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&result)
	}
}
