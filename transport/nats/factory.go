package nats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/codechat"
)

// AskTimeout bounds a remote ask, which includes the whole model answer.
var AskTimeout = 2 * time.Minute

func MakeEndpoints(nc *nats.Conn, prefix string) *codechat.EndpointSet {
	return &codechat.EndpointSet{
		Search: SearchEndpoint(nc, prefix+".search"),
		Ask:    AskEndpoint(nc, prefix+".ask"),
	}
}

func doRequest(ctx context.Context, nc *nats.Conn, topic string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	msg := nats.NewMsg(topic)
	msg.Header.Set(HeaderRequestID, uuid.New().String())
	msg.Data = data

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, err
	}

	if err := Error(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func SearchEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(codechat.SearchRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := doRequest(ctx, nc, topic, data, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		var chunks []codechat.Chunk
		if err := json.Unmarshal(resp.Data, &chunks); err != nil {
			return nil, err
		}

		return chunks, nil
	}
}

func AskEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(codechat.AskRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := doRequest(ctx, nc, topic, data, AskTimeout)
		if err != nil {
			return nil, err
		}

		var result codechat.AskResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	return errors.New(code + ":" + description)
}
