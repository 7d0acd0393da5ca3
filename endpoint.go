package codechat

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Search endpoint.Endpoint
	Ask    endpoint.Endpoint
}

func MakeEndpoints(svc Service) EndpointSet {
	return EndpointSet{
		Search: SearchEndpoint(svc),
		Ask:    AskEndpoint(svc),
	}
}

type SearchRequest struct {
	Query string `json:"query" form:"query"`
	K     *int   `json:"k,omitempty" form:"k"`
}

func kArgs(k *int) []int {
	if k == nil {
		return nil
	}

	return []int{*k}
}

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Retrieve(ctx, req.Query, kArgs(req.K)...)
	}
}

type AskRequest struct {
	Question string `json:"question"`
	K        *int   `json:"k,omitempty"`
}

// AskEndpoint responds with a live Stream; transports that cannot stream
// drain it into an AskResult.
func AskEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AskRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Ask(ctx, req.Question, kArgs(req.K)...)
	}
}
