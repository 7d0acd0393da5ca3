package codechat

import (
	"context"
	"errors"
)

// ProxyMiddleware serves the Service interface from remote endpoints.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return nil
}

func (mw *proxyMiddleware) Retrieve(ctx context.Context, query string, k ...int) ([]Chunk, error) {
	req := SearchRequest{
		Query: query,
	}

	if len(k) > 0 {
		n := k[0]
		req.K = &n
	}

	resp, err := mw.endpoints.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks, ok := resp.([]Chunk)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return chunks, nil
}

func (mw *proxyMiddleware) Ask(ctx context.Context, question string, k ...int) (Stream, error) {
	req := AskRequest{
		Question: question,
	}

	if len(k) > 0 {
		n := k[0]
		req.K = &n
	}

	resp, err := mw.endpoints.Ask(ctx, req)
	if err != nil {
		return nil, err
	}

	switch result := resp.(type) {
	case Stream:
		return result, nil

	case AskResult:
		return NewSliceStream(result.Fragments()), nil

	default:
		return nil, errors.New("invalid response type")
	}
}
