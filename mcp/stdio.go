package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

var ErrEndpointExists = errors.New("endpoint already exists")

// StdioServer serves newline delimited JSON-RPC messages.
type StdioServer interface {
	AddEndpoint(method mcp.MCPMethod, endpoint MCPEndpoint) error
	Listen(ctx context.Context) error
}

func NewStdioServer(in io.Reader, out io.Writer) StdioServer {
	return &stdioServer{
		in:        in,
		out:       out,
		endpoints: make(map[mcp.MCPMethod]MCPEndpoint),
		log: zap.L().With(
			zap.String("service", "mcp"),
			zap.String("transport", "stdio"),
		),
	}
}

type stdioServer struct {
	in        io.Reader
	out       io.Writer
	endpoints map[mcp.MCPMethod]MCPEndpoint
	log       *zap.Logger
	sync.Mutex
}

func (s *stdioServer) AddEndpoint(method mcp.MCPMethod, endpoint MCPEndpoint) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.endpoints[method]; ok {
		return ErrEndpointExists
	}

	s.endpoints[method] = endpoint
	return nil
}

// Listen returns nil once the input is exhausted.
func (s *stdioServer) Listen(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lines := make(chan string)
	errs := make(chan error, 1)

	go func(ctx context.Context, lines chan<- string, errs chan<- error) {
		defer close(lines)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}(ctx, lines, errs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errs:
			return err

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}

			if line == "" {
				continue
			}

			resp, ok := s.handle(ctx, []byte(line))
			if !ok {
				continue
			}

			bs, err := json.Marshal(resp)
			if err != nil {
				s.log.Error(err.Error())
				continue
			}

			bs = append(bs, '\n')
			if _, err := s.out.Write(bs); err != nil {
				return err
			}
		}
	}
}

// handle reports false for notifications, which get no response.
func (s *stdioServer) handle(ctx context.Context, data []byte) (mcp.JSONRPCMessage, bool) {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.log.Warn("invalid message", zap.Error(err))
		return ParseError(mcp.NewRequestId(nil), err), true
	}

	if req.ID.IsNil() {
		return nil, false
	}

	s.Lock()
	endpoint, ok := s.endpoints[req.Method]
	s.Unlock()

	if !ok {
		return MethodNotFound(req.ID), true
	}

	return endpoint(ctx, req), true
}
