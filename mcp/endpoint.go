package mcp

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/codechat"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id mcp.RequestId, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

func MethodNotFound(id mcp.RequestId) mcp.JSONRPCError {
	return errorResponse(id, mcp.METHOD_NOT_FOUND, "method not found")
}

func ParseError(id mcp.RequestId, err error) mcp.JSONRPCError {
	return errorResponse(id, mcp.PARSE_ERROR, err.Error())
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const (
	ToolSearchCode  = "search_code"
	ToolAskCodebase = "ask_codebase"
)

const MCPSERVER_INSTRUCTIONS string = `codechat answers questions about an indexed codebase:

1. **search_code**: find the source chunks most similar to a natural language query
2. **ask_codebase**: answer a question using the retrieved chunks as context

Results carry the originating file path and line range.`

// Tools lists the tools served by CallToolEndpoint.
func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolSearchCode,
			mcp.WithDescription("Search the indexed codebase for source chunks relevant to a query"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Natural language description of the code to find"),
			),
			mcp.WithNumber("k",
				mcp.Description("Number of chunks to return"),
			),
		),
		mcp.NewTool(ToolAskCodebase,
			mcp.WithDescription("Answer a question about the indexed codebase"),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description("Question about the codebase"),
			),
			mcp.WithNumber("k",
				mcp.Description("Number of chunks used as context"),
			),
		),
	}
}

func InitializeEndpoint(svc codechat.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "codechat",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc codechat.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc codechat.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: Tools(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc codechat.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		callToolReq := mcp.CallToolRequest{
			Request: mcp.Request{
				Method: string(req.Method),
			},
			Params: params,
		}

		var result *mcp.CallToolResult

		switch params.Name {
		case ToolSearchCode:
			result = searchCode(ctx, svc, callToolReq)

		case ToolAskCodebase:
			result = askCodebase(ctx, svc, callToolReq)

		default:
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "tool not found: "+params.Name)
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func searchCode(ctx context.Context, svc codechat.Service, req mcp.CallToolRequest) *mcp.CallToolResult {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	var k []int
	if n := req.GetInt("k", -1); n >= 0 {
		k = append(k, n)
	}

	chunks, err := svc.Retrieve(ctx, query, k...)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}

		b.WriteString("// " + chunk.Reference() + "\n")
		b.WriteString(chunk.Text)
	}

	return mcp.NewToolResultText(b.String())
}

func askCodebase(ctx context.Context, svc codechat.Service, req mcp.CallToolRequest) *mcp.CallToolResult {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	var k []int
	if n := req.GetInt("k", -1); n >= 0 {
		k = append(k, n)
	}

	stream, err := svc.Ask(ctx, question, k...)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	result, err := codechat.Drain(stream)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	text := result.Answer
	if len(result.Sources) > 0 {
		text += "\n\nSources:\n- " + strings.Join(result.Sources, "\n- ")
	}

	return mcp.NewToolResultText(text)
}
