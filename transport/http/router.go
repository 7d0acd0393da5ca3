package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/codechat"

	mcpE "github.com/flarexio/codechat/mcp"
)

func AddRouters(r *gin.Engine, endpoints codechat.EndpointSet) {
	// RESTful API routes
	api := r.Group("/api")
	api.Use(RequestID())
	{
		api.GET("/search", SearchHandler(endpoints.Search))
		api.POST("/ask", AskHandler(endpoints.Ask))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	mcp.Use(RequestID())
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
