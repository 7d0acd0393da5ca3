package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/sashabaranov/go-openai"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/flarexio/codechat"
	"github.com/flarexio/codechat/console"
	"github.com/flarexio/codechat/llm"
	"github.com/flarexio/codechat/persistence/chromem"
	"github.com/flarexio/codechat/vector"

	openaiA "github.com/flarexio/codechat/llm/openai"
	mcpE "github.com/flarexio/codechat/mcp"
	httpT "github.com/flarexio/codechat/transport/http"
	natsT "github.com/flarexio/codechat/transport/nats"
)

func openaiConfig(cfg codechat.Config, apiKey string) openaiA.Config {
	return openaiA.Config{
		APIKey:         apiKey,
		BaseURL:        cfg.Model.BaseURL,
		EmbeddingModel: cfg.Model.EmbedModel,
		ChatModel:      cfg.Model.ChatModel,
		Temperature:    cfg.Model.Temperature,
		Retry:          cfg.Retry.Policy(),
	}
}

// newIndexer returns the openai client as well when the embedding backend
// needed one, so the chat model can share it.
func newIndexer(cfg codechat.Config, apiKey string) (*codechat.Indexer, *openai.Client, error) {
	var (
		embed  vector.EmbeddingFunc
		client *openai.Client
	)

	switch cfg.Model.Embedding {
	case codechat.BackendOpenAI:
		c, err := openaiA.NewClient(openaiConfig(cfg, apiKey))
		if err != nil {
			return nil, nil, err
		}

		client = c

		embedder := openaiA.NewEmbedder(client, openaiConfig(cfg, apiKey))
		embed = embedder.Embed

		zap.L().Info("embedding backend",
			zap.String("model", embedder.ModelInfo()),
			zap.Int("dimension", embedder.Dimension()),
		)

	case codechat.BackendOllama:
		embed = chromem.NewOllamaEmbeddingFunc(cfg.Model.EmbedModel, cfg.Model.OllamaURL)

	default:
		return nil, nil, llm.ErrUnknownBackend
	}

	db, err := chromem.NewChromemVectorDB(cfg.Vector, embed)
	if err != nil {
		return nil, nil, err
	}

	return codechat.NewIndexer(db, cfg.Vector.Collection), client, nil
}

// localService opens the index, building it on first use, and wires the
// pipeline around it.
func localService(ctx context.Context, cfg codechat.Config, apiKey string) (codechat.Service, error) {
	indexer, client, err := newIndexer(cfg, apiKey)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client, err = openaiA.NewClient(openaiConfig(cfg, apiKey))
		if err != nil {
			return nil, err
		}
	}

	source := codechat.Collect(cfg.Source.Root, cfg.Source)

	collection, built, err := indexer.Open(ctx, cfg.Vector.Path, source)
	if err != nil {
		return nil, err
	}

	zap.L().Info("index ready",
		zap.String("location", cfg.Vector.Path),
		zap.Bool("built", built),
		zap.Int("count", collection.Count()),
	)

	chat := openaiA.NewChatModel(client, openaiConfig(cfg, apiKey))

	return codechat.NewService(cfg, collection, chat)
}

func remoteService(nc *nats.Conn, topic string) codechat.Service {
	endpoints := natsT.MakeEndpoints(nc, topic)

	var svc codechat.Service
	return codechat.ProxyMiddleware(endpoints)(svc)
}

func connectNATS(cmd *cli.Command, name string) (*nats.Conn, error) {
	url := cmd.String("nats")
	if url == "" {
		url = nats.DefaultURL
	}

	opts := []nats.Option{
		nats.Name(name),
	}

	if creds := cmd.String("nats-creds"); creds != "" {
		opts = append(opts, nats.UserCredentials(creds))
	}

	return nats.Connect(url, opts...)
}

func serveNATS(nc *nats.Conn, topic string, endpoints codechat.EndpointSet) (micro.Service, error) {
	srv, err := micro.AddService(nc, micro.Config{
		Name:    "codechat",
		Version: "1.0.0",
	})

	if err != nil {
		return nil, err
	}

	root := srv.AddGroup(topic)
	if err := natsT.AddEndpoints(root, endpoints); err != nil {
		srv.Stop()
		return nil, err
	}

	return srv, nil
}

func mcpEndpoints(svc codechat.Service) map[mcp.MCPMethod]mcpE.MCPEndpoint {
	endpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
	endpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
	endpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
	endpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
	endpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
	return endpoints
}

func serveHTTP(addr string, svc codechat.Service, endpoints codechat.EndpointSet) *http.Server {
	r := gin.Default()
	httpT.AddRouters(r, endpoints)
	httpT.AddStreamableRouters(r, mcpEndpoints(svc))

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error(err.Error(), zap.String("transport", "http"))
		}
	}()

	return srv
}

func serveStdio(ctx context.Context, svc codechat.Service) error {
	s := mcpE.NewStdioServer(os.Stdin, os.Stdout)
	for method, endpoint := range mcpEndpoints(svc) {
		if err := s.AddEndpoint(method, endpoint); err != nil {
			return err
		}
	}

	err := s.Listen(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func chat(ctx context.Context, svc codechat.Service, k int) error {
	loop := console.NewLoop(svc, os.Stdin, os.Stdout,
		console.WithK(k),
		console.WithPrompt("> "),
		console.WithErrorOutput(os.Stderr),
	)

	err := loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
