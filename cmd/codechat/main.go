package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/codechat"
)

func main() {
	cmd := &cli.Command{
		Name:           "codechat",
		Usage:          "Chat with a codebase",
		DefaultCommand: "chat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the codechat config directory",
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Root directory of the codebase",
				Sources: cli.EnvVars("CODECHAT_ROOT"),
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Index file location (default: <path>/index.gob)",
			},
			&cli.IntFlag{
				Name:    "k",
				Aliases: []string{"top-k"},
				Usage:   "Number of chunks retrieved per question",
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "OpenAI compatible API base URL",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.StringFlag{
				Name:  "topic",
				Usage: "NATS subject prefix of the codechat service",
				Value: "codechat",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "chat",
				Usage: "Ask questions about the codebase from stdin",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Ask a codechat service over NATS instead of a local index",
					},
				},
				Action: runChat,
			},
			{
				Name:  "index",
				Usage: "Build and save the index",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rebuild even when an index already exists",
					},
				},
				Action: runIndex,
			},
			{
				Name:  "serve",
				Usage: "Serve the codebase over HTTP and NATS",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "http",
						Usage: "Enable HTTP transport",
						Value: false,
					},
					&cli.StringFlag{
						Name:  "http-addr",
						Usage: "HTTP server address",
						Value: ":8080",
					},
				},
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: runMCP,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Run(ctx, os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

// setup resolves the config directory, installs the global logger and loads
// the config with flag overrides applied.
func setup(cmd *cli.Command) (codechat.Config, *zap.Logger, error) {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return codechat.Config{}, nil, err
		}

		path = filepath.Join(homeDir, ".flarex", "codechat")
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}

	log, err := cfg.Build()
	if err != nil {
		return codechat.Config{}, nil, err
	}

	zap.ReplaceGlobals(log)

	// Flag sources were resolved before .env got loaded, so values from it
	// are read back through os.Getenv below.
	for _, envFile := range []string{filepath.Join(path, ".env"), ".env"} {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return codechat.Config{}, nil, err
		}
	}

	config, err := loadConfig(filepath.Join(path, "config.yaml"))
	if err != nil {
		return codechat.Config{}, nil, err
	}

	if root := cmd.String("root"); root != "" {
		config.Source.Root = root
	}

	if config.Source.Root == "" {
		config.Source.Root = "."
	}

	if index := cmd.String("index"); index != "" {
		config.Vector.Path = index
	}

	if config.Vector.Path == "" {
		config.Vector.Path = filepath.Join(path, "index.gob")
	}

	if k := cmd.Int("k"); k > 0 {
		config.Retrieval.K = k
	}

	if baseURL := flagOrEnv(cmd, "openai-base-url", "OPENAI_BASE_URL"); baseURL != "" {
		config.Model.BaseURL = baseURL
	}

	config.ApplyDefaults()

	return config, log, nil
}

func flagOrEnv(cmd *cli.Command, name string, key string) string {
	if v := cmd.String(name); v != "" {
		return v
	}

	return os.Getenv(key)
}

// loadConfig falls back to the defaults when no config file exists.
func loadConfig(name string) (codechat.Config, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return codechat.DefaultConfig(), nil
		}

		return codechat.Config{}, err
	}
	defer f.Close()

	cfg := codechat.DefaultConfig()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return codechat.Config{}, err
	}

	return cfg, nil
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	var svc codechat.Service
	if cmd.Bool("remote") {
		nc, err := connectNATS(cmd, "Codechat Client")
		if err != nil {
			return err
		}
		defer nc.Drain()

		svc = remoteService(nc, cmd.String("topic"))
	} else {
		svc, err = localService(ctx, cfg, flagOrEnv(cmd, "openai-api-key", "OPENAI_API_KEY"))
		if err != nil {
			return err
		}
		defer svc.Close()
	}

	svc = codechat.LoggingMiddleware(log)(svc)

	return chat(ctx, svc, cfg.Retrieval.K)
}

func runIndex(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	_, err = os.Stat(cfg.Vector.Path)
	if err == nil && !cmd.Bool("force") {
		log.Info("index already exists", zap.String("location", cfg.Vector.Path))
		return nil
	}

	indexer, _, err := newIndexer(cfg, flagOrEnv(cmd, "openai-api-key", "OPENAI_API_KEY"))
	if err != nil {
		return err
	}

	if _, err := indexer.Build(ctx, codechat.Collect(cfg.Source.Root, cfg.Source)); err != nil {
		return err
	}

	return indexer.Save(cfg.Vector.Path)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := localService(ctx, cfg, flagOrEnv(cmd, "openai-api-key", "OPENAI_API_KEY"))
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = codechat.LoggingMiddleware(log)(svc)

	endpoints := codechat.MakeEndpoints(svc)

	var enabled bool

	if cmd.String("nats") != "" {
		nc, err := connectNATS(cmd, "Codechat Server")
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := serveNATS(nc, cmd.String("topic"), endpoints)
		if err != nil {
			return err
		}
		defer srv.Stop()

		enabled = true
	}

	if cmd.Bool("http") {
		srv := serveHTTP(cmd.String("http-addr"), svc, endpoints)
		defer srv.Shutdown(context.Background())

		enabled = true
	}

	if !enabled {
		return errors.New("no transport enabled: set --nats or --http")
	}

	<-ctx.Done()

	log.Info("graceful shutdown", zap.Error(context.Cause(ctx)))
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := localService(ctx, cfg, flagOrEnv(cmd, "openai-api-key", "OPENAI_API_KEY"))
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = codechat.LoggingMiddleware(log)(svc)

	return serveStdio(ctx, svc)
}
