package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shelfagent/shelfagent/pkg/db"
	"github.com/shelfagent/shelfagent/pkg/document"
	"github.com/shelfagent/shelfagent/pkg/embedding"
	"github.com/shelfagent/shelfagent/pkg/gate"
	"github.com/shelfagent/shelfagent/pkg/llm"
	"github.com/shelfagent/shelfagent/pkg/logger"
	"github.com/shelfagent/shelfagent/pkg/openlibrary"
	"github.com/shelfagent/shelfagent/pkg/server"
	"github.com/shelfagent/shelfagent/pkg/skills"
	"github.com/shelfagent/shelfagent/pkg/telemetry"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
	"github.com/shelfagent/shelfagent/pkg/vectorstore/memory"
	vssqlite "github.com/shelfagent/shelfagent/pkg/vectorstore/sqlite"
	"github.com/shelfagent/shelfagent/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent HTTP server",
	Long: `Start the HTTP server exposing the agent skills. The server provides
skill discovery, single and batched skill execution, and a prompt
endpoint that routes natural-language requests through the agent loop.

The server will be available at http://localhost:8080 by default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServeCommand(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Host to bind the server to")
	serveCmd.Flags().Int("port", 8080, "Port to bind the server to")
	serveCmd.Flags().String("gate-policy", "per_skill", "Execution gate policy (per_skill, strict_single)")
	serveCmd.Flags().String("store", "memory", "Vector store backend (memory, sqlite)")

	viper.BindPFlag("host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("gate_policy", serveCmd.Flags().Lookup("gate-policy"))
	viper.BindPFlag("store", serveCmd.Flags().Lookup("store"))
}

// validateServeConfig validates the host before binding.
func validateServeConfig(cfg *Config) error {
	if cfg.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if cfg.Host != "localhost" && cfg.Host != "0.0.0.0" {
		if ip := net.ParseIP(cfg.Host); ip == nil {
			if strings.Contains(cfg.Host, " ") || strings.Contains(cfg.Host, ":") {
				return fmt.Errorf("invalid host: %s", cfg.Host)
			}
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Port < 1024 {
		logger.G(context.Background()).WithField("port", cfg.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}
	return nil
}

// newVectorStore builds the configured vector store backend.
func newVectorStore(ctx context.Context, cfg *Config) (vectorstore.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		dbPath := cfg.SQLitePath
		if dbPath == "" {
			var err error
			dbPath, err = db.DefaultDBPath()
			if err != nil {
				return nil, err
			}
		}
		return vssqlite.Open(ctx, dbPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q (expected memory or sqlite)", cfg.Store)
	}
}

// runServeCommand wires the collaborators together and starts the
// HTTP server.
func runServeCommand(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validateServeConfig(cfg); err != nil {
		return err
	}

	policy, err := gate.ParsePolicy(cfg.GatePolicy)
	if err != nil {
		return err
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "shelfagent",
		ServiceVersion: version.Get().Version,
		SamplerType:    cfg.Tracing.Sampler,
		SamplerRatio:   cfg.Tracing.Ratio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.G(ctx).WithError(err).Error("failed to shut down tracer")
		}
	}()

	store, err := newVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.G(ctx).WithError(err).Error("failed to close vector store")
		}
	}()

	apiKey := cfg.OpenAI.APIKey()
	if apiKey == "" {
		return fmt.Errorf("API key is not set (environment variable %s)", cfg.OpenAI.APIKeyEnv)
	}

	embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.EmbeddingModel,
	})
	if err != nil {
		return err
	}

	var metadataOpts []openlibrary.Option
	if cfg.OpenLibrary.BaseURL != "" {
		metadataOpts = append(metadataOpts, openlibrary.WithBaseURL(cfg.OpenLibrary.BaseURL))
	}

	registry := skills.NewRegistry(
		skills.NewIndexDocumentSkill(document.NewPDFExtractor(), document.NewChunker(5, 1), embedder, store),
		skills.NewSearchDocumentsSkill(embedder, store),
		skills.NewPurgeDocumentsSkill(store),
		skills.NewBookInfoSkill(openlibrary.NewClient(metadataOpts...)),
		skills.NewSendEmailSkill(),
		skills.NewListDocumentsSkill(store),
	)

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  apiKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	})
	if err != nil {
		return err
	}
	agent := llm.NewAgent(llmClient, registry)
	skillRouter := llm.NewRouter(llmClient, registry)

	srv, err := server.NewServer(
		&server.ServerConfig{Host: cfg.Host, Port: cfg.Port},
		registry,
		gate.NewStore(gate.WithStorePolicy(policy)),
		skillRouter,
		agent,
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.G(ctx).WithFields(map[string]any{
		"host":        cfg.Host,
		"port":        cfg.Port,
		"gate_policy": policy.String(),
		"store":       cfg.Store,
	}).Info("starting shelfagent server")

	if err := srv.Start(ctx); err != nil {
		return err
	}

	logger.G(ctx).Info("server stopped")
	return nil
}
