package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nadzzz/moodshift/docs"
	"github.com/nadzzz/moodshift/internal/artifact"
	"github.com/nadzzz/moodshift/internal/config"
	"github.com/nadzzz/moodshift/internal/conversation"
	"github.com/nadzzz/moodshift/internal/dispatch"
	"github.com/nadzzz/moodshift/internal/health"
	"github.com/nadzzz/moodshift/internal/natsconn"
	"github.com/nadzzz/moodshift/internal/reply"
	"github.com/nadzzz/moodshift/internal/reply/local"
	"github.com/nadzzz/moodshift/internal/reply/openai"
	"github.com/nadzzz/moodshift/internal/settings"
	"github.com/nadzzz/moodshift/internal/speech"
	"github.com/nadzzz/moodshift/internal/speech/polly"
	"github.com/nadzzz/moodshift/internal/transport"
	grpctransport "github.com/nadzzz/moodshift/internal/transport/grpc"
	httptransport "github.com/nadzzz/moodshift/internal/transport/http"
)

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC transports until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			config.SetupLogging(cfg.Logging)
			slog.Info("moodshift starting", "version", version)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	conn, err := natsconn.Open(cfg.NATS)
	if err != nil {
		return err
	}
	defer conn.Close()

	cache, err := artifact.New(ctx, conn.JS, artifact.Options{
		AudioBucket: cfg.NATS.AudioBucket,
		StatsBucket: cfg.NATS.StatsBucket,
		PublicURL:   cfg.Server.PublicURL,
	})
	if err != nil {
		return err
	}
	defer cache.Wait()

	source, err := settings.NewKVSource(ctx, conn.JS, cfg.NATS.ConfigBucket)
	if err != nil {
		return err
	}
	provider := settings.NewProvider(source, cfg.Settings.TTL)
	if err := source.Watch(ctx, func(name string) {
		slog.Info("settings document changed", "name", name)
		provider.Invalidate()
	}); err != nil {
		return err
	}

	history, err := openHistory(ctx, cfg, conn)
	if err != nil {
		return err
	}
	defer history.Close()

	// Initialize the reply providers: the hosted model first, then the
	// self-hosted one when enabled.
	providers := []reply.Provider{openai.New(cfg.LLM.APIKey)}
	if cfg.LLM.Secondary.Enabled {
		providers = append(providers, local.New(cfg.LLM.Secondary))
		slog.Info("secondary reply provider enabled",
			"endpoint", cfg.LLM.Secondary.Endpoint,
			"model", cfg.LLM.Secondary.Model)
	}
	if cfg.LLM.APIKey == "" {
		slog.Warn("llm.api_key is empty; hosted replies will fail over to fallbacks")
	}
	if cfg.AWS.AccessKey == "" || cfg.AWS.SecretKey == "" {
		slog.Warn("aws credentials are empty; speech synthesis will fail")
	}

	dispatcher := dispatch.New(
		cache,
		provider,
		reply.NewGenerator(reply.NewChain(providers...)),
		speech.NewSynthesizer(polly.New(cfg.AWS)),
		history,
	)

	// Initialize enabled transports.
	var transports []transport.Transport
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port, cache,
			httptransport.WithHistory(history)))
	}
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if len(transports) == 0 {
		return fmt.Errorf("no transports enabled; enable at least one in config")
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort)
	healthServer.AddCheck("nats", func(context.Context) error { return conn.Healthy() })
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher.Handle); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	healthServer.SetReady(true)
	slog.Info("moodshift ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"conversation_backend", cfg.Conversation.Backend)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("moodshift stopped")
	return nil
}

func openHistory(ctx context.Context, cfg *config.Config, conn *natsconn.Conn) (conversation.Store, error) {
	switch cfg.Conversation.Backend {
	case "sqlite":
		slog.Info("using sqlite conversation store", "path", cfg.Conversation.SQLitePath)
		return conversation.NewSQLiteStore(cfg.Conversation.SQLitePath, cfg.Conversation.MaxMessages)
	default:
		slog.Info("using kv conversation store", "bucket", cfg.NATS.ConversationBucket)
		return conversation.NewKVStore(ctx, conn.JS, cfg.NATS.ConversationBucket, cfg.Conversation.MaxMessages)
	}
}
