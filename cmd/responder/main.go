package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/icecreamdb/chat-responder/internal/api"
	"github.com/icecreamdb/chat-responder/internal/biz"
	"github.com/icecreamdb/chat-responder/internal/biz/repo"
	"github.com/icecreamdb/chat-responder/internal/conf"
	"github.com/icecreamdb/chat-responder/internal/data"
	"github.com/icecreamdb/chat-responder/internal/infra/feishu"
	"github.com/icecreamdb/chat-responder/internal/infra/hub"
	"github.com/icecreamdb/chat-responder/internal/infra/twitch"
	"github.com/icecreamdb/chat-responder/internal/mcp"
	"github.com/icecreamdb/chat-responder/internal/metrics"
	"github.com/icecreamdb/chat-responder/internal/server"
	"github.com/icecreamdb/chat-responder/internal/service"
)

// Version is set at build time
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// chatClient is what every transport provides
type chatClient interface {
	server.Transport
	repo.ChatSender
	repo.UserResolver
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := conf.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("responder stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *conf.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize repository layer
	repos, err := data.NewRepositories(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()
	logger.Info("rule store opened", "driver", cfg.DB.Driver)

	// Initialize transport
	client, err := newChatClient(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("transport ready", "transport", cfg.Transport, "bot", client.BotID())

	// Initialize usecase layer
	opts := cfg.ToOptions()
	opts.StartedAt = time.Now()
	uc := biz.NewUsecases(repos.Rules, client, opts, logger, m)
	if err := uc.Cache.Refresh(ctx, time.Now()); err != nil {
		logger.Warn("initial rule load failed, retrying on first event", "error", err)
	}

	// Initialize service layer
	sender := server.NewRateLimitedSender(client, cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	dispatch := service.NewDispatchService(uc, repos.Rules, sender, logger, m, service.WithShutdown(cancel))

	// Admin HTTP server with MCP tools
	mcpServer := mcp.NewServer(uc, repos.Rules, Version, logger)
	apiServer := api.NewServer(uc.Cache, reg, mcpServer.Handler(), cfg.Admin.Addr, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("admin server error", "error", err)
		}
	}()

	srv := server.NewChatServer(client, dispatch, logger)

	housekeeping := service.NewCronRunner(logger)
	if err := housekeeping.AddPrune("seen_messages", service.DefaultPruneSpec, srv.PruneSeen); err != nil {
		return err
	}
	housekeeping.Start()
	defer housekeeping.Stop()

	logger.Info("starting chat responder", "version", Version)
	runErr := srv.Start(ctx)

	// Graceful shutdown
	logger.Info("shutting down")
	cancel()
	srv.Stop()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := apiServer.Stop(stopCtx); err != nil {
		logger.Warn("admin server shutdown failed", "error", err)
	}
	return runErr
}

func newChatClient(cfg *conf.Config, logger *slog.Logger) (chatClient, error) {
	switch cfg.Transport {
	case conf.TransportTwitch:
		return twitch.NewClient(twitch.Config{
			Server:    cfg.Twitch.Server,
			Port:      cfg.Twitch.Port,
			TLS:       cfg.Twitch.TLS,
			Nick:      cfg.Twitch.Nick,
			Token:     cfg.Twitch.Token,
			BotUserID: cfg.Twitch.BotUserID,
			Channels:  cfg.Twitch.Channels,
		}, logger), nil
	case conf.TransportFeishu:
		return feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger), nil
	case conf.TransportHub:
		c, err := hub.Connect(cfg.Hub.NATSURL, cfg.Hub.BotID, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
