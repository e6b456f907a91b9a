package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/korolevna/gigabot/internal/bot"
	"github.com/korolevna/gigabot/internal/channel"
	"github.com/korolevna/gigabot/internal/channel/telegram"
	"github.com/korolevna/gigabot/internal/config"
	"github.com/korolevna/gigabot/internal/gigachat"
	"github.com/korolevna/gigabot/internal/history"
	"github.com/korolevna/gigabot/internal/logging"
	"github.com/korolevna/gigabot/internal/prompt"
	"github.com/korolevna/gigabot/internal/scheduler"
	"github.com/korolevna/gigabot/internal/server"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := logging.WithComponent("main")
	logger.Info("Starting gigabot", "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.Logging.Level)
	logger.Info("Configuration loaded", "mode", cfg.Telegram.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := newHTTPClient(cfg)

	// Conversation store: Redis when configured and reachable, in-memory
	// mirror always.
	memoryStore := history.NewMemoryStore(cfg.History.Turns)
	var cache history.CacheBackend
	var redisStore *history.RedisStore
	if cfg.History.Enabled && cfg.History.RedisAddr != "" {
		rs, err := history.NewRedisStore(history.RedisConfig{
			Addr:     cfg.History.RedisAddr,
			Password: cfg.History.RedisPassword,
			DB:       cfg.History.RedisDB,
		}, cfg.History.Turns, cfg.History.GetTTL())
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory history", "error", err)
		} else {
			redisStore = rs
			cache = rs
			logger.Info("Redis history store connected", "addr", cfg.History.RedisAddr)
		}
	}
	store := history.NewDualStore(cache, memoryStore, logging.WithComponent("history"))

	tokens := gigachat.NewTokenManager(gigachat.TokenConfig{
		AuthURL:              cfg.GigaChat.AuthURL,
		ClientID:             cfg.GigaChat.ClientID,
		ClientSecret:         cfg.GigaChat.ClientSecret,
		Scope:                cfg.GigaChat.Scope,
		RefreshReserve:       cfg.GigaChat.GetTokenRefreshReserve(),
		ForceRefreshInterval: cfg.GigaChat.GetTokenForceRefreshInterval(),
	}, httpClient, logging.WithComponent("gigachat"))

	llm := gigachat.NewClient(gigachat.Config{
		BaseURL:  cfg.GigaChat.BaseURL,
		ChatPath: cfg.GigaChat.ChatPath,
		Model:    cfg.GigaChat.Model,
	}, httpClient, tokens, logging.WithComponent("gigachat"))

	tg, err := telegram.New(cfg.Telegram, httpClient, logging.WithComponent("telegram"))
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	access := bot.NewAccess(cfg.Telegram.AllowedUserIDs, cfg.Telegram.Admins())
	prompts := prompt.NewManager(cfg.Bot.DefaultMode)

	var pinger bot.Pinger
	if redisStore != nil {
		pinger = redisStore
	}
	handler := bot.NewHandler(cfg, access, prompts, store, llm, tg, pinger, logging.WithComponent("bot"))

	sched := scheduler.New(memoryStore, cfg.History.GetTTL(), logging.WithComponent("scheduler"))
	sched.Start()

	var serverPinger server.Pinger
	if redisStore != nil {
		serverPinger = redisStore
	}

	var adapter channel.Adapter = tg
	var wg sync.WaitGroup
	var srv *server.Server

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		srv = server.New(cfg, tg, handler, serverPinger, logging.WithComponent("server"))
	case config.ModePolling:
		if err := adapter.Start(ctx); err != nil {
			logger.Error("Failed to start adapter", "adapter", adapter.Name(), "error", err)
			os.Exit(1)
		}
		logger.Info("Adapter started", "adapter", adapter.Name())
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range adapter.Incoming() {
				wg.Add(1)
				go func(m *channel.Message) {
					defer wg.Done()
					handler.Handle(ctx, m)
				}(msg)
			}
		}()
		// Health and metrics stay up in polling mode too.
		srv = server.New(cfg, nil, nil, serverPinger, logging.WithComponent("server"))
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Telegram.Mode == config.ModePolling {
		if err := adapter.Stop(); err != nil {
			logger.Error("Failed to stop adapter", "adapter", adapter.Name(), "error", err)
		}
		wg.Wait()
	}

	sched.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("Failed to close Redis", "error", err)
		}
	}

	logger.Info("Shutdown complete")
}

func newHTTPClient(cfg *config.Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.HTTP.GetConnectTimeout()}
	return &http.Client{
		Timeout: cfg.HTTP.GetRequestTimeout(),
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: cfg.HTTP.GetConnectTimeout(),
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
