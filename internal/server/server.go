package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/korolevna/gigabot/internal/channel"
	"github.com/korolevna/gigabot/internal/config"
	"github.com/korolevna/gigabot/internal/metrics"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Normalizer turns a raw Telegram update into a channel message. Updates
// that carry nothing processable normalize to nil.
type Normalizer interface {
	Normalize(update tgbotapi.Update) *channel.Message
}

// UpdateHandler processes one normalized update
type UpdateHandler interface {
	Handle(ctx context.Context, msg *channel.Message)
}

// Pinger reports external cache health for /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front-end: the webhook receiver plus health and
// metrics endpoints
type Server struct {
	cfg        *config.Config
	normalizer Normalizer
	handler    UpdateHandler
	pinger     Pinger
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// HealthResponse is the /healthz payload
type HealthResponse struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

// New creates the HTTP server. normalizer and handler may be nil when the
// bot runs in polling mode and the server only exposes health and metrics.
func New(cfg *config.Config, normalizer Normalizer, handler UpdateHandler, pinger Pinger, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		normalizer: normalizer,
		handler:    handler,
		pinger:     pinger,
		startTime:  time.Now(),
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	if cfg.Telegram.Mode == config.ModeWebhook {
		mux.HandleFunc("/webhook/"+cfg.Telegram.WebhookSecretPath, s.webhookHandler)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// webhookHandler receives Telegram updates. The secret path is part of the
// route; the secret token header is checked here. Telegram retries
// non-200 responses, so the update is acknowledged immediately and
// processed in the background.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get(secretTokenHeader) != s.cfg.Telegram.WebhookSecretToken {
		metrics.ErrorCount.WithLabelValues("webhook").Inc()
		s.logger.Warn("webhook secret token mismatch", "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		metrics.ErrorCount.WithLabelValues("webhook").Inc()
		s.logger.Warn("webhook decode failed", "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if msg := s.normalizer.Normalize(update); msg != nil {
		go s.handler.Handle(context.Background(), msg)
	}

	w.WriteHeader(http.StatusOK)
}

// healthHandler reports process health and the state of the external cache
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	services := map[string]string{"http": "ok"}

	if s.pinger == nil {
		services["redis"] = "disabled"
	} else if err := s.pinger.Ping(r.Context()); err != nil {
		status = "degraded"
		services["redis"] = err.Error()
	} else {
		services["redis"] = "ok"
	}

	response := HealthResponse{
		Status:    status,
		Uptime:    time.Since(s.startTime).String(),
		Services:  services,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
