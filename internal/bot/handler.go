package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/korolevna/gigabot/internal/channel"
	"github.com/korolevna/gigabot/internal/config"
	"github.com/korolevna/gigabot/internal/gigachat"
	"github.com/korolevna/gigabot/internal/history"
	"github.com/korolevna/gigabot/internal/metrics"
	"github.com/korolevna/gigabot/internal/prompt"
)

// Fixed user-facing replies
const (
	unauthorizedReply = "Извини, бот доступен только для Маши и мамы."
	unsupportedReply  = "Я пока умею отвечать только на текстовые вопросы."
	longMessageReply  = "Слишком длинный текст, попробуй разделить на несколько сообщений."
	voiceReply        = "Пока понимаю только текст. Если можешь — напиши вопрос текстом."
	emptyReply        = "Пока вижу только пустое сообщение."
	apologyReply      = "Я сейчас не могу получить ответ. Давай попробуем ещё раз через пару минут."
	captionNotice     = "Я пока умею отвечать только на текстовые вопросы. Я вижу подпись, попробую ответить по ней."
)

// Bare confirmation words that need the previous exchange re-attached to
// stay meaningful for the model
var confirmations = map[string]bool{
	"да":          true,
	"ага":         true,
	"угу":         true,
	"конечно":     true,
	"да, конечно": true,
	"давай":       true,
	"хочу":        true,
}

// ChatClient is the LLM gateway as seen by the orchestrator
type ChatClient interface {
	Chat(ctx context.Context, messages []gigachat.Message, sessionID string) (*gigachat.Result, error)
}

// Pinger reports external cache health for the /health command
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler orchestrates one conversational exchange per inbound update
type Handler struct {
	cfg     *config.Config
	access  *Access
	prompts *prompt.Manager
	store   history.Store
	llm     ChatClient
	sender  channel.Sender
	pinger  Pinger
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[int64]string
}

// NewHandler wires the orchestrator. pinger may be nil when no external
// cache is configured.
func NewHandler(
	cfg *config.Config,
	access *Access,
	prompts *prompt.Manager,
	store history.Store,
	llm ChatClient,
	sender channel.Sender,
	pinger Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		cfg:      cfg,
		access:   access,
		prompts:  prompts,
		store:    store,
		llm:      llm,
		sender:   sender,
		pinger:   pinger,
		logger:   logger,
		sessions: make(map[int64]string),
	}
}

// Handle processes one normalized update end to end
func (h *Handler) Handle(ctx context.Context, msg *channel.Message) {
	metrics.RequestCount.WithLabelValues("telegram", msg.Kind).Inc()
	h.logger.Info("incoming update",
		"update_id", msg.UpdateID,
		"user_id", msg.UserID,
		"chat_id", msg.ChatID,
		"kind", msg.Kind,
	)

	if !h.access.IsAllowed(msg.UserID) {
		metrics.ErrorCount.WithLabelValues("auth").Inc()
		h.reply(ctx, msg, unauthorizedReply)
		return
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		if strings.HasPrefix(text, "/") {
			h.handleCommand(ctx, msg, text)
			return
		}
		h.handleText(ctx, msg, text)
		return
	}

	switch msg.Kind {
	case channel.KindVoice:
		h.reply(ctx, msg, voiceReply)
	case channel.KindPhoto, channel.KindDocument:
		if caption := strings.TrimSpace(msg.Caption); caption != "" {
			h.handleText(ctx, msg, caption)
			return
		}
		h.reply(ctx, msg, unsupportedReply)
	case channel.KindText:
		h.reply(ctx, msg, emptyReply)
	default:
		h.reply(ctx, msg, unsupportedReply)
	}
}

// handleText runs one conversational turn: guard, load, augment, persist
// the user turn, call the model, persist the reply, deliver.
func (h *Handler) handleText(ctx context.Context, msg *channel.Message, text string) {
	if utf8.RuneCountInString(text) > h.cfg.Bot.MaxMessageChars {
		h.reply(ctx, msg, longMessageReply)
		return
	}

	window := h.store.Load(ctx, msg.UserID)
	text = augmentFollowUp(text, window)

	// The user turn is persisted before the model call so the next exchange
	// keeps correct context even if this one fails.
	h.store.Append(ctx, msg.UserID, history.RoleUser, text)

	messages := h.prompts.BuildMessages(window, text)
	sessionID := h.sessionID(msg.UserID)

	start := time.Now()
	result, err := h.llm.Chat(ctx, messages, sessionID)
	metrics.ObserveChatLatency(time.Since(start))
	if err != nil {
		h.logger.Error("chat call failed", "user_id", msg.UserID, "error", err)
		h.reply(ctx, msg, apologyReply)
		return
	}

	h.store.Append(ctx, msg.UserID, history.RoleAssistant, result.Text)
	h.reply(ctx, msg, EscapeText(result.Text, h.cfg.Telegram.ParseMode))
}

// augmentFollowUp rewrites a bare confirmation by re-attaching the previous
// assistant and user turns as explicit context hints
func augmentFollowUp(text string, window []history.Turn) string {
	if !confirmations[strings.ToLower(strings.TrimSpace(text))] {
		return text
	}

	var lastAssistant, lastUser string
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i].Role {
		case history.RoleAssistant:
			if lastAssistant == "" {
				lastAssistant = window[i].Content
			}
		case history.RoleUser:
			if lastUser == "" {
				lastUser = window[i].Content
			}
		}
		if lastAssistant != "" && lastUser != "" {
			break
		}
	}

	var hints []string
	if lastAssistant != "" {
		hints = append(hints, fmt.Sprintf("Пожалуйста, продолжай отвечать на свой предыдущий вопрос: %s", lastAssistant))
	}
	if lastUser != "" {
		hints = append(hints, fmt.Sprintf("Контекст запроса: %s", lastUser))
	}
	if len(hints) == 0 {
		return text
	}
	return fmt.Sprintf("%s. %s", text, strings.Join(hints, " "))
}

// sessionID returns the per-user session correlation id, generating it on
// first use. Session ids live for the process lifetime only.
func (h *Handler) sessionID(userID int64) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.sessions[userID]
	if !ok {
		id = uuid.NewString()
		h.sessions[userID] = id
	}
	return id
}

// reply delivers a message to the user. Delivery failures are terminal for
// the reply but never for the process.
func (h *Handler) reply(ctx context.Context, msg *channel.Message, text string) {
	if err := h.sender.Send(ctx, msg.ChatID, text, msg.MessageID); err != nil {
		h.logger.Error("reply delivery failed", "chat_id", msg.ChatID, "error", err)
	}
}
