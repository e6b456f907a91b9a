package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korolevna/gigabot/internal/channel"
	"github.com/korolevna/gigabot/internal/config"
	"github.com/korolevna/gigabot/internal/metrics"
	"github.com/korolevna/gigabot/internal/retry"
)

// ErrDelivery means a reply could not be sent after exhausting retries
var ErrDelivery = errors.New("telegram delivery failed")

const pollTimeoutSec = 60

// Channel is the Telegram transport: a long-polling inbound adapter and the
// resilient outbound sender.
type Channel struct {
	bot           *tgbotapi.BotAPI
	engine        *retry.Engine
	parseMode     string
	processEdited bool
	incoming      chan *channel.Message
	logger        *slog.Logger
}

// New creates the Telegram channel. The HTTP client carries the
// process-wide request and connect timeouts.
func New(cfg config.TelegramConfig, httpClient *http.Client, logger *slog.Logger) (*Channel, error) {
	return newWithEndpoint(cfg, tgbotapi.APIEndpoint, httpClient, logger)
}

func newWithEndpoint(cfg config.TelegramConfig, endpoint string, httpClient *http.Client, logger *slog.Logger) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init failed: %w", err)
	}
	return &Channel{
		bot: bot,
		engine: retry.New(retry.DefaultSchedule(), func() {
			metrics.ErrorCount.WithLabelValues("telegram").Inc()
		}),
		parseMode:     cfg.ParseMode,
		processEdited: cfg.ProcessEdited,
		incoming:      make(chan *channel.Message, 100),
		logger:        logger,
	}, nil
}

func (c *Channel) Name() string {
	return "telegram"
}

// Start begins long polling for updates and feeds normalized messages into
// the incoming channel until the context is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSec
	updates := c.bot.GetUpdatesChan(u)
	go func() {
		defer close(c.incoming)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg := c.Normalize(update)
				if msg == nil {
					continue
				}
				select {
				case c.incoming <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func (c *Channel) Stop() error {
	c.bot.StopReceivingUpdates()
	return nil
}

func (c *Channel) Incoming() <-chan *channel.Message {
	return c.incoming
}

// Normalize converts a raw Telegram update into the orchestrator's message
// shape. Returns nil for updates that carry nothing to process.
func (c *Channel) Normalize(update tgbotapi.Update) *channel.Message {
	apiMsg := update.Message
	kind := ""
	edited := false

	switch {
	case apiMsg != nil:
	case update.EditedMessage != nil && c.processEdited:
		apiMsg = update.EditedMessage
		edited = true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		apiMsg = update.CallbackQuery.Message
		kind = channel.KindCallback
	default:
		return nil
	}
	if apiMsg.From == nil || apiMsg.Chat == nil {
		return nil
	}
	if kind == "" {
		kind = detectKind(apiMsg)
	}

	return &channel.Message{
		UpdateID:  update.UpdateID,
		MessageID: apiMsg.MessageID,
		UserID:    apiMsg.From.ID,
		ChatID:    apiMsg.Chat.ID,
		Text:      apiMsg.Text,
		Caption:   apiMsg.Caption,
		Kind:      kind,
		Edited:    edited,
	}
}

func detectKind(msg *tgbotapi.Message) string {
	switch {
	case msg.Voice != nil:
		return channel.KindVoice
	case len(msg.Photo) > 0:
		return channel.KindPhoto
	case msg.Document != nil:
		return channel.KindDocument
	case msg.Text != "":
		return channel.KindText
	default:
		return channel.KindOther
	}
}

// Send delivers a reply through sendMessage using the fixed backoff
// schedule. 429 and 5xx responses are retried; everything else fails the
// delivery immediately.
func (c *Channel) Send(ctx context.Context, chatID int64, text string, replyTo int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = c.parseMode
	msg.DisableWebPagePreview = true
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}

	err := c.engine.Do(ctx, func(_ context.Context, attempt int) (retry.Outcome, error) {
		if _, err := c.bot.Send(msg); err != nil {
			outcome := classifySendError(err)
			if outcome == retry.Retryable {
				c.logger.Warn("telegram send failed, will retry", "chat_id", chatID, "attempt", attempt, "error", err)
			}
			return outcome, fmt.Errorf("%w: %v", ErrDelivery, err)
		}
		return retry.Success, nil
	})
	return err
}

func classifySendError(err error) retry.Outcome {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		// The Bot API error_code mirrors HTTP status codes. Delivery has no
		// credential refresh path, so 401 is fatal here.
		return retry.ClassifyStatus(apiErr.Code, false)
	}
	// Transport-level failure.
	return retry.Fatal
}
