package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/korolevna/gigabot/internal/channel"
	"github.com/korolevna/gigabot/internal/config"
	"github.com/korolevna/gigabot/internal/metrics"
)

const (
	startReply = "Привет! Я дружелюбный помощник только для мамы и Маши. " +
		"Задавай вопрос текстом, я постараюсь ответить быстро и по делу."
	helpReply = "Напиши вопрос обычным текстом. Можно уточнять или задавать новые вопросы. " +
		"Если ответ не подходит — уточни, чего именно не хватает. " +
		"Команды для Маши: /mode friendly|concise, /stats, /health. Сбросить историю: /reset."
	unknownCommandReply = "Не знаю такой команды. Напиши текстом, о чём хочешь спросить."
	adminOnlyReply      = "Эта команда доступна только Маше."
	resetReply          = "Готово, история очищена. Можно начинать с чистого листа."
)

func (h *Handler) handleCommand(ctx context.Context, msg *channel.Message, text string) {
	fields := strings.Fields(text)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/start":
		h.reply(ctx, msg, startReply)
	case "/help":
		h.reply(ctx, msg, helpReply)
	case "/reset":
		h.store.Clear(ctx, msg.UserID)
		h.reply(ctx, msg, resetReply)
	case "/mode":
		if !h.requireAdmin(ctx, msg) {
			return
		}
		h.handleMode(ctx, msg, args)
	case "/stats":
		if !h.requireAdmin(ctx, msg) {
			return
		}
		h.handleStats(ctx, msg)
	case "/health":
		if !h.requireAdmin(ctx, msg) {
			return
		}
		h.handleHealth(ctx, msg)
	default:
		h.reply(ctx, msg, unknownCommandReply)
	}
}

func (h *Handler) requireAdmin(ctx context.Context, msg *channel.Message) bool {
	if h.access.IsAdmin(msg.UserID) {
		return true
	}
	h.reply(ctx, msg, adminOnlyReply)
	return false
}

func (h *Handler) handleMode(ctx context.Context, msg *channel.Message, args []string) {
	if len(args) == 0 {
		h.reply(ctx, msg, fmt.Sprintf("Сейчас режим: %s. Доступные варианты: friendly, concise.", h.prompts.Mode()))
		return
	}
	mode := strings.ToLower(args[0])
	if mode != config.BotModeFriendly && mode != config.BotModeConcise {
		h.reply(ctx, msg, "Используй /mode friendly или /mode concise.")
		return
	}
	h.prompts.SetMode(mode)
	h.reply(ctx, msg, fmt.Sprintf("Готово. Режим переключён на %s.", mode))
}

func (h *Handler) handleStats(ctx context.Context, msg *channel.Message) {
	stats, err := metrics.Snapshot()
	if err != nil {
		h.logger.Error("metrics snapshot failed", "error", err)
		h.reply(ctx, msg, "Не получилось собрать статистику.")
		return
	}
	text := "Статистика:\n" +
		fmt.Sprintf("- Всего запросов: %d\n", stats.Requests) +
		fmt.Sprintf("- Ошибки: %d\n", stats.Errors) +
		fmt.Sprintf("- Средняя задержка: %.0f мс", stats.AvgLatencyMs)
	h.reply(ctx, msg, text)
}

func (h *Handler) handleHealth(ctx context.Context, msg *channel.Message) {
	status := "ok"
	redisStatus := "не настроен"
	if h.pinger != nil {
		if err := h.pinger.Ping(ctx); err != nil {
			status = "degraded"
			redisStatus = fmt.Sprintf("ошибка: %v", err)
		} else {
			redisStatus = "ok"
		}
	}
	text := "Здоровье сервиса:\n" +
		fmt.Sprintf("- Общее состояние: %s\n", status) +
		fmt.Sprintf("- Redis: %s", redisStatus)
	h.reply(ctx, msg, text)
}
