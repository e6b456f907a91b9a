package prompt

import (
	"sync"

	"github.com/korolevna/gigabot/internal/config"
	"github.com/korolevna/gigabot/internal/gigachat"
	"github.com/korolevna/gigabot/internal/history"
)

const basePrompt = "Ты — дружелюбный помощник для Юлии (мамы Маши). Объясняй по делу простыми словами, " +
	"но не обрезай полезные подробности: если человек просит рецепт или инструкцию — дай полный, понятный план с шагами, " +
	"ингредиентами и временными подсказками. Если вопрос короткий и не требует деталей, отвечай кратко. " +
	"Если вопрос неполный — уточни одно, самое важное, и дождись ответа; не задавай несколько уточнений подряд. " +
	"Никогда не обещай того, чего не можешь сделать. Если не уверена — честно скажи и предложи безопасный совет. " +
	"Никакой токсичности и категоричности в медицине и праве. Пиши по-русски, уважительно и тепло, " +
	"допускается один-два дружелюбных эмодзи в ответе, если они уместны."

const conciseSuffix = " Если задан режим concise — держи ответы ясными и короче обычного, " +
	"без дополнительных уточнений, если пользователь прямо об этом не просит."

// Manager holds the current bot mode and assembles the message list sent to
// the model. Safe for concurrent use.
type Manager struct {
	mu   sync.RWMutex
	mode string
}

// NewManager creates a prompt manager starting in the given mode
func NewManager(defaultMode string) *Manager {
	return &Manager{mode: defaultMode}
}

// Mode returns the current bot mode
func (m *Manager) Mode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetMode switches the bot mode
func (m *Manager) SetMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// SystemPrompt returns the system turn text for the current mode
func (m *Manager) SystemPrompt() string {
	if m.Mode() == config.BotModeConcise {
		return basePrompt + conciseSuffix
	}
	return basePrompt
}

// BuildMessages assembles the outbound message list: one system turn, the
// loaded history, then the new user message.
func (m *Manager) BuildMessages(window []history.Turn, userMessage string) []gigachat.Message {
	messages := make([]gigachat.Message, 0, len(window)+2)
	messages = append(messages, gigachat.Message{Role: history.RoleSystem, Content: m.SystemPrompt()})
	for _, turn := range window {
		messages = append(messages, gigachat.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, gigachat.Message{Role: history.RoleUser, Content: userMessage})
	return messages
}
