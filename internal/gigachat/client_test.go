package gigachat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	client     *Client
	tokenCalls *atomic.Int64
	chatCalls  *atomic.Int64
}

// newChatFixture wires a client against fake token and chat endpoints.
// chatHandler decides the chat endpoint's behavior per call.
func newChatFixture(t *testing.T, chatHandler func(call int64, w http.ResponseWriter, r *http.Request)) *chatFixture {
	t.Helper()
	var tokenCalls, chatCalls atomic.Int64

	tokenSrv := newTokenServer(t, &tokenCalls, 3600)
	t.Cleanup(tokenSrv.Close)

	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatHandler(chatCalls.Add(1), w, r)
	}))
	t.Cleanup(chatSrv.Close)

	tokens := newTestManager(tokenSrv, time.Minute, 0)
	client := NewClient(Config{
		BaseURL:  chatSrv.URL,
		ChatPath: "/chat/completions",
		Model:    "GigaChat",
	}, chatSrv.Client(), tokens, slog.Default())

	return &chatFixture{client: client, tokenCalls: &tokenCalls, chatCalls: &chatCalls}
}

func writeChatJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestChatSuccess(t *testing.T) {
	f := newChatFixture(t, func(_ int64, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "sess-1", r.Header.Get("X-Session-ID"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "GigaChat", req.Model)
		require.Len(t, req.Messages, 2)

		writeChatJSON(w, `{"choices":[{"message":{"content":"Привет"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
	})

	result, err := f.client.Chat(context.Background(), []Message{
		{Role: "system", Content: "Ты помощник"},
		{Role: "user", Content: "Привет!"},
	}, "sess-1")

	require.NoError(t, err)
	assert.Equal(t, "Привет", result.Text)
	require.NotNil(t, result.Usage.PromptTokens)
	assert.Equal(t, 12, *result.Usage.PromptTokens)
	require.NotNil(t, result.Usage.CompletionTokens)
	assert.Equal(t, 3, *result.Usage.CompletionTokens)
}

func TestChatContentParts(t *testing.T) {
	f := newChatFixture(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeChatJSON(w, `{"choices":[{"message":{"content":[{"type":"text","text":"Можно "},"суп",{"text":"!"}]}}]}`)
	})

	result, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "Что приготовить?"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "Можно суп!", result.Text)
}

func TestChatEmptyChoices(t *testing.T) {
	f := newChatFixture(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeChatJSON(w, `{"choices":[]}`)
	})

	_, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "привет"}}, "")
	require.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, int64(1), f.chatCalls.Load())
}

func TestChatUnsupportedContentShape(t *testing.T) {
	f := newChatFixture(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeChatJSON(w, `{"choices":[{"message":{"content":{"unexpected":true}}}]}`)
	})

	_, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "привет"}}, "")
	require.ErrorIs(t, err, ErrGateway)
}

func TestChatUnauthorizedRecovery(t *testing.T) {
	f := newChatFixture(t, func(call int64, w http.ResponseWriter, r *http.Request) {
		if call == 1 {
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		writeChatJSON(w, `{"choices":[{"message":{"content":"снова на связи"}}]}`)
	})

	result, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "привет"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "снова на связи", result.Text)
	assert.Equal(t, int64(2), f.chatCalls.Load())
	// Initial refresh plus exactly one forced refresh.
	assert.Equal(t, int64(2), f.tokenCalls.Load())
}

func TestChatRetryableThenSuccess(t *testing.T) {
	f := newChatFixture(t, func(call int64, w http.ResponseWriter, _ *http.Request) {
		if call == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		writeChatJSON(w, `{"choices":[{"message":{"content":"готово"}}]}`)
	})

	result, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "привет"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "готово", result.Text)
	assert.Equal(t, int64(2), f.chatCalls.Load())
}

func TestChatClientErrorIsFatal(t *testing.T) {
	f := newChatFixture(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "привет"}}, "")
	require.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, int64(1), f.chatCalls.Load())
}

func TestChatExhaustsRetries(t *testing.T) {
	f := newChatFixture(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "привет"}}, "")
	require.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, int64(3), f.chatCalls.Load())
}

func TestChatDeltaFallback(t *testing.T) {
	f := newChatFixture(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeChatJSON(w, `{"choices":[{"delta":{"content":"частичный ответ"}}]}`)
	})

	result, err := f.client.Chat(context.Background(), []Message{{Role: "user", Content: "привет"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "частичный ответ", result.Text)
}
