package gigachat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/korolevna/gigabot/internal/metrics"
	"github.com/korolevna/gigabot/internal/retry"
)

// Message is one entry of the chat request payload
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage holds token counts when the provider reports them
type Usage struct {
	PromptTokens     *int
	CompletionTokens *int
}

// Result is the canonical outcome of one successful chat call
type Result struct {
	Text  string
	Usage Usage
}

// Config holds the chat endpoint settings
type Config struct {
	BaseURL  string
	ChatPath string
	Model    string
}

// Client drives the chat-completion endpoint through the token manager and
// the retry engine.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *TokenManager
	engine *retry.Engine
	logger *slog.Logger
}

// NewClient creates a chat client
func NewClient(cfg Config, httpClient *http.Client, tokens *TokenManager, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tokens: tokens,
		engine: retry.New(retry.DefaultSchedule(), func() {
			metrics.ErrorCount.WithLabelValues("gigachat").Inc()
		}),
		logger: logger,
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Chat sends the assembled message list and returns the parsed reply.
// A 401 from the endpoint invalidates the bearer token and forces a refresh
// before the next attempt; 429 and 5xx are retried on the fixed schedule.
func (c *Client) Chat(ctx context.Context, messages []Message, sessionID string) (*Result, error) {
	payload, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrGateway, err)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.ChatPath

	var result *Result
	err = c.engine.Do(ctx, func(ctx context.Context, attempt int) (retry.Outcome, error) {
		bearer, err := c.tokens.EnsureValid(ctx)
		if err != nil {
			return retry.Fatal, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return retry.Fatal, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if sessionID != "" {
			req.Header.Set("X-Session-ID", sessionID)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.Fatal, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return retry.Fatal, fmt.Errorf("%w: reading response: %v", ErrGateway, err)
		}

		switch retry.ClassifyStatus(resp.StatusCode, true) {
		case retry.Reauth:
			c.logger.Warn("chat request unauthorized", "attempt", attempt)
			if _, rerr := c.tokens.ForceRefresh(ctx, bearer); rerr != nil {
				return retry.Fatal, rerr
			}
			return retry.Reauth, fmt.Errorf("%w: status 401", ErrGateway)
		case retry.Retryable:
			c.logger.Warn("chat request failed, will retry", "status", resp.StatusCode, "attempt", attempt)
			return retry.Retryable, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
		case retry.Fatal:
			return retry.Fatal, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, snippet(body))
		}

		parsed, err := parseChatResponse(body)
		if err != nil {
			return retry.Fatal, err
		}
		result = parsed
		return retry.Success, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddTokens(result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return result, nil
}

type chatResponse struct {
	Choices []struct {
		Message *contentHolder `json:"message"`
		Delta   *contentHolder `json:"delta"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     *int `json:"prompt_tokens"`
		CompletionTokens *int `json:"completion_tokens"`
	} `json:"usage"`
}

type contentHolder struct {
	Content json.RawMessage `json:"content"`
}

func parseChatResponse(body []byte) (*Result, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrGateway, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", ErrGateway)
	}

	holder := parsed.Choices[0].Message
	if holder == nil {
		holder = parsed.Choices[0].Delta
	}
	if holder == nil || len(holder.Content) == 0 {
		return nil, fmt.Errorf("%w: choice has no content", ErrGateway)
	}

	text, err := coerceContent(holder.Content)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: text,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

// coerceContent accepts the two content shapes the provider is known to
// produce: a plain string, or a list of parts where each part is either a
// string or an object with a text field. Anything else is a parse error, not
// a guess.
func coerceContent(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var asParts []json.RawMessage
	if err := json.Unmarshal(raw, &asParts); err != nil {
		return "", fmt.Errorf("%w: unsupported content shape", ErrGateway)
	}

	var sb strings.Builder
	for _, part := range asParts {
		var partString string
		if err := json.Unmarshal(part, &partString); err == nil {
			sb.WriteString(partString)
			continue
		}
		var typed struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(part, &typed); err == nil && typed.Text != nil {
			sb.WriteString(*typed.Text)
			continue
		}
		return "", fmt.Errorf("%w: unsupported content part", ErrGateway)
	}
	return sb.String(), nil
}
