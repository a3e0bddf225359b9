package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/replygate/replygate/internal/config"
)

const defaultHistoryLimit = 40 // messages kept per session (20 exchanges)

// Engine implements Generator on top of a Provider, with per-session
// conversation history.
type Engine struct {
	provider     Provider
	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string
	historyLimit int

	mu        sync.Mutex
	histories map[string][]Message
}

// NewEngine builds an Engine from the generator config.
func NewEngine(provider Provider, cfg config.GeneratorConfig) *Engine {
	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	limit := cfg.HistoryLimit * 2 // config counts exchanges, history counts messages
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt(cfg.OwnerName)
	}

	return &Engine{
		provider:     provider,
		model:        model,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: prompt,
		historyLimit: limit,
		histories:    make(map[string][]Message),
	}
}

// GenerateReply builds the LLM request from the session history plus the
// combined turn, calls the provider, and records the exchange on success.
func (e *Engine) GenerateReply(ctx context.Context, req Request) (string, error) {
	e.mu.Lock()
	history := make([]Message, len(e.histories[req.SessionKey]))
	copy(history, e.histories[req.SessionKey])
	e.mu.Unlock()

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: e.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: req.Turn})

	resp, err := e.provider.Chat(ctx, ChatRequest{
		Messages:    messages,
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("generate reply: provider %s returned empty content", e.provider.Name())
	}

	e.appendExchange(req.SessionKey, req.Turn, text)

	slog.Debug("reply generated",
		"session", req.SessionKey,
		"provider", e.provider.Name(),
		"model", e.model,
		"reply_len", len(text),
	)
	return text, nil
}

// appendExchange records a user turn and the assistant reply, trimming the
// oldest messages once the session exceeds the history limit.
func (e *Engine) appendExchange(sessionKey, turn, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := append(e.histories[sessionKey],
		Message{Role: "user", Content: turn},
		Message{Role: "assistant", Content: reply},
	)
	if len(h) > e.historyLimit {
		h = h[len(h)-e.historyLimit:]
	}
	e.histories[sessionKey] = h
}

// HistoryLen returns the stored message count for a session.
func (e *Engine) HistoryLen(sessionKey string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.histories[sessionKey])
}

func defaultSystemPrompt(ownerName string) string {
	owner := ownerName
	if owner == "" {
		owner = "the account owner"
	}
	return fmt.Sprintf(
		"You are %s's personal messaging assistant. You read incoming messages "+
			"addressed to %s and write the reply that will be sent back from their "+
			"account.\n\n"+
			"Guidelines:\n"+
			"- Reply in the same language the sender used.\n"+
			"- Keep replies short and natural, like a chat message.\n"+
			"- Never claim to be %s; if asked, say you are their assistant.\n"+
			"- If the messages need a decision only %s can make, say you'll pass it on.\n"+
			"- Output only the reply text, nothing else.",
		owner, owner, owner, owner,
	)
}

// NewProvider builds the configured provider implementation.
func NewProvider(cfg config.GeneratorConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generator: anthropic API key is required (REPLYGATE_GENERATOR_API_KEY)")
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generator: openai API key is required (REPLYGATE_GENERATOR_API_KEY)")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("generator: unknown provider %q", cfg.Provider)
	}
}
