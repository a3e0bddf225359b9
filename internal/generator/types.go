// Package generator turns a batched conversation turn into reply text.
// It keeps an in-memory history per session so the LLM retains context
// across reply cycles; the orchestrator guarantees it is never invoked
// concurrently for the same session.
package generator

import "context"

// Request is the input for one reply generation.
type Request struct {
	SessionKey  string // stable per-partner session identifier
	Channel     string // originating channel ("whatsapp", "telegram", ...)
	PartnerID   string
	PartnerName string
	Turn        string // the combined user turn (batched messages, arrival order)
}

// Generator produces reply text for a batched turn or fails.
type Generator interface {
	GenerateReply(ctx context.Context, req Request) (string, error)
}

// Message is one conversation message in provider wire shape.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is the input for a provider Chat call.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the provider's result.
type ChatResponse struct {
	Content      string
	FinishReason string
}

// Provider is a minimal LLM chat client.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	DefaultModel() string
}
