package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/replygate/replygate/internal/config"
)

type scriptedProvider struct {
	reply    string
	err      error
	requests []ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &ChatResponse{Content: p.reply, FinishReason: "stop"}, nil
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "scripted-1" }

func TestGenerateReplyBuildsMessages(t *testing.T) {
	p := &scriptedProvider{reply: "on my way"}
	e := NewEngine(p, config.GeneratorConfig{OwnerName: "Duc"})

	got, err := e.GenerateReply(context.Background(), Request{
		SessionKey: "reply:whatsapp:direct:p1",
		Turn:       `Their message: "where are you?"`,
	})
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if got != "on my way" {
		t.Errorf("reply = %q", got)
	}

	req := p.requests[0]
	if req.Model != "scripted-1" {
		t.Errorf("model = %q, want provider default", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("message count = %d, want system + user", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || !strings.Contains(req.Messages[0].Content, "Duc") {
		t.Errorf("system prompt missing owner: %+v", req.Messages[0])
	}
	if req.Messages[1].Role != "user" || !strings.Contains(req.Messages[1].Content, "where are you?") {
		t.Errorf("user turn wrong: %+v", req.Messages[1])
	}
}

func TestGenerateReplyKeepsPerSessionHistory(t *testing.T) {
	p := &scriptedProvider{reply: "ok"}
	e := NewEngine(p, config.GeneratorConfig{})

	ctx := context.Background()
	if _, err := e.GenerateReply(ctx, Request{SessionKey: "s1", Turn: "first"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GenerateReply(ctx, Request{SessionKey: "s1", Turn: "second"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GenerateReply(ctx, Request{SessionKey: "s2", Turn: "other"}); err != nil {
		t.Fatal(err)
	}

	// Second s1 call: system + prior exchange + new turn.
	second := p.requests[1]
	if len(second.Messages) != 4 {
		t.Fatalf("message count = %d, want 4", len(second.Messages))
	}
	if second.Messages[1].Content != "first" || second.Messages[2].Content != "ok" {
		t.Errorf("history not replayed: %+v", second.Messages)
	}

	// s2 starts clean.
	if len(p.requests[2].Messages) != 2 {
		t.Errorf("sessions share history: %d messages", len(p.requests[2].Messages))
	}

	if e.HistoryLen("s1") != 4 || e.HistoryLen("s2") != 2 {
		t.Errorf("history lengths: s1=%d s2=%d", e.HistoryLen("s1"), e.HistoryLen("s2"))
	}
}

func TestGenerateReplyTrimsHistory(t *testing.T) {
	p := &scriptedProvider{reply: "ok"}
	e := NewEngine(p, config.GeneratorConfig{HistoryLimit: 2}) // 2 exchanges = 4 messages

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := e.GenerateReply(ctx, Request{SessionKey: "s1", Turn: "turn"}); err != nil {
			t.Fatal(err)
		}
	}

	if got := e.HistoryLen("s1"); got != 4 {
		t.Errorf("history len = %d, want trimmed to 4", got)
	}
}

func TestGenerateReplyProviderError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("rate limited")}
	e := NewEngine(p, config.GeneratorConfig{})

	_, err := e.GenerateReply(context.Background(), Request{SessionKey: "s1", Turn: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	// Failed exchanges are not recorded.
	if got := e.HistoryLen("s1"); got != 0 {
		t.Errorf("history len = %d after failure, want 0", got)
	}
}

func TestGenerateReplyEmptyContent(t *testing.T) {
	p := &scriptedProvider{reply: "   \n"}
	e := NewEngine(p, config.GeneratorConfig{})

	if _, err := e.GenerateReply(context.Background(), Request{SessionKey: "s1", Turn: "hi"}); err == nil {
		t.Fatal("expected error on empty provider content")
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(config.GeneratorConfig{Provider: "anthropic"}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewProvider(config.GeneratorConfig{Provider: "anthropic", APIKey: "sk-x"}); err != nil {
		t.Errorf("anthropic: %v", err)
	}
	if _, err := NewProvider(config.GeneratorConfig{Provider: "openai", APIKey: "sk-x"}); err != nil {
		t.Errorf("openai: %v", err)
	}
	if _, err := NewProvider(config.GeneratorConfig{Provider: "llamacpp", APIKey: "x"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestSystemPromptCustomOverride(t *testing.T) {
	p := &scriptedProvider{reply: "ok"}
	e := NewEngine(p, config.GeneratorConfig{SystemPrompt: "Always answer in haiku."})

	if _, err := e.GenerateReply(context.Background(), Request{SessionKey: "s1", Turn: "hi"}); err != nil {
		t.Fatal(err)
	}
	if got := p.requests[0].Messages[0].Content; got != "Always answer in haiku." {
		t.Errorf("system prompt = %q", got)
	}
}
