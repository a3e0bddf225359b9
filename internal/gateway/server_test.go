package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/config"
	"github.com/replygate/replygate/internal/generator"
	"github.com/replygate/replygate/internal/orchestrator"
	"github.com/replygate/replygate/internal/sessions"
	"github.com/replygate/replygate/internal/store"
)

type stubGenerator struct{}

func (stubGenerator) GenerateReply(context.Context, generator.Request) (string, error) {
	return "ok", nil
}

type stubSender struct{}

func (stubSender) SendReply(context.Context, string, string, string) error { return nil }

type stubChannels struct{ status map[string]bool }

func (s stubChannels) Status() map[string]bool { return s.status }

type stubJournal struct {
	records []store.DispatchRecord
}

func (j *stubJournal) Record(_ context.Context, rec store.DispatchRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func (j *stubJournal) Recent(_ context.Context, limit int) ([]store.DispatchRecord, error) {
	if limit > len(j.records) {
		limit = len(j.records)
	}
	return j.records[:limit], nil
}

func (j *stubJournal) Close() error { return nil }

func newTestServer(t *testing.T, cfg config.GatewayConfig, journal store.Journal) (*Server, *bus.MessageBus) {
	t.Helper()

	msgBus := bus.New()
	orch := orchestrator.New(orchestrator.Config{
		Options: orchestrator.Options{
			Enabled:  true,
			Debounce: time.Second,
			Cooldown: time.Second,
		},
		Generator: stubGenerator{},
		Sender:    stubSender{},
		Binder:    sessions.NewBinder(),
	})
	t.Cleanup(orch.Close)

	return NewServer(cfg, msgBus, msgBus, orch, stubChannels{status: map[string]bool{"whatsapp": true}}, journal), msgBus
}

func do(t *testing.T, s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for k, v := range header {
		r.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, config.GatewayConfig{}, nil)

	w := do(t, s, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestStatusRequiresToken(t *testing.T) {
	s, _ := newTestServer(t, config.GatewayConfig{Token: "sekrit"}, nil)

	tests := []struct {
		name   string
		target string
		header map[string]string
		want   int
	}{
		{"no token", "/status", nil, http.StatusUnauthorized},
		{"wrong bearer", "/status", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"bearer token", "/status", map[string]string{"Authorization": "Bearer sekrit"}, http.StatusOK},
		{"query token", "/status?token=sekrit", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, tt.target, "", tt.header)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestStatusReportsChannels(t *testing.T) {
	s, _ := newTestServer(t, config.GatewayConfig{}, nil)

	w := do(t, s, http.MethodGet, "/status", "", nil)
	body := decodeBody(t, w)

	chs, ok := body["channels"].(map[string]interface{})
	if !ok {
		t.Fatalf("channels missing: %v", body)
	}
	if chs["whatsapp"] != true {
		t.Errorf("channels = %v", chs)
	}
	if body["in_flight"] != float64(0) {
		t.Errorf("in_flight = %v", body["in_flight"])
	}
}

func TestJournalDisabled(t *testing.T) {
	s, _ := newTestServer(t, config.GatewayConfig{}, nil)

	if w := do(t, s, http.MethodGet, "/journal", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestJournalLimit(t *testing.T) {
	j := &stubJournal{}
	for i := 0; i < 5; i++ {
		j.records = append(j.records, store.DispatchRecord{Channel: "whatsapp", Status: store.StatusOK})
	}
	s, _ := newTestServer(t, config.GatewayConfig{}, j)

	w := do(t, s, http.MethodGet, "/journal?limit=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	records, ok := decodeBody(t, w)["records"].([]interface{})
	if !ok || len(records) != 2 {
		t.Errorf("records = %v", records)
	}
}

func TestWebhookQueuesDirectMessage(t *testing.T) {
	s, msgBus := newTestServer(t, config.GatewayConfig{}, nil)

	w := do(t, s, http.MethodPost, "/webhook/whatsapp",
		`{"chat_jid":"918408878186@s.whatsapp.net","sender":"918408878186@s.whatsapp.net","sender_name":"Alice","content":"are you free?"}`,
		nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["status"]; got != "queued" {
		t.Errorf("status = %v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := msgBus.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("webhook did not publish an inbound event")
	}
	if ev.Channel != "whatsapp" || ev.PartnerID != "918408878186@s.whatsapp.net" {
		t.Errorf("event = %+v", ev)
	}
	if ev.SenderName != "Alice" || ev.Content != "are you free?" {
		t.Errorf("event = %+v", ev)
	}
	if ev.ChatKind != bus.ChatDirect {
		t.Errorf("chat kind = %q", ev.ChatKind)
	}
}

func TestWebhookSkipsGroupChat(t *testing.T) {
	s, msgBus := newTestServer(t, config.GatewayConfig{}, nil)

	w := do(t, s, http.MethodPost, "/webhook/whatsapp",
		`{"chat_jid":"12036304@g.us","content":"group noise"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "skipped" || body["reason"] != "not_dm" {
		t.Errorf("body = %v", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, ok := msgBus.ConsumeInbound(ctx); ok {
		t.Error("group chat was published to the bus")
	}
}

func TestWebhookValidation(t *testing.T) {
	s, _ := newTestServer(t, config.GatewayConfig{Token: "sekrit"}, nil)

	tests := []struct {
		name   string
		method string
		body   string
		header map[string]string
		want   int
	}{
		{"get rejected", http.MethodGet, "", map[string]string{"Authorization": "Bearer sekrit"}, http.StatusMethodNotAllowed},
		{"unauthorized", http.MethodPost, `{"chat_jid":"x"}`, nil, http.StatusUnauthorized},
		{"bad json", http.MethodPost, `{nope`, map[string]string{"Authorization": "Bearer sekrit"}, http.StatusBadRequest},
		{"missing chat_jid", http.MethodPost, `{"content":"hi"}`, map[string]string{"Authorization": "Bearer sekrit"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, "/webhook/whatsapp", tt.body, tt.header)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestWebhookTimestampParsed(t *testing.T) {
	s, msgBus := newTestServer(t, config.GatewayConfig{}, nil)

	do(t, s, http.MethodPost, "/webhook/whatsapp",
		`{"chat_jid":"p@s.whatsapp.net","content":"hi","timestamp":"2026-02-14T11:40:00Z"}`, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := msgBus.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("no event")
	}
	want := time.Date(2026, 2, 14, 11, 40, 0, 0, time.UTC)
	if !ev.ReceivedAt.Equal(want) {
		t.Errorf("received_at = %v, want %v", ev.ReceivedAt, want)
	}
}
