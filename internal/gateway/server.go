// Package gateway exposes the ops HTTP surface: health/status endpoints,
// the dispatch journal, the inbound webhook for bridge deployments that
// push over HTTP instead of WebSocket, and a live event stream.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/config"
	"github.com/replygate/replygate/internal/orchestrator"
	"github.com/replygate/replygate/internal/store"
)

// ChannelStatus reports the running state of registered channels.
type ChannelStatus interface {
	Status() map[string]bool
}

// Server is the ops HTTP server.
type Server struct {
	cfg      config.GatewayConfig
	bus      *bus.MessageBus
	events   bus.EventPublisher
	orch     *orchestrator.Orchestrator
	channels ChannelStatus
	journal  store.Journal // optional, nil disables /journal

	limiter   *webhookRateLimiter
	startedAt time.Time

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the ops server.
func NewServer(cfg config.GatewayConfig, msgBus *bus.MessageBus, events bus.EventPublisher, orch *orchestrator.Orchestrator, channels ChannelStatus, journal store.Journal) *Server {
	return &Server{
		cfg:       cfg,
		bus:       msgBus,
		events:    events,
		orch:      orch,
		channels:  channels,
		journal:   journal,
		limiter:   newWebhookRateLimiter(),
		startedAt: time.Now(),
	}
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/journal", s.withAuth(s.handleJournal))
	mux.HandleFunc("/webhook/whatsapp", s.handleWebhook)
	mux.HandleFunc("/ws", s.handleEventStream)

	s.mux = mux
	return mux
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// withAuth gates a handler behind the gateway token when one is configured.
// Accepts "Authorization: Bearer <token>" or a "token" query parameter.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.cfg.Token {
		return true
	}
	return r.URL.Query().Get("token") == s.cfg.Token
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.orch.Snapshot()

	resp := map[string]interface{}{
		"contacts":  snap.Contacts,
		"pending":   snap.Pending,
		"in_flight": snap.InFlight,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.channels != nil {
		resp["channels"] = s.channels.Status()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("journal query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal query failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// webhookBody is the bridge's inbound DM notification.
type webhookBody struct {
	ChatJID    string `json:"chat_jid"`
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
	FromMe     bool   `json:"from_me"`
}

// handleWebhook accepts DM notifications pushed by a WhatsApp bridge over
// HTTP. The response reports only transport-level acceptance; the guard
// clauses decide asynchronously whether a reply cycle starts.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if !s.limiter.Allow(remoteIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}

	var body webhookBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if body.ChatJID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat_jid required"})
		return
	}

	// Group chats are rejected here with an explicit reason so the bridge
	// can stop pushing them; everything else goes through the guard.
	chatKind := bus.ChatDirect
	if strings.HasSuffix(body.ChatJID, "@g.us") {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "not_dm"})
		return
	}

	receivedAt := time.Now()
	if body.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, body.Timestamp); err == nil {
			receivedAt = t
		}
	}

	senderName := body.SenderName
	if senderName == "" {
		senderName = body.Sender
	}

	s.bus.PublishInbound(bus.InboundEvent{
		Channel:    "whatsapp",
		PartnerID:  body.ChatJID,
		ChatKind:   chatKind,
		SelfSent:   body.FromMe,
		Content:    body.Content,
		SenderName: senderName,
		ReceivedAt: receivedAt,
		Metadata:   map[string]string{"sender_jid": body.Sender},
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
