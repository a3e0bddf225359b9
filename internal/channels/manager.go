package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns the registered channels, handling their lifecycle and
// routing outbound replies to the right adapter. It satisfies the
// orchestrator's ReplySender.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewManager creates an empty channel manager.
// Channels are registered externally via Register.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// Register adds a channel to the manager.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll starts all registered channels. A channel that fails to start
// is logged and skipped so the rest keep running.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	for name, ch := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := ch.Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
		}
	}

	return nil
}

// StopAll gracefully stops all channels.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		slog.Info("stopping channel", "channel", name)
		if err := ch.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}

	return nil
}

// SendReply delivers a generated reply to a partner on the named channel.
func (m *Manager) SendReply(ctx context.Context, channel, partnerID, text string) error {
	m.mu.RLock()
	ch, ok := m.channels[channel]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("channel %s not registered", channel)
	}

	return ch.Send(ctx, partnerID, text)
}

// Status returns the running state of every registered channel.
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		status[name] = ch.IsRunning()
	}
	return status
}
