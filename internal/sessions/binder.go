package sessions

import (
	"sync"
	"time"
)

// Binding records one partner → session mapping.
type Binding struct {
	Channel   string    `json:"channel"`
	PartnerID string    `json:"partner_id"`
	Key       string    `json:"key"`
	Created   time.Time `json:"created"`
}

// Binder maps partner identities to session keys for the process lifetime.
// Idempotent and safe under concurrent first contact: two racing callers for
// the same partner both observe the single created binding.
type Binder struct {
	mu       sync.RWMutex
	bindings map[string]*Binding // channel+"/"+partnerID → binding
}

// NewBinder creates an empty Binder.
func NewBinder() *Binder {
	return &Binder{bindings: make(map[string]*Binding)}
}

// GetOrCreate returns the session key bound to a partner, provisioning it
// on first contact.
func (b *Binder) GetOrCreate(channel, partnerID string) string {
	mapKey := channel + "/" + partnerID

	b.mu.RLock()
	if bd, ok := b.bindings[mapKey]; ok {
		b.mu.RUnlock()
		return bd.Key
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-check: another caller may have won the race.
	if bd, ok := b.bindings[mapKey]; ok {
		return bd.Key
	}

	bd := &Binding{
		Channel:   channel,
		PartnerID: partnerID,
		Key:       BuildKey(channel, partnerID),
		Created:   time.Now(),
	}
	b.bindings[mapKey] = bd
	return bd.Key
}

// Len returns the number of bound partners.
func (b *Binder) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bindings)
}

// List returns all bindings.
func (b *Binder) List() []Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Binding, 0, len(b.bindings))
	for _, bd := range b.bindings {
		out = append(out, *bd)
	}
	return out
}
