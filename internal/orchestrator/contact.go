package orchestrator

import (
	"sync"
	"time"
)

// pendingMessage is one admitted message waiting in a contact's batch.
type pendingMessage struct {
	Content    string
	SenderName string
	ReceivedAt time.Time
}

// contact holds all mutable per-partner state. Everything below mu is
// guarded by it; contacts never share locks, so slow work for one partner
// cannot block another.
type contact struct {
	channel   string
	partnerID string

	mu            sync.Mutex
	displayName   string
	pending       []pendingMessage
	timer         *time.Timer // the single coalesced debounce timer, nil when idle
	deadline      time.Time   // when the pending batch becomes eligible for dispatch
	cooldownUntil time.Time   // no dispatch before this after a sent reply
	inFlight      bool        // a dispatch cycle is executing
}

// getContact returns the state record for a partner, creating it on first
// contact. Creation is single-winner under the registry lock.
func (o *Orchestrator) getContact(channel, partnerID string) *contact {
	key := channel + "/" + partnerID

	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.contacts[key]; ok {
		return c
	}
	c := &contact{channel: channel, partnerID: partnerID}
	o.contacts[key] = c
	return c
}

// Status is a point-in-time snapshot of orchestrator load.
type Status struct {
	Contacts int `json:"contacts"`
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
}

// Snapshot reports contact, pending-message, and in-flight dispatch counts.
func (o *Orchestrator) Snapshot() Status {
	o.mu.Lock()
	contacts := make([]*contact, 0, len(o.contacts))
	for _, c := range o.contacts {
		contacts = append(contacts, c)
	}
	o.mu.Unlock()

	st := Status{Contacts: len(contacts)}
	for _, c := range contacts {
		c.mu.Lock()
		st.Pending += len(c.pending)
		if c.inFlight {
			st.InFlight++
		}
		c.mu.Unlock()
	}
	return st
}
