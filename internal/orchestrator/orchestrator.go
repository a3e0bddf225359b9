// Package orchestrator decides, per conversation partner, when a batch of
// incoming messages triggers exactly one reply cycle.
//
// Flow: inbound event → guard clauses → per-contact batch + coalesced
// debounce timer → (after the quiet period) dispatch → reply generator →
// channel send → cooldown. The cooldown plus the self-sent guard are the
// two defenses against the bot's own traffic re-triggering itself.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/generator"
	"github.com/replygate/replygate/internal/store"
)

// ReplySender delivers a generated reply to a channel.
type ReplySender interface {
	SendReply(ctx context.Context, channel, partnerID, text string) error
}

// SessionBinder maps a partner to its stable reply-generator session key.
type SessionBinder interface {
	GetOrCreate(channel, partnerID string) string
}

// Orchestrator owns all per-contact state and the debounce/cooldown logic.
type Orchestrator struct {
	opts    atomic.Pointer[Options]
	gen     generator.Generator
	sender  ReplySender
	binder  SessionBinder
	journal store.Journal      // optional, nil = no journal
	events  bus.EventPublisher // optional, nil = no broadcast
	tracer  trace.Tracer

	mu       sync.Mutex
	contacts map[string]*contact

	dispatches sync.WaitGroup // in-flight dispatch cycles, for Close
}

// Config wires an Orchestrator.
type Config struct {
	Options   Options
	Generator generator.Generator
	Sender    ReplySender
	Binder    SessionBinder
	Journal   store.Journal      // optional
	Events    bus.EventPublisher // optional
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		gen:      cfg.Generator,
		sender:   cfg.Sender,
		binder:   cfg.Binder,
		journal:  cfg.Journal,
		events:   cfg.Events,
		tracer:   otel.Tracer("replygate/orchestrator"),
		contacts: make(map[string]*contact),
	}
	opts := cfg.Options
	o.opts.Store(&opts)
	return o
}

// SetOptions swaps in new guard/timing options (config hot reload).
// Already-armed timers keep their deadlines; new admissions use the
// new values.
func (o *Orchestrator) SetOptions(opts Options) {
	o.opts.Store(&opts)
	slog.Info("orchestrator options updated",
		"enabled", opts.Enabled,
		"debounce", opts.Debounce,
		"cooldown", opts.Cooldown,
		"ignored", len(opts.Ignore),
	)
}

func (o *Orchestrator) options() Options {
	return *o.opts.Load()
}

// OnInbound handles one inbound event: guard clauses, batch append, and
// debounce (re)arm. Safe for concurrent calls across and within contacts.
func (o *Orchestrator) OnInbound(ev bus.InboundEvent) {
	opts := o.options()

	if reason := rejectReason(ev, opts); reason != "" {
		slog.Debug("guard rejected event",
			"channel", ev.Channel,
			"partner_id", ev.PartnerID,
			"reason", reason,
		)
		o.emit(bus.Event{Name: "event.rejected", Payload: map[string]string{
			"channel":    ev.Channel,
			"partner_id": ev.PartnerID,
			"reason":     reason,
		}})
		return
	}

	c := o.getContact(ev.Channel, ev.PartnerID)

	c.mu.Lock()
	if ev.SenderName != "" {
		c.displayName = ev.SenderName
	}
	receivedAt := ev.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	c.pending = append(c.pending, pendingMessage{
		Content:    ev.Content,
		SenderName: ev.SenderName,
		ReceivedAt: receivedAt,
	})

	// Coalesced rearm: the single timer always points at the newest
	// deadline, and the cooldown can only push it later, never cancel.
	now := time.Now()
	deadline := now.Add(opts.Debounce)
	if c.cooldownUntil.After(deadline) {
		deadline = c.cooldownUntil
	}
	c.deadline = deadline
	o.armLocked(c, deadline.Sub(now))
	pendingCount := len(c.pending)
	c.mu.Unlock()

	slog.Debug("message queued",
		"channel", ev.Channel,
		"partner_id", ev.PartnerID,
		"pending", pendingCount,
		"fire_in", time.Until(deadline).Round(time.Millisecond),
	)
	o.emit(bus.Event{Name: "reply.queued", Payload: map[string]interface{}{
		"channel":    ev.Channel,
		"partner_id": ev.PartnerID,
		"pending":    pendingCount,
	}})
}

// armLocked replaces the contact's debounce timer. Caller holds c.mu.
// A superseded timer that already fired will no-op in fire() because the
// stored deadline moved past its scheduled time.
func (o *Orchestrator) armLocked(c *contact, d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, func() { o.fire(c) })
}

// fire runs when a debounce timer elapses. It re-validates under the
// contact lock: a newer timer, an active cooldown, an in-flight dispatch,
// or an empty batch each make it a no-op.
func (o *Orchestrator) fire(c *contact) {
	c.mu.Lock()

	now := time.Now()
	if now.Before(c.deadline) {
		// Superseded: a rearm raced with this firing.
		c.mu.Unlock()
		return
	}
	if now.Before(c.cooldownUntil) {
		// Cooldown armed after this timer was scheduled. Push, do not drop.
		c.deadline = c.cooldownUntil
		o.armLocked(c, time.Until(c.cooldownUntil))
		c.mu.Unlock()
		return
	}
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		// A dispatch is running; its completion rearms for what queued up.
		c.mu.Unlock()
		return
	}

	// Atomic drain-and-clear: from here the batch is owned by this cycle,
	// and any message admitted later starts the next batch.
	batch := c.pending
	c.pending = nil
	c.inFlight = true
	c.timer = nil
	displayName := c.displayName
	c.mu.Unlock()

	o.dispatches.Add(1)
	defer o.dispatches.Done()
	o.dispatch(context.Background(), c, displayName, batch)
}

// finishDispatch restores the contact to an idle, eligible state and rearms
// the debounce timer if messages arrived during the dispatch.
func (o *Orchestrator) finishDispatch(c *contact, armCooldown bool) {
	opts := o.options()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight {
		// The concurrency contract says only the owning cycle clears this.
		slog.Error("invariant violation: in_flight cleared during dispatch",
			"channel", c.channel, "partner_id", c.partnerID)
	}

	now := time.Now()
	if armCooldown {
		c.cooldownUntil = now.Add(opts.Cooldown)
	}
	c.inFlight = false

	if len(c.pending) > 0 {
		deadline := c.deadline
		if deadline.Before(now) {
			deadline = now
		}
		if c.cooldownUntil.After(deadline) {
			deadline = c.cooldownUntil
		}
		c.deadline = deadline
		o.armLocked(c, time.Until(deadline))
	}
}

// Close waits for in-flight dispatch cycles to finish and stops all timers.
// Messages still pending are dropped with the process.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for _, c := range o.contacts {
		c.mu.Lock()
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.mu.Unlock()
	}
	o.mu.Unlock()

	o.dispatches.Wait()
}

func (o *Orchestrator) emit(ev bus.Event) {
	if o.events != nil {
		o.events.Broadcast(ev)
	}
}
