package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/generator"
	"github.com/replygate/replygate/internal/store"
)

// dispatch runs one reply cycle for a drained batch: generate, send,
// journal, cooldown. Generation failures skip both the send and the
// cooldown; delivery failures still arm the cooldown because the partner
// may have received the message despite the error.
func (o *Orchestrator) dispatch(ctx context.Context, c *contact, displayName string, batch []pendingMessage) {
	ctx, span := o.tracer.Start(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("channel", c.channel),
		attribute.String("partner_id", c.partnerID),
		attribute.Int("batch_size", len(batch)),
	)

	started := time.Now()
	sessionKey := o.binder.GetOrCreate(c.channel, c.partnerID)
	turn := buildTurn(batch)

	slog.Info("dispatching reply",
		"channel", c.channel,
		"partner_id", c.partnerID,
		"session", sessionKey,
		"batch_size", len(batch),
	)

	genCtx, genSpan := o.tracer.Start(ctx, "generate")
	reply, err := o.gen.GenerateReply(genCtx, generator.Request{
		SessionKey:  sessionKey,
		Channel:     c.channel,
		PartnerID:   c.partnerID,
		PartnerName: displayName,
		Turn:        turn,
	})
	genSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		slog.Warn("reply generation failed",
			"channel", c.channel,
			"partner_id", c.partnerID,
			"batch_size", len(batch),
			"error", err,
		)
		o.record(ctx, c, sessionKey, len(batch), store.StatusGenerationFailed, "", err, started)
		o.emitFailed(c, store.StatusGenerationFailed)
		// No cooldown: nothing was sent, so nothing can echo back.
		o.finishDispatch(c, false)
		return
	}

	sendCtx, sendSpan := o.tracer.Start(ctx, "send")
	err = o.sender.SendReply(sendCtx, c.channel, c.partnerID, reply)
	sendSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		slog.Error("reply delivery failed",
			"channel", c.channel,
			"partner_id", c.partnerID,
			"error", err,
		)
		o.record(ctx, c, sessionKey, len(batch), store.StatusDeliveryFailed, reply, err, started)
		o.emitFailed(c, store.StatusDeliveryFailed)
		// Cooldown anyway: the channel may have delivered despite the error.
		o.finishDispatch(c, true)
		return
	}

	slog.Info("reply sent",
		"channel", c.channel,
		"partner_id", c.partnerID,
		"batch_size", len(batch),
		"latency", time.Since(started).Round(time.Millisecond),
	)
	o.record(ctx, c, sessionKey, len(batch), store.StatusOK, reply, nil, started)
	o.emit(bus.Event{Name: "reply.dispatched", Payload: map[string]interface{}{
		"channel":    c.channel,
		"partner_id": c.partnerID,
		"batch_size": len(batch),
	}})
	o.finishDispatch(c, true)
}

func (o *Orchestrator) emitFailed(c *contact, status string) {
	o.emit(bus.Event{Name: "reply.failed", Payload: map[string]string{
		"channel":    c.channel,
		"partner_id": c.partnerID,
		"status":     status,
	}})
}

func (o *Orchestrator) record(ctx context.Context, c *contact, sessionKey string, batchSize int, status, reply string, dispatchErr error, started time.Time) {
	if o.journal == nil {
		return
	}
	rec := store.DispatchRecord{
		Channel:      c.channel,
		PartnerID:    c.partnerID,
		SessionKey:   sessionKey,
		BatchSize:    batchSize,
		Status:       status,
		ReplyPreview: previewOf(reply),
		LatencyMs:    time.Since(started).Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if dispatchErr != nil {
		rec.Error = dispatchErr.Error()
	}
	if err := o.journal.Record(ctx, rec); err != nil {
		slog.Warn("journal write failed", "error", err)
	}
}

const previewLimit = 200

func previewOf(reply string) string {
	if len(reply) <= previewLimit {
		return reply
	}
	return reply[:previewLimit]
}

// buildTurn flattens a batch into a single user turn. One message passes
// through nearly verbatim; several become an oldest-first transcript so
// the generator answers the conversation, not just the last line.
func buildTurn(batch []pendingMessage) string {
	if len(batch) == 1 {
		return fmt.Sprintf("Their message: %q", batch[0].Content)
	}

	var b strings.Builder
	b.WriteString("Their messages (oldest first):\n")
	for _, m := range batch {
		fmt.Fprintf(&b, "[%s] %s\n", m.ReceivedAt.Format("15:04:05"), m.Content)
	}
	b.WriteString("\nReply to the conversation above as a whole.")
	return b.String()
}
