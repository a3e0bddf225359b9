package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	b := New()

	want := InboundEvent{Channel: "whatsapp", PartnerID: "p1", Content: "hi"}
	b.PublishInbound(want)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("ConsumeInbound returned not ok")
	}
	if got.Channel != want.Channel || got.PartnerID != want.PartnerID || got.Content != want.Content {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestConsumeInboundCancelled(t *testing.T) {
	b := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Error("expected not ok on cancelled context")
	}
}

func TestPublishInboundDropsWhenFull(t *testing.T) {
	b := New()

	// Overfill the queue; the overflow must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < inboundBuffer+10; i++ {
			b.PublishInbound(InboundEvent{PartnerID: "p1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishInbound blocked on a full queue")
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	b := New()

	got1 := make(chan Event, 1)
	got2 := make(chan Event, 1)
	b.Subscribe("c1", func(ev Event) { got1 <- ev })
	b.Subscribe("c2", func(ev Event) { got2 <- ev })

	b.Broadcast(Event{Name: "reply.dispatched"})

	for _, ch := range []chan Event{got1, got2} {
		select {
		case ev := <-ch:
			if ev.Name != "reply.dispatched" {
				t.Errorf("got event %q", ev.Name)
			}
		default:
			t.Error("subscriber did not receive event")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	got := make(chan Event, 1)
	b.Subscribe("c1", func(ev Event) { got <- ev })
	b.Unsubscribe("c1")

	b.Broadcast(Event{Name: "reply.queued"})

	select {
	case <-got:
		t.Error("unsubscribed handler still received event")
	default:
	}
}
