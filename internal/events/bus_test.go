package events

import (
	"testing"
	"time"

	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/testutil/testlog"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	testlog.Start(t)
	b := NewBus()
	a, unsubA := b.Subscribe()
	c, unsubC := b.Subscribe()
	defer unsubA()
	defer unsubC()

	b.DataReceived("/dev/ttyUSB0", payload.NewBoatData(nil))
	b.LinkLost("/dev/ttyUSB0")

	for _, ch := range []<-chan Event{a, c} {
		first := <-ch
		if first.Type != TypeDataReceived || first.Link != "/dev/ttyUSB0" || first.Data == nil {
			t.Fatalf("unexpected first event: %+v", first)
		}
		if first.Timestamp.IsZero() {
			t.Fatalf("expected timestamp to be filled")
		}
		second := <-ch
		if second.Type != TypeLinkLost || second.Data != nil {
			t.Fatalf("unexpected second event: %+v", second)
		}
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	testlog.Start(t)
	b := NewBus()
	_, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.LinkLost("A")
	}
	if b.Dropped() != 5 {
		t.Fatalf("expected 5 dropped, got %d", b.Dropped())
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	testlog.Start(t)
	b := NewBus()
	ch, unsub := b.Subscribe()
	if b.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Len())
	}
	unsub()
	unsub()
	if b.Len() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Len())
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed")
	}
	b.LinkLost("A")
}

func TestSubscribeBufferedHoldsMoreThanDefault(t *testing.T) {
	testlog.Start(t)
	b := NewBus()
	ch, unsub := b.SubscribeBuffered(subscriberBuffer * 4)
	defer unsub()

	for i := 0; i < subscriberBuffer*2; i++ {
		b.LinkLost("A")
	}
	if b.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", b.Dropped())
	}
	if len(ch) != subscriberBuffer*2 {
		t.Fatalf("expected %d queued events, got %d", subscriberBuffer*2, len(ch))
	}
}
