package events

import (
	"testing"
	"time"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Emit(SidecarLog, LogPayload{Level: "info", Message: "hello"})

	select {
	case e := <-ch:
		if e.Name != SidecarLog {
			t.Fatalf("got event %q", e.Name)
		}
		p, ok := e.Payload.(LogPayload)
		if !ok || p.Message != "hello" {
			t.Fatalf("unexpected payload %#v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEmitDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Emit(MountStatus, "phase")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on full subscriber buffer")
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel() // idempotent

	if b.Subscribers() != 0 {
		t.Fatalf("subscriber count = %d", b.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	// Emits after cancel must not panic.
	b.Emit(StatusUpdate, nil)
}
