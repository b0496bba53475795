package eventbus

import (
	"testing"
)

func TestSubscribeFiltersByType(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	failed, unsubFailed := b.Subscribe(4, TypeJobFailed)
	defer unsubFailed()

	b.Publish(Event{Type: TypeFrameBegin})
	b.Publish(Event{Type: TypeJobFailed, Data: "x"})

	if got := len(all); got != 2 {
		t.Fatalf("all subscriber got %d events, want 2", got)
	}
	if got := len(failed); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	e := <-failed
	if e.Type != TypeJobFailed || e.Time.IsZero() {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 3; i++ {
		b.Publish(Event{Type: TypeFrameEnd})
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	b.Publish(Event{Type: TypeFrameBegin})
}
