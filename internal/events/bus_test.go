package events_test

import (
	"sync"
	"testing"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"go.uber.org/zap"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := events.New(zap.NewNop(), 4)

	var mu sync.Mutex
	var seenA, seenB int
	done := make(chan struct{}, 2)

	bus.Subscribe(events.Ping, func(ev events.Event) {
		mu.Lock()
		seenA++
		mu.Unlock()
		done <- struct{}{}
	})
	bus.Subscribe(events.Ping, func(ev events.Event) {
		mu.Lock()
		seenB++
		mu.Unlock()
		done <- struct{}{}
	})

	bus.Publish(events.Event{Channel: events.Ping})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for subscriber delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if seenA != 1 || seenB != 1 {
		t.Fatalf("expected both subscribers to see exactly one event, got seenA=%d seenB=%d", seenA, seenB)
	}
}

func TestSubscriberOrderIsFIFO(t *testing.T) {
	bus := events.New(zap.NewNop(), 8)

	var mu sync.Mutex
	var order []int

	bus.Subscribe(events.Ping, func(ev events.Event) {
		n, _ := ev.Payload.(int)
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		bus.Publish(events.Event{Channel: events.Ping, Payload: i})
	}

	// Drain with a final marker event to know when processing caught up.
	marker := make(chan struct{})
	bus.Subscribe(events.Error, func(ev events.Event) { close(marker) })
	bus.Publish(events.Event{Channel: events.Error})

	select {
	case <-marker:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for marker event")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order 0..4, got %v", order)
		}
	}
}

func TestPublishBlocksOnFullSubscriberBuffer(t *testing.T) {
	bus := events.New(zap.NewNop(), 1)

	block := make(chan struct{})
	started := make(chan struct{})
	bus.Subscribe(events.Ping, func(ev events.Event) {
		close(started)
		<-block
	})

	// First publish is picked up immediately by the handler goroutine,
	// which then blocks on <-block for the whole test.
	bus.Publish(events.Event{Channel: events.Ping})
	<-started

	// Second publish fills the one-slot buffer; it must not block
	// Publish itself (the buffer still has room for this one).
	bus.Publish(events.Event{Channel: events.Ping})

	// A third publish has no room left (handler is stuck, buffer full of
	// the second event) and must block until the handler drains.
	publishReturned := make(chan struct{})
	go func() {
		bus.Publish(events.Event{Channel: events.Ping})
		close(publishReturned)
	}()

	select {
	case <-publishReturned:
		t.Fatal("expected third Publish to block on the full subscriber buffer")
	case <-time.After(200 * time.Millisecond):
	}

	close(block)

	select {
	case <-publishReturned:
	case <-time.After(time.Second):
		t.Fatal("expected third Publish to unblock once the handler drained")
	}
}

func TestSubscriberPanicIsRecoveredAndReported(t *testing.T) {
	bus := events.New(zap.NewNop(), 4)

	errCh := make(chan events.ErrorEvent, 1)
	bus.Subscribe(events.Error, func(ev events.Event) {
		if e, ok := ev.Payload.(events.ErrorEvent); ok {
			errCh <- e
		}
	})

	bus.Subscribe(events.Ping, func(ev events.Event) {
		panic("boom")
	})

	bus.Publish(events.Event{Channel: events.Ping})

	select {
	case e := <-errCh:
		if e.Message == "" {
			t.Fatal("expected a non-empty panic-recovery message")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for recovered-panic error event")
	}

	// The bus itself must still be usable after a subscriber panic.
	again := make(chan struct{}, 1)
	bus.Subscribe(events.Ping, func(ev events.Event) { again <- struct{}{} })
	bus.Publish(events.Event{Channel: events.Ping})

	select {
	case <-again:
	case <-time.After(time.Second):
		t.Fatal("expected bus to keep delivering events after a panic")
	}
}
