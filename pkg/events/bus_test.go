package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) handle(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}

func TestEventBus_Subscribe_Publish(t *testing.T) {
	bus := NewEventBus()
	first := &recorder{}
	second := &recorder{}

	bus.Subscribe(TopicContextPrepared, first.handle)
	bus.Subscribe(TopicContextPrepared, second.handle)

	event := ContextPreparedEvent{SessionID: "s1", TokensBefore: 120, TokensAfter: 80}
	Emit(bus, event)
	bus.Shutdown()

	assert.Equal(t, []any{event}, first.snapshot())
	assert.Equal(t, []any{event}, second.snapshot())
}

func TestEventBus_OrderPerTopic(t *testing.T) {
	bus := NewEventBus()
	rec := &recorder{}
	bus.Subscribe("ordered", rec.handle)

	for i := 0; i < 50; i++ {
		bus.Publish("ordered", i)
	}
	bus.Shutdown()

	events := rec.snapshot()
	assert.Len(t, events, 50)
	for i, e := range events {
		assert.Equal(t, i, e)
	}
}

func TestEventBus_MultipleTopics(t *testing.T) {
	bus := NewEventBus()
	fallbacks := &recorder{}
	evictions := &recorder{}

	bus.Subscribe(TopicTokenFallback, fallbacks.handle)
	bus.Subscribe(TopicPairEvicted, evictions.handle)

	Emit(bus, TokenFallbackEvent{Backend: "api", Reason: "timeout", Tokens: 3})
	bus.Shutdown()

	assert.Len(t, fallbacks.snapshot(), 1)
	assert.Empty(t, evictions.snapshot())
}

func TestEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewEventBus()
	rec := &recorder{}

	bus.Subscribe("boom", func(any) { panic("handler failure") })
	bus.Subscribe("boom", rec.handle)

	assert.NotPanics(t, func() {
		bus.Publish("boom", "payload")
		bus.Shutdown()
	})
	assert.Equal(t, []any{"payload"}, rec.snapshot())
}

func TestEventBus_DropsWhenQueueFull(t *testing.T) {
	bus := NewEventBusWithBuffer(1)
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	bus.Subscribe("slow", func(any) {
		once.Do(func() { close(started) })
		<-release
	})

	bus.Publish("slow", 1)
	<-started
	bus.Publish("slow", 2)
	bus.Publish("slow", 3)
	close(release)
	bus.Shutdown()

	assert.Equal(t, int64(1), bus.DroppedCount())
}

func TestEventBus_NoSubscribers(t *testing.T) {
	bus := NewEventBus()

	assert.NotPanics(t, func() {
		bus.Publish("non.existent", "test")
	})
}

func TestEmit_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(nil, ChatResponseEvent{Message: "hi"})
	})
}
