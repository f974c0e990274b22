package nexus

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/gigamonkeyx/nexus/internal/metrics"
)

// EventHandler receives the data published to a subscribed topic.
type EventHandler func(data any)

// eventBus fans unsolicited server messages and lifecycle events out to
// topic subscribers. Subscribers for a topic are invoked in subscription
// order; a panicking subscriber is recovered and logged and never prevents
// its siblings from running.
type eventBus struct {
	mu   sync.Mutex
	log  zerolog.Logger
	subs map[string][]*subscription
}

type subscription struct {
	fn EventHandler
}

func newEventBus(log zerolog.Logger) *eventBus {
	return &eventBus{log: log, subs: make(map[string][]*subscription)}
}

// subscribe registers fn for topic and returns an unsubscribe closure.
// Unsubscribing takes effect for future publishes only and is idempotent.
func (b *eventBus) subscribe(topic string, fn EventHandler) func() {
	sub := &subscription{fn: fn}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s == sub {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
}

// publish invokes every current subscriber for topic with data.
func (b *eventBus) publish(topic string, data any) {
	metrics.RecordEventPublished()
	b.mu.Lock()
	list := b.subs[topic]
	snapshot := make([]*subscription, len(list))
	copy(snapshot, list)
	b.mu.Unlock()
	for _, s := range snapshot {
		b.invoke(topic, s, data)
	}
}

func (b *eventBus) invoke(topic string, s *subscription, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("topic", topic).Any("panic", r).Msg("subscriber panicked")
		}
	}()
	s.fn(data)
}
