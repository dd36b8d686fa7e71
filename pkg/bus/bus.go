package bus

import (
	"sync"

	"chatledger/pkg/logger"
)

// Bus is an in-process publish/subscribe hub. Topics are typed handles
// (see Topic) so payload shapes are checked at compile time. Delivery is
// synchronous and in registration order for a single Publish call; no
// ordering is guaranteed across topics.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]*subscription
}

type subscription struct {
	fn      func(any)
	once    bool
	removed bool
}

func New() *Bus {
	return &Bus{topics: make(map[string][]*subscription)}
}

// Topic is a typed name for one event kind. Declare topics as package
// vars and share the handle between publisher and subscribers.
type Topic[T any] struct {
	name string
}

func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

func (t Topic[T]) Name() string { return t.name }

// Subscribe registers fn for the topic and returns an unsubscribe
// capability. Calling the capability more than once is a no-op.
func Subscribe[T any](b *Bus, t Topic[T], fn func(T)) func() {
	sub := &subscription{fn: func(v any) { fn(v.(T)) }}
	b.add(t.name, sub)
	return b.remover(t.name, sub)
}

// SubscribeOnce registers fn for a single delivery; the subscription is
// removed before fn runs. The returned capability cancels the
// subscription if it has not fired yet.
func SubscribeOnce[T any](b *Bus, t Topic[T], fn func(T)) func() {
	sub := &subscription{fn: func(v any) { fn(v.(T)) }, once: true}
	b.add(t.name, sub)
	return b.remover(t.name, sub)
}

// Publish delivers v to every current subscriber of the topic. A
// panicking handler is logged and skipped; remaining handlers still run.
// Publish never fails.
func Publish[T any](b *Bus, t Topic[T], v T) {
	b.mu.Lock()
	subs := b.topics[t.name]
	fns := make([]func(any), 0, len(subs))
	for _, s := range subs {
		if s.removed {
			continue
		}
		fns = append(fns, s.fn)
		if s.once {
			s.removed = true
		}
	}
	b.compactLocked(t.name)
	b.mu.Unlock()

	for _, fn := range fns {
		invoke(t.name, fn, v)
	}
}

func invoke(topic string, fn func(any), v any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bus_handler_panic", "topic", topic, "panic", r)
		}
	}()
	fn(v)
}

// UnsubscribeAll drops every subscriber of the named topic.
func (b *Bus) UnsubscribeAll(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, topic)
}

// Reset drops all subscribers of all topics.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = make(map[string][]*subscription)
}

func (b *Bus) add(topic string, s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = append(b.topics[topic], s)
}

func (b *Bus) remover(topic string, s *subscription) func() {
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.removed {
			return
		}
		s.removed = true
		b.compactLocked(topic)
	}
}

// compactLocked drops removed subscriptions; caller holds b.mu.
func (b *Bus) compactLocked(topic string) {
	subs := b.topics[topic]
	kept := subs[:0]
	for _, s := range subs {
		if !s.removed {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.topics, topic)
		return
	}
	b.topics[topic] = kept
}
