// Package pubsub provides a topic-keyed fan-out registry. It has no
// knowledge of what flows through it; topics are plain uint64 keys and
// payloads are whatever the hub instance is parameterized with.
package pubsub

import "sync"

// DefaultQueueSize is the per-subscriber buffer used by NewSubscriber
// when no explicit capacity is given.
const DefaultQueueSize = 64

// numShards spreads topics over independent locks so unrelated topics do
// not contend. Must be a power of two.
const numShards = 16

// Subscriber is a delivery target with its own bounded queue. A subscriber
// belongs to at most one topic at a time but may be re-subscribed to a
// different topic after unsubscribing; the hub never closes C.
type Subscriber[T any] struct {
	C chan T
}

// NewSubscriber returns a subscriber with the given queue capacity.
// Capacities below 1 fall back to DefaultQueueSize.
func NewSubscriber[T any](capacity int) *Subscriber[T] {
	if capacity < 1 {
		capacity = DefaultQueueSize
	}
	return &Subscriber[T]{C: make(chan T, capacity)}
}

type shard[T any] struct {
	mu     sync.RWMutex
	topics map[uint64]map[*Subscriber[T]]struct{}
}

// Hub is a concurrent topic→subscriber-set registry. Publish never blocks
// on a slow subscriber: each subscriber has a bounded queue and on
// overflow the oldest unread message is dropped in favor of the new one.
type Hub[T any] struct {
	shards [numShards]shard[T]
}

// New returns an empty hub.
func New[T any]() *Hub[T] {
	h := &Hub[T]{}
	for i := range h.shards {
		h.shards[i].topics = make(map[uint64]map[*Subscriber[T]]struct{})
	}
	return h
}

func (h *Hub[T]) shard(topic uint64) *shard[T] {
	return &h.shards[topic&(numShards-1)]
}

// Subscribe registers sub under topic. Subscribing twice has the effect
// of once.
func (h *Hub[T]) Subscribe(topic uint64, sub *Subscriber[T]) {
	s := h.shard(topic)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.topics[topic]
	if !ok {
		set = make(map[*Subscriber[T]]struct{})
		s.topics[topic] = set
	}
	set[sub] = struct{}{}
}

// Unsubscribe removes the registration. Safe to call for a subscriber
// that was never registered or is already removed.
func (h *Hub[T]) Unsubscribe(topic uint64, sub *Subscriber[T]) {
	s := h.shard(topic)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.topics[topic]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.topics, topic)
	}
}

// Publish delivers msg to every subscriber registered under topic at the
// instant of the call. A topic with no subscribers is a no-op fan-out.
func (h *Hub[T]) Publish(topic uint64, msg T) {
	s := h.shard(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub := range s.topics[topic] {
		select {
		case sub.C <- msg:
			continue
		default:
		}
		// Queue full: evict the oldest unread message and retry once. If a
		// concurrent reader refilled the queue in between, the new message
		// loses instead; either way exactly one message is sacrificed.
		select {
		case <-sub.C:
		default:
		}
		select {
		case sub.C <- msg:
		default:
		}
	}
}

// Subscribers reports the current number of subscribers for topic.
func (h *Hub[T]) Subscribers(topic uint64) int {
	s := h.shard(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}
