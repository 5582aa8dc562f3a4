package search

import (
	"sync"

	"github.com/Goer17/InnoTree/pkg/mcts"
)

// Broadcaster fans one snapshot producer out to many consumers. A consumer
// that joins late starts from the latest snapshot. A slow consumer skips
// intermediate snapshots but always receives the last one before its
// channel closes.
type Broadcaster struct {
	mu     sync.Mutex
	latest []mcts.Profile
	subs   map[chan []mcts.Profile]struct{}
	closed bool
	done   chan struct{}
}

// NewBroadcaster creates an open Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan []mcts.Profile]struct{}),
		done: make(chan struct{}),
	}
}

// Publish replaces the latest snapshot and offers it to every subscriber.
// It never blocks on a consumer.
func (b *Broadcaster) Publish(snap []mcts.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.latest = snap
	for ch := range b.subs {
		offer(ch, snap)
	}
}

// offer replaces whatever is pending on ch with snap. Only the broadcaster
// sends on ch, under its lock, so the second send cannot block.
func offer(ch chan []mcts.Profile, snap []mcts.Profile) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

// Subscribe returns a channel of snapshots and a function that releases it.
// The channel is closed once the broadcaster is closed and the pending
// snapshot was delivered.
func (b *Broadcaster) Subscribe() (<-chan []mcts.Profile, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []mcts.Profile, 1)
	if b.latest != nil {
		ch <- b.latest
	}
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Latest returns the most recent snapshot, or nil before the first one.
func (b *Broadcaster) Latest() []mcts.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Close closes every subscriber channel. Publishing afterwards is a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	close(b.done)
}

// Done is closed when the broadcaster is closed.
func (b *Broadcaster) Done() <-chan struct{} { return b.done }
