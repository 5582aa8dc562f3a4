package testutils

import (
	"context"
	"sync"

	"github.com/Goer17/InnoTree/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.SearchEvent
	closed bool

	// Err, when set, is returned by every Publish.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(_ context.Context, event *eventstream.SearchEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

func (p *MockPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Events returns a copy of the events published so far.
func (p *MockPublisher) Events() []*eventstream.SearchEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.SearchEvent(nil), p.events...)
}

// EventTypes returns the type of every published event, in order.
func (p *MockPublisher) EventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}
