// Package eventstream publishes search lifecycle events to an external
// stream for downstream consumers.
package eventstream

import "context"

// Publisher publishes search events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *SearchEvent) error
	Close() error
}
