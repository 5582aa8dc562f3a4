package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/Goer17/InnoTree/pkg/mcts"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSearchCommitted is emitted when a search freezes a node and
	// moves its root.
	EventTypeSearchCommitted = "innotree.search.committed"

	// EventTypeSearchFinished is emitted once when a search stops.
	EventTypeSearchFinished = "innotree.search.finished"
)

// SearchEvent is a transport-neutral payload describing search progress.
type SearchEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	TaskID        string    `json:"task_id"`
	Topic         string    `json:"topic"`

	// Frozen is the committed prefix at the time of the event.
	Frozen []mcts.Profile `json:"frozen,omitempty"`

	// Set on EventTypeSearchFinished only.
	StopReason string `json:"stop_reason,omitempty"`
	BestIdea   string `json:"best_idea,omitempty"`
	Trials     int    `json:"trials,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewSearchEvent fills the envelope fields of a new event.
func NewSearchEvent(eventType, taskID, topic string) *SearchEvent {
	return &SearchEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		TaskID:        taskID,
		Topic:         topic,
	}
}
