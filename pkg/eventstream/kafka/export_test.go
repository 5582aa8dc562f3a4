package kafka

import (
	"log/slog"
	"time"
)

var NewPublisherWithWriter = func(w messageWriter, timeout time.Duration, log *slog.Logger) *Publisher {
	return newPublisher(w, timeout, log)
}
