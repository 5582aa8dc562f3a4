package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/sse"
	"github.com/Goer17/InnoTree/pkg/storage"
)

// handleStream follows a task as Server-Sent Events: one event per search
// snapshot carrying the JSON node profiles, then a "done" event carrying
// the task summary. Opening the first stream of a task starts its search.
func (s *Server) handleStream(c *fiber.Ctx) error {
	id := c.Query("task_id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "task_id query parameter required"})
	}

	snaps, release, err := s.searches.Subscribe(id)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "Task not found"})
		}
		s.logger.Error("failed to subscribe to task", "task_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to open stream"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// io.Pipe makes every event reach the socket as its own chunk: the
	// writer blocks until fasthttp has consumed it.
	pr, pw := io.Pipe()
	go s.writeStream(id, snaps, release, pw)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// writeStream copies snapshots onto w until the search ends or the client
// goes away. A departed client only drops its subscription; the search
// keeps running.
func (s *Server) writeStream(id string, snaps <-chan []mcts.Profile, release func(), pw *io.PipeWriter) {
	defer pw.Close()
	defer release()

	log := s.logger.With("task_id", id)
	keepAlive := time.NewTicker(s.config.KeepAlive)
	defer keepAlive.Stop()

	sent := 0
	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				if err := s.writeDone(id, pw); err != nil {
					log.Debug("stream closed before done event", "error", err)
				}
				log.Debug("stream finished", "snapshots", sent)
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				log.Error("failed to encode snapshot", "error", err)
				pw.CloseWithError(err)
				return
			}
			if err := sse.Write(pw, sse.Event{Data: string(data)}); err != nil {
				log.Debug("client left the stream", "error", err)
				return
			}
			sent++
		case <-keepAlive.C:
			if err := sse.WriteComment(pw, "keep-alive"); err != nil {
				log.Debug("client left the stream", "error", err)
				return
			}
		}
	}
}

func (s *Server) writeDone(id string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task, err := s.searches.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(NewTaskSummary(task))
	if err != nil {
		return err
	}
	return sse.Write(w, sse.Event{Type: sse.Done, Data: string(data)})
}
