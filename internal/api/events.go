package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/thumbnail/internal/engine"
	"github.com/seantiz/thumbnail/internal/model"
	"github.com/seantiz/thumbnail/internal/store"
)

// eventQueued describes a job that is dispatched but not yet picked up by a
// worker. The engine does not publish it; streams synthesize it from the
// ledger or from the engine's active set.
const eventQueued = "queued"

func terminal(status string) bool {
	return status == model.StatusCompleted || status == model.StatusFailed
}

// recordEvent describes the state a ledger record is in as an event.
func recordEvent(rec *model.Record) engine.Event {
	ev := engine.Event{JobID: rec.ID, Time: rec.CreatedAt, Error: rec.Error}
	switch rec.Status {
	case model.StatusRunning:
		ev.Type = engine.EventRunning
	case model.StatusCompleted:
		ev.Type = engine.EventCompleted
	case model.StatusFailed:
		ev.Type = engine.EventFailed
	default:
		ev.Type = eventQueued
	}
	if rec.FinishedAt != nil {
		ev.Time = *rec.FinishedAt
	} else if rec.StartedAt != nil {
		ev.Time = *rec.StartedAt
	}
	if rec.FinalWidth != nil && rec.FinalHeight != nil {
		ev.Width, ev.Height = *rec.FinalWidth, *rec.FinalHeight
	}
	return ev
}

// handleStreamEvents streams a job's lifecycle as server-sent events. The
// current state is sent first, then live transitions, then a "done" event.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetJob(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Dispatched jobs reach the ledger once a worker picks them up.
		if !s.engine.Active(id) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		rec = nil
	case err != nil:
		s.logger.Error("get job for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	if rec != nil && terminal(rec.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeEvent(w, recordEvent(rec))
		_ = writeSSEEvent(w, "done", "stream complete")
		flush()
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribing to a job that finished since the lookup above yields a
	// closed channel; the terminal state is then re-read from the ledger.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	current := engine.Event{JobID: id, Type: eventQueued, Time: time.Now().UTC()}
	if rec != nil {
		current = recordEvent(rec)
	}
	if err := writeEvent(w, current); err != nil {
		return
	}
	flush()

	sawTerminal := false
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				if !sawTerminal {
					s.writeFinalState(r.Context(), w, id)
				}
				_ = writeSSEEvent(w, "done", "stream complete")
				flush()
				return
			}
			if ev.Type == engine.EventCompleted || ev.Type == engine.EventFailed {
				sawTerminal = true
			}
			if err := writeEvent(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
			flush()
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeFinalState emits the ledger's terminal record for a job whose live
// outcome event was missed.
func (s *Server) writeFinalState(ctx context.Context, w http.ResponseWriter, id string) {
	rec, err := s.store.GetJob(ctx, id)
	if err != nil {
		s.logger.Warn("read final job state", "job_id", id, "error", err)
		return
	}
	if terminal(rec.Status) {
		_ = writeEvent(w, recordEvent(rec))
	}
}

// writeEvent writes ev as a named SSE event with a JSON payload.
func writeEvent(w http.ResponseWriter, ev engine.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return writeSSEEvent(w, ev.Type, string(data))
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
