package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/thumbnail/internal/backend"
	"github.com/seantiz/thumbnail/internal/model"
)

// execute runs on a worker goroutine. It owns job until it posts the
// completion onto the loop and must not touch it afterwards.
func (e *Engine) execute(job *model.Job, eng backend.Engine) {
	log := e.logger.With(
		"job_id", job.ID,
		"engine", job.Engine,
		"path", job.ImagePath,
		"width", job.RequestedWidth,
		"height", job.RequestedHeight,
		"quality", job.Quality,
	)

	job.StartedAt = time.Now().UTC()
	e.recordRunning(job, log)
	e.broker.Publish(Event{JobID: job.ID, Type: EventRunning, Time: job.StartedAt})

	e.run(job, eng)

	job.FinishedAt = time.Now().UTC()
	elapsed := job.FinishedAt.Sub(job.StartedAt)
	jobDuration.WithLabelValues(job.Engine).Observe(elapsed.Seconds())
	jobsTotal.WithLabelValues(job.Engine, job.Status()).Inc()

	if job.Failed() {
		log.Warn("job failed", "error", job.Error, "duration_ms", elapsed.Milliseconds())
	} else {
		resultBytes.Observe(float64(len(job.Result)))
		log.Info("job completed",
			"final_width", job.FinalWidth,
			"final_height", job.FinalHeight,
			"format", job.Format,
			"bytes", len(job.Result),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	e.recordFinished(job, elapsed, log)
	e.publishOutcome(job)

	if err := e.loop.Post(func() { e.complete(job) }); err != nil {
		log.Error("completion dropped", "error", err)
		e.active.Delete(job.ID)
		job.Release()
		jobsInFlight.Dec()
		e.loop.Unref()
	}
}

// run performs the image work. The session is released on every path, and
// an engine panic is recorded as the job's error.
func (e *Engine) run(job *model.Job, eng backend.Engine) {
	s := eng.NewSession()
	defer s.Release()
	defer func() {
		if r := recover(); r != nil {
			job.Fail(fmt.Sprintf("engine panic: %v", r))
		}
	}()

	if err := s.Load(job.ImagePath); err != nil {
		job.Fail(engineError(s, err))
		return
	}

	width, height, err := finalDimensions(job.RequestedWidth, job.RequestedHeight, s.Width(), s.Height())
	if err != nil {
		job.Fail(err.Error())
		return
	}
	if err := s.ResizeTo(width, height); err != nil {
		job.Fail(engineError(s, err))
		return
	}

	if job.Quality != model.QualityDefault {
		if err := s.SetCompressionQuality(job.Quality); err != nil {
			job.Fail(engineError(s, err))
			return
		}
	}
	if job.RequestedFormat != "" {
		if err := s.SetFormat(job.RequestedFormat); err != nil {
			job.Fail(engineError(s, err))
			return
		}
	}

	blob, err := s.EncodeToBlob()
	if err != nil || len(blob) == 0 {
		job.Fail(engineError(s, err))
		return
	}

	job.Format = s.Format()
	job.Succeed(blob, width, height, job.Quality)
}

// engineError picks the most descriptive message available for a failed
// session operation.
func engineError(s backend.Session, err error) string {
	if err != nil {
		return err.Error()
	}
	if last := s.LastError(); last != nil {
		return last.Error()
	}
	return "encoder produced no data"
}

func (e *Engine) publishOutcome(job *model.Job) {
	ev := Event{JobID: job.ID, Time: job.FinishedAt}
	if job.Failed() {
		ev.Type = EventFailed
		ev.Error = job.Error
	} else {
		ev.Type = EventCompleted
		ev.Width = job.FinalWidth
		ev.Height = job.FinalHeight
	}
	e.broker.Publish(ev)
	e.broker.Close(job.ID)
}

func (e *Engine) recordRunning(job *model.Job, log *slog.Logger) {
	if e.store == nil {
		return
	}
	ctx := context.Background()
	if err := e.store.CreateJob(ctx, model.NewRecord(job)); err != nil {
		log.Error("failed to record job", "error", err)
		return
	}
	if err := e.store.MarkRunning(ctx, job.ID, job.StartedAt); err != nil {
		log.Error("failed to transition to running", "error", err)
	}
}

func (e *Engine) recordFinished(job *model.Job, elapsed time.Duration, log *slog.Logger) {
	if e.store == nil {
		return
	}

	durationMS := int(elapsed.Milliseconds())
	r := &model.Record{
		ID:         job.ID,
		Status:     job.Status(),
		Error:      job.Error,
		DurationMS: &durationMS,
		StartedAt:  &job.StartedAt,
		FinishedAt: &job.FinishedAt,
	}
	if !job.Failed() {
		width, height, size := job.FinalWidth, job.FinalHeight, len(job.Result)
		r.FinalWidth = &width
		r.FinalHeight = &height
		r.ResultBytes = &size
		r.Format = job.Format
	}

	if err := e.store.FinishJob(context.Background(), r); err != nil {
		log.Error("failed to record job outcome", "error", err)
	}
}
