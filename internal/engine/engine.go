package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/seantiz/thumbnail/internal/backend"
	"github.com/seantiz/thumbnail/internal/loop"
	"github.com/seantiz/thumbnail/internal/model"
	"github.com/seantiz/thumbnail/internal/pool"
	"github.com/seantiz/thumbnail/internal/store"
)

// Engine dispatches thumbnail jobs and routes their outcomes back onto the
// caller's loop.
type Engine struct {
	loop      *loop.Loop
	scheduler pool.Scheduler
	registry  *backend.Registry
	store     store.Store
	broker    *EventBroker
	logger    *slog.Logger
	validate  *validator.Validate

	// active holds the IDs of dispatched jobs whose completion has not run.
	active sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore records every executed job in the given ledger. Ledger writes
// happen on worker goroutines, never on the loop.
func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// New creates an engine that completes jobs on l and executes them through
// sched using engines resolved from reg.
func New(l *loop.Loop, sched pool.Scheduler, reg *backend.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		loop:      l,
		scheduler: sched,
		registry:  reg,
		broker:    NewEventBroker(),
		logger:    logger,
		validate:  newValidator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Accepting reports whether new jobs can be dispatched. It turns false once
// the loop is stopped.
func (e *Engine) Accepting() bool {
	return !e.loop.Stopped()
}

// InFlight returns the number of dispatched jobs whose completion has not
// run yet.
func (e *Engine) InFlight() int {
	n := 0
	e.active.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Active reports whether the job has been dispatched and not yet completed.
func (e *Engine) Active(id string) bool {
	_, ok := e.active.Load(id)
	return ok
}

// Thumbnail resizes the image at path to width x height, encoding it at the
// given quality, and calls h on the loop with the outcome. A zero width or
// height is derived from the source aspect ratio; zero quality keeps the
// encoder default.
//
// Malformed arguments are reported synchronously as a *model.ValidationError
// and h is never called. The same holds for a stopped loop
// (loop.ErrLoopStopped) and a scheduler that refuses the job. Otherwise h is
// called exactly once, never before Thumbnail returns.
func (e *Engine) Thumbnail(path string, width, height, quality int, h model.Handler) error {
	_, err := e.Submit(model.Request{
		Path:    path,
		Width:   width,
		Height:  height,
		Quality: quality,
	}, h)
	return err
}

// Submit is Thumbnail for a full request. It returns the job ID.
func (e *Engine) Submit(req model.Request, h model.Handler) (string, error) {
	return e.dispatch(req, h, nil)
}

// ThumbnailAsync dispatches req and returns a future for its outcome.
func (e *Engine) ThumbnailAsync(req model.Request) (*Pending, error) {
	p := newPending()
	if _, err := e.dispatch(req, p.resolve, func(id string) { p.id = id }); err != nil {
		return nil, err
	}
	return p, nil
}

// dispatch validates the request and schedules exactly one execution. bind,
// when set, sees the job ID before any other goroutine can.
func (e *Engine) dispatch(req model.Request, h model.Handler, bind func(id string)) (string, error) {
	if h == nil {
		return "", &model.ValidationError{Field: "callback", Message: "is required"}
	}
	if err := e.validate.Struct(req); err != nil {
		return "", validationError(err)
	}
	eng, name, err := e.registry.Resolve(req.Engine)
	if err != nil {
		return "", &model.ValidationError{Field: "engine", Message: err.Error()}
	}

	// A stopped loop could never run the completion.
	if err := e.loop.Ref(); err != nil {
		return "", fmt.Errorf("dispatch job: %w", err)
	}

	job := model.NewJob(req, name, h)
	id := job.ID
	if bind != nil {
		bind(id)
	}

	jobsInFlight.Inc()
	e.active.Store(id, struct{}{})
	if err := e.scheduler.Schedule(func() { e.execute(job, eng) }); err != nil {
		e.active.Delete(id)
		jobsInFlight.Dec()
		e.loop.Unref()
		jobsTotal.WithLabelValues(name, statusRejected).Inc()
		e.logger.Warn("job rejected by scheduler", "job_id", id, "engine", name, "error", err)
		return "", fmt.Errorf("schedule job: %w", err)
	}

	e.logger.Debug("job dispatched",
		"job_id", id,
		"engine", name,
		"path", req.Path,
		"width", req.Width,
		"height", req.Height,
		"quality", req.Quality,
	)
	return id, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts the first validator failure into a
// *model.ValidationError named after the request's JSON field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &model.ValidationError{Message: err.Error()}
	}

	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "gte":
		msg = "must be >= " + fe.Param()
	case "lte":
		msg = "must be <= " + fe.Param()
	case "oneof":
		msg = "must be one of: " + fe.Param()
	default:
		msg = "failed " + fe.Tag() + " check"
	}
	return &model.ValidationError{Field: fe.Field(), Message: msg}
}
