package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Job status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Quality bounds. Zero means "use the encoder default".
const (
	QualityDefault = 0
	QualityMax     = 100
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ErrInvalidArgument is wrapped by every ValidationError.
var ErrInvalidArgument = errors.New("invalid argument")

// ValidationError describes a malformed thumbnail request. It is returned
// synchronously by the dispatch entry point before any job exists.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Request carries the caller-supplied parameters of one thumbnail operation.
type Request struct {
	// Path is not checked here; an empty or unreadable path fails in the
	// engine and reaches the handler as a load error.
	Path    string `json:"path"`
	Width   int    `json:"width" validate:"gte=0"`
	Height  int    `json:"height" validate:"gte=0"`
	Quality int    `json:"quality" validate:"gte=0,lte=100"`

	// Engine names a registered image engine. Empty selects the default.
	Engine string `json:"engine,omitempty"`

	// Format overrides the output encoding. Empty keeps the source format.
	Format string `json:"format,omitempty" validate:"omitempty,oneof=jpeg png gif bmp tiff webp"`
}

// Info is the metadata delivered alongside a successful result.
type Info struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Quality int `json:"quality"`

	// Format is the encoding of the image bytes ("jpeg", "png", ...).
	Format string `json:"format"`
}

// Handler receives the outcome of a job. Exactly one of err or the
// (image, info) pair is non-nil.
type Handler func(err error, image []byte, info *Info)

// Job is the self-contained unit of work for one thumbnail request.
//
// Ownership moves strictly forward: the dispatcher builds it, exactly one
// worker mutates it, and exactly one completion call reads and then
// releases it. No two stages touch a Job at the same time, so it carries
// no lock.
type Job struct {
	ID              string
	ImagePath       string
	RequestedWidth  int
	RequestedHeight int
	Quality         int
	Engine          string
	RequestedFormat string

	// Outputs, written once by the worker.
	Result       []byte
	Error        string
	FinalWidth   int
	FinalHeight  int
	FinalQuality int
	Format       string

	Handler Handler

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewJob copies the request into a fresh Job. The path string is copied
// so the job never aliases caller-owned storage.
func NewJob(req Request, engine string, h Handler) *Job {
	return &Job{
		ID:              NewID(),
		ImagePath:       strings.Clone(req.Path),
		RequestedWidth:  req.Width,
		RequestedHeight: req.Height,
		Quality:         req.Quality,
		Engine:          engine,
		RequestedFormat: req.Format,
		Handler:         h,
		CreatedAt:       time.Now().UTC(),
	}
}

// Failed reports whether the worker recorded an error.
func (j *Job) Failed() bool { return j.Error != "" }

// Fail records msg as the job's error and drops any partial result.
func (j *Job) Fail(msg string) {
	if msg == "" {
		msg = "unknown error"
	}
	j.Error = msg
	j.Result = nil
}

// Succeed records the encoded blob and the values actually applied.
func (j *Job) Succeed(blob []byte, width, height, quality int) {
	j.Result = blob
	j.Error = ""
	j.FinalWidth = width
	j.FinalHeight = height
	j.FinalQuality = quality
}

// Info returns the metadata record for a successful job.
func (j *Job) Info() *Info {
	return &Info{
		Width:   j.FinalWidth,
		Height:  j.FinalHeight,
		Quality: j.FinalQuality,
		Format:  j.Format,
	}
}

// Status reports the terminal status derived from the job's outputs.
func (j *Job) Status() string {
	if j.Failed() {
		return StatusFailed
	}
	return StatusCompleted
}

// Release drops every reference the job holds. A released job must not be
// used again.
func (j *Job) Release() {
	j.Result = nil
	j.Error = ""
	j.Handler = nil
}

// Record is the persisted, metadata-only view of a job kept by the ledger.
// It never carries image bytes.
type Record struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	Engine          string     `json:"engine"`
	ImagePath       string     `json:"image_path"`
	RequestedWidth  int        `json:"requested_width"`
	RequestedHeight int        `json:"requested_height"`
	Quality         int        `json:"quality"`
	FinalWidth      *int       `json:"final_width,omitempty"`
	FinalHeight     *int       `json:"final_height,omitempty"`
	Format          string     `json:"format,omitempty"`
	ResultBytes     *int       `json:"result_bytes,omitempty"`
	Error           string     `json:"error,omitempty"`
	DurationMS      *int       `json:"duration_ms,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// NewRecord builds the ledger row for a job that is about to run.
func NewRecord(j *Job) *Record {
	return &Record{
		ID:              j.ID,
		Status:          StatusPending,
		Engine:          j.Engine,
		ImagePath:       j.ImagePath,
		RequestedWidth:  j.RequestedWidth,
		RequestedHeight: j.RequestedHeight,
		Quality:         j.Quality,
		CreatedAt:       j.CreatedAt,
	}
}
