// Package engine runs thumbnail jobs asynchronously on behalf of a
// single-threaded caller.
//
// A job moves through three stages, each owning it exclusively in turn:
// dispatch (on the caller's goroutine) validates the request and schedules
// the job; the executor (on a worker goroutine) loads, resizes and encodes
// the image through a backend session; the completion stage (back on the
// caller's loop) hands the outcome to the job's handler exactly once and
// then releases the job.
package engine
