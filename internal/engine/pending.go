package engine

import (
	"context"

	"github.com/seantiz/thumbnail/internal/model"
)

// Result is the successful outcome of a job delivered through a Pending.
type Result struct {
	JobID string
	Image []byte
	Info  model.Info
}

// Pending is a one-shot future for a job dispatched with ThumbnailAsync.
// It is resolved on the loop, when the job's completion runs.
type Pending struct {
	id     string
	done   chan struct{}
	result *Result
	err    error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// resolve is the job's handler. The loop calls it exactly once.
func (p *Pending) resolve(err error, image []byte, info *model.Info) {
	if err != nil {
		p.err = err
	} else {
		p.result = &Result{JobID: p.id, Image: image, Info: *info}
	}
	close(p.done)
}

// ID returns the job ID.
func (p *Pending) ID() string { return p.id }

// Done is closed once the outcome is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the job completes or ctx is done. Giving up on the
// wait does not cancel the job.
func (p *Pending) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
