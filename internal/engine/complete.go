package engine

import (
	"errors"

	"github.com/seantiz/thumbnail/internal/model"
)

// complete runs on the loop, once per job. The handler sees either an
// error or the result bytes and info, never both. The result slice moves to
// the handler; the job keeps no reference to it. Cleanup is deferred so it
// still happens when the handler panics, in which case the panic reaches
// the loop's fault handler.
func (e *Engine) complete(job *model.Job) {
	defer e.loop.Unref()
	defer jobsInFlight.Dec()
	defer job.Release()
	defer e.active.Delete(job.ID)

	h := job.Handler
	if job.Failed() {
		h(errors.New(job.Error), nil, nil)
		return
	}

	image, info := job.Result, job.Info()
	job.Result = nil
	h(nil, image, info)
}
