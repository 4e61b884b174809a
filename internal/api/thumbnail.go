package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/seantiz/thumbnail/internal/loop"
	"github.com/seantiz/thumbnail/internal/model"
	"github.com/seantiz/thumbnail/internal/pool"
)

const maxBodySize = 1 << 20 // 1 MB

// Response headers carrying the applied thumbnail parameters.
const (
	headerJobID   = "X-Thumbnail-Job-Id"
	headerWidth   = "X-Thumbnail-Width"
	headerHeight  = "X-Thumbnail-Height"
	headerQuality = "X-Thumbnail-Quality"
)

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// asyncResponse is the JSON response for POST /v1/thumbnails/async.
type asyncResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// handleCreateThumbnail dispatches a job and responds with the encoded
// image once the job completes on the loop.
func (s *Server) handleCreateThumbnail(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeThumbnailRequest(w, r)
	if !ok {
		return
	}

	p, err := s.engine.ThumbnailAsync(req)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	res, err := p.Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			// Client gone. The job still runs to completion.
			return
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  err.Error(),
			"job_id": p.ID(),
		})
		return
	}

	ct, ok := contentTypes[res.Info.Format]
	if !ok {
		ct = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Content-Length", strconv.Itoa(len(res.Image)))
	h.Set(headerJobID, res.JobID)
	h.Set(headerWidth, strconv.Itoa(res.Info.Width))
	h.Set(headerHeight, strconv.Itoa(res.Info.Height))
	h.Set(headerQuality, strconv.Itoa(res.Info.Quality))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Image); err != nil {
		s.logger.Warn("write thumbnail", "job_id", res.JobID, "error", err)
	}
}

// handleAsyncThumbnail dispatches a job and returns its ID immediately.
// Progress is available from the job ledger and event stream.
func (s *Server) handleAsyncThumbnail(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeThumbnailRequest(w, r)
	if !ok {
		return
	}

	id, err := s.engine.Submit(req, func(err error, _ []byte, _ *model.Info) {
		if err != nil {
			s.logger.Debug("async thumbnail failed", "error", err)
		}
	})
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, asyncResponse{JobID: id, Status: model.StatusPending})
}

// decodeThumbnailRequest parses the body and resolves the image path under
// the server's image root. It writes the error response itself.
func (s *Server) decodeThumbnailRequest(w http.ResponseWriter, r *http.Request) (model.Request, bool) {
	var req model.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}

	if req.Path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return req, false
	}
	if !filepath.IsLocal(req.Path) {
		s.writeError(w, http.StatusBadRequest, "path must be relative to the image root")
		return req, false
	}
	req.Path = filepath.Join(s.imageRoot, req.Path)
	return req, true
}

func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pool.ErrQueueFull), errors.Is(err, pool.ErrClosed), errors.Is(err, loop.ErrLoopStopped):
		s.writeError(w, http.StatusServiceUnavailable, "server busy, retry later")
	default:
		s.logger.Error("dispatch thumbnail", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to dispatch job")
	}
}
