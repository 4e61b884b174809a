package api

import (
	"net/http"
)

type healthResponse struct {
	Status        string `json:"status"`
	Engines       int    `json:"engines"`
	DefaultEngine string `json:"default_engine,omitempty"`
	InFlight      int    `json:"in_flight"`
}

// handleHealthz reports ok while the loop accepts jobs and at least one
// engine is registered. A stopping server answers 503 so load balancers
// drain it.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", InFlight: s.engine.InFlight()}
	for _, e := range s.registry.List() {
		resp.Engines++
		if e.Default {
			resp.DefaultEngine = e.Name
		}
	}

	status := http.StatusOK
	switch {
	case !s.engine.Accepting():
		resp.Status = "stopping"
		status = http.StatusServiceUnavailable
	case resp.Engines == 0:
		resp.Status = "no engines"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}
