// Package serve holds the HTTP surface of the host: pipeline health for
// monitoring, alongside the stream handlers mounted from main.
package serve

import (
	"encoding/json"
	"net/http"

	"pointcam/depth"
)

// Status is the slice of the pipeline the health endpoint reports on.
type Status interface {
	State() depth.State
	Err() error
}

// HealthServer reports the capture pipeline lifecycle as JSON. With no
// device attached Pipeline is left nil and the state reads "disabled".
type HealthServer struct {
	Pipeline Status
}

func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		State string `json:"state"`
		Error string `json:"error,omitempty"`
	}{
		State: "disabled",
	}
	if h.Pipeline != nil {
		resp.State = h.Pipeline.State().String()
		if err := h.Pipeline.Err(); err != nil {
			resp.Error = err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
