package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"herdroute/internal/model"
)

const maxRequestBytes = 1 << 20

// decodeOptimizeRequest reads and validates an optimize request body.
// Unknown fields are rejected so typos surface as errors instead of silent
// defaults. On failure the problem response has already been written.
func decodeOptimizeRequest(w http.ResponseWriter, r *http.Request) (model.OptimizeRequest, bool) {
	var req model.OptimizeRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Request too large", err.Error(), r.URL.Path)
			return req, false
		}
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return req, false
	}
	return req, true
}
