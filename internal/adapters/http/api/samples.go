package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultSampleCount = 15
	maxSampleCount     = 1000
)

// SampleDependencies generates random records.
type SampleDependencies interface {
	GenerateSamples(ctx context.Context, n int) (int, error)
}

// SamplesHandler handles sample generation requests.
type SamplesHandler struct {
	deps SampleDependencies
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(deps SampleDependencies) *SamplesHandler {
	return &SamplesHandler{deps: deps}
}

// HandlePostSamples handles POST /samples?count=N.
func (h *SamplesHandler) HandlePostSamples(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_samples"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	n := defaultSampleCount
	if s := r.URL.Query().Get("count"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > maxSampleCount {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("count must be an integer within 1..%d", maxSampleCount)))
			return
		}
		n = v
	}
	added, err := h.deps.GenerateSamples(r.Context(), n)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"generated": added})
}
