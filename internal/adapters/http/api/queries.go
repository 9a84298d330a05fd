package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/vinyl/internal/domain/model"
)

// QueryDependencies answers aggregate queries.
type QueryDependencies interface {
	Averages(ctx context.Context) ([]CategoryAverage, error)
	Profile(ctx context.Context, category, period string) (model.Profile, error)
	Compare(ctx context.Context, value float64, category, period string) (model.ComparisonResult, error)
	Privacy(ctx context.Context) (model.PrivacyReport, error)
}

// QueryHandler handles the read endpoints.
type QueryHandler struct {
	deps QueryDependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps QueryDependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

// HandleAverages handles GET /averages.
func (h *QueryHandler) HandleAverages(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_averages"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	avgs, err := h.deps.Averages(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, avgs)
}

// HandleProfile handles GET /profile?category=&period=.
func (h *QueryHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	if q.Get("category") == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing category")))
		return
	}
	profile, err := h.deps.Profile(r.Context(), q.Get("category"), q.Get("period"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleCompare handles GET /compare?value=&category=&period=.
func (h *QueryHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_compare"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	if q.Get("category") == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing category")))
		return
	}
	value, err := strconv.ParseFloat(q.Get("value"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("value must be a number")))
		return
	}
	res, err := h.deps.Compare(r.Context(), value, q.Get("category"), q.Get("period"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePrivacy handles GET /privacy.
func (h *QueryHandler) HandlePrivacy(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_privacy"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	report, err := h.deps.Privacy(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
