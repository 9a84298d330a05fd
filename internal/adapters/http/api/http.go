// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/vinyl/internal/adapters/he"
	"github.com/okian/vinyl/internal/adapters/mq/queue"
	service "github.com/okian/vinyl/internal/app"
	"github.com/okian/vinyl/internal/domain/aggregation"
	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RecordDependencies
	SampleDependencies
	QueryDependencies
}

// CategoryAverage mirrors one row of GET /averages.
type CategoryAverage = types.CategoryAverage

// Server wires HTTP routes for the business API.
type Server struct {
	statusHandler  *StatusHandler
	recordsHandler *RecordsHandler
	samplesHandler *SamplesHandler
	queryHandler   *QueryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		statusHandler:  NewStatusHandler(statsProvider),
		recordsHandler: NewRecordsHandler(deps),
		samplesHandler: NewSamplesHandler(deps),
		queryHandler:   NewQueryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.statusHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statusHandler.HandleStats, "stats"))
	mux.HandleFunc("/records", MetricsMiddleware(s.recordsHandler.HandlePostRecord, "records"))
	mux.HandleFunc("/records/batch", MetricsMiddleware(s.recordsHandler.HandlePostBatch, "records_batch"))
	mux.HandleFunc("/samples", MetricsMiddleware(s.samplesHandler.HandlePostSamples, "samples"))
	mux.HandleFunc("/averages", MetricsMiddleware(s.queryHandler.HandleAverages, "averages"))
	mux.HandleFunc("/profile", MetricsMiddleware(s.queryHandler.HandleProfile, "profile"))
	mux.HandleFunc("/compare", MetricsMiddleware(s.queryHandler.HandleCompare, "compare"))
	mux.HandleFunc("/privacy", MetricsMiddleware(s.queryHandler.HandlePrivacy, "privacy"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a domain error to its status and code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), aggregation.IsValidation(err):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, queue.ErrFull), errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, he.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// decodeRecord reads a RawRecord plus its optional submission id from one
// JSON object.
func decodeRecord(data []byte) (string, model.RawRecord, error) {
	var envelope struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", model.RawRecord{}, err
	}
	var rec model.RawRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", model.RawRecord{}, err
	}
	return envelope.SubmissionID, rec, nil
}
