package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/vinyl/internal/adapters/mq/queue"
	"github.com/okian/vinyl/internal/domain/aggregation"
	"github.com/okian/vinyl/internal/domain/model"
)

// RecordDependencies ingests records synchronously or through the queue.
type RecordDependencies interface {
	Submit(ctx context.Context, id string, rec model.RawRecord) (bool, error)
	Enqueue(ctx context.Context, id string, rec model.RawRecord) (bool, error)
}

// RecordsHandler handles record submissions.
type RecordsHandler struct {
	deps RecordDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type rejection struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

type batchResponse struct {
	Accepted   int         `json:"accepted"`
	Duplicates int         `json:"duplicates"`
	Rejected   []rejection `json:"rejected"`
	Deferred   int         `json:"deferred,omitempty"`
}

// HandlePostRecord handles POST /records. The record is folded before the
// response is written.
func (h *RecordsHandler) HandlePostRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_record"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	id, rec, err := decodeRecord(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	dup, err := h.deps.Submit(r.Context(), id, rec)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "created"})
}

// HandlePostBatch handles POST /records/batch. Valid records are queued;
// invalid ones are listed by index. When the queue fills, the remaining
// records are counted as deferred and the response is 429.
func (h *RecordsHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("records must not be empty")))
		return
	}

	resp := batchResponse{Rejected: []rejection{}}
	for i, raw := range req.Records {
		id, rec, err := decodeRecord(raw)
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejection{Index: i, Message: err.Error()})
			continue
		}
		dup, err := h.deps.Enqueue(r.Context(), id, rec)
		switch {
		case err == nil && dup:
			resp.Duplicates++
		case err == nil:
			resp.Accepted++
		case aggregation.IsValidation(err):
			resp.Rejected = append(resp.Rejected, rejection{Index: i, Message: err.Error()})
		case errors.Is(err, queue.ErrFull):
			resp.Deferred = len(req.Records) - i
			writeJSON(w, http.StatusTooManyRequests, resp)
			return
		default:
			writeFailure(w, op, fmt.Errorf("record %d: %w", i, err))
			return
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}
