package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
)

// IdempotencyHeader carries the client key that deduplicates submissions.
const IdempotencyHeader = "Idempotency-Key"

// AuditDependencies defines the interface for corpus audits.
type AuditDependencies interface {
	// Audit validates records synchronously.
	Audit(ctx context.Context, records []rating.RaceRating) (model.AuditRun, error)

	// SubmitAudit queues records for a worker. A replayed key returns the
	// original run with Duplicate set.
	SubmitAudit(ctx context.Context, key string, records []rating.RaceRating) (model.Submission, error)

	AuditRun(ctx context.Context, id string) (model.AuditRun, error)
}

// AuditHandler handles audit requests.
type AuditHandler struct {
	deps AuditDependencies
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(deps AuditDependencies) *AuditHandler {
	return &AuditHandler{deps: deps}
}

func (h *AuditHandler) decode(w http.ResponseWriter, r *http.Request, op string) ([]rating.RaceRating, bool) {
	var req auditRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return nil, false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return nil, false
	}
	return req.Records, true
}

// HandleAudit handles POST /audit. The run is answered with 200 whether or
// not it passed.
func (h *AuditHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	const op = "api.audit"
	records, ok := h.decode(w, r, op)
	if !ok {
		return
	}
	run, err := h.deps.Audit(r.Context(), records)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleSubmitAudit handles POST /audits.
func (h *AuditHandler) HandleSubmitAudit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_audit"
	records, ok := h.decode(w, r, op)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	sub, err := h.deps.SubmitAudit(r.Context(), key, records)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, submitResponse{Submission: sub})
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{Submission: sub, Status: model.RunQueued})
}

// HandleGetAuditRun handles GET /audits/{run_id}.
func (h *AuditHandler) HandleGetAuditRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_audit_run"
	id := r.PathValue("run_id")
	run, err := h.deps.AuditRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
