package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
)

// ClassifyDependencies defines the interface for single-record classification.
type ClassifyDependencies interface {
	Classify(ctx context.Context, r rating.RaceRating) (model.Classified, error)
}

// ClassifyHandler handles classify requests.
type ClassifyHandler struct {
	deps ClassifyDependencies
}

// NewClassifyHandler creates a new classify handler.
func NewClassifyHandler(deps ClassifyDependencies) *ClassifyHandler {
	return &ClassifyHandler{deps: deps}
}

// HandleClassify handles POST /classify. A record that cannot be scored
// answers 422 with its violations.
func (h *ClassifyHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	const op = "api.classify"
	var rec rating.RaceRating
	if err := decodeBody(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if rec.RaceID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing race_id")))
		return
	}

	out, err := h.deps.Classify(r.Context(), rec)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, rating.ErrMissingDimension), errors.Is(err, rating.ErrScoreOutOfRange):
		writeJSON(w, http.StatusUnprocessableEntity, out)
	default:
		writeServiceError(w, op, err)
	}
}
