package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

const defaultRatingsLimit = 50

// RatingsDependencies defines the interface for ranked rating reads.
type RatingsDependencies interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, raceID string) (Entry, error)
	MaxRatingsLimit() int
}

// RatingsHandler handles ratings requests.
type RatingsHandler struct {
	deps RatingsDependencies
}

// NewRatingsHandler creates a new ratings handler.
func NewRatingsHandler(deps RatingsDependencies) *RatingsHandler {
	return &RatingsHandler{deps: deps}
}

// HandleGetRatings handles GET /ratings?limit=N. The limit defaults to 50,
// or the configured maximum when that is lower, and may not exceed it.
func (h *RatingsHandler) HandleGetRatings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ratings"
	n := min(defaultRatingsLimit, h.deps.MaxRatingsLimit())
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be a positive integer, got %q", raw)))
			return
		}
	}
	if limit := h.deps.MaxRatingsLimit(); n > limit {
		writeError(w, http.StatusBadRequest, "limit_exceeded",
			WrapKind(op, ErrBadRequest, fmt.Errorf("limit %d exceeds %d", n, limit)))
		return
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetRating handles GET /ratings/{race_id}.
func (h *RatingsHandler) HandleGetRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rating"
	entry, err := h.deps.Rank(r.Context(), r.PathValue("race_id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
