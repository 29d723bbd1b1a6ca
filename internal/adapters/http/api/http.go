// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/racetier/internal/adapters/mq/queue"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/internal/domain/types"
)

// maxBodyBytes bounds request bodies; a corpus of a few thousand profiles
// fits comfortably.
const maxBodyBytes = 32 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ClassifyDependencies
	AuditDependencies
	RatingsDependencies
}

// Entry mirrors the read shape returned by ratings queries.
type Entry = types.RatingEntry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	classifyHandler *ClassifyHandler
	auditHandler    *AuditHandler
	ratingsHandler  *RatingsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		classifyHandler: NewClassifyHandler(deps),
		auditHandler:    NewAuditHandler(deps),
		ratingsHandler:  NewRatingsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /classify", MetricsMiddleware(s.classifyHandler.HandleClassify, "classify"))
	mux.HandleFunc("POST /audit", MetricsMiddleware(s.auditHandler.HandleAudit, "audit"))
	mux.HandleFunc("POST /audits", MetricsMiddleware(s.auditHandler.HandleSubmitAudit, "audits"))
	mux.HandleFunc("GET /audits/{run_id}", MetricsMiddleware(s.auditHandler.HandleGetAuditRun, "audit_run"))
	mux.HandleFunc("GET /ratings", MetricsMiddleware(s.ratingsHandler.HandleGetRatings, "ratings"))
	mux.HandleFunc("GET /ratings/{race_id}", MetricsMiddleware(s.ratingsHandler.HandleGetRating, "rating"))
}

// auditRequest mirrors the OpenAPI schema for POST /audit and POST /audits.
type auditRequest struct {
	Records []rating.RaceRating `json:"records"`
}

func (a auditRequest) validate() error {
	if len(a.Records) == 0 {
		return errors.New("records must not be empty")
	}
	seen := make(map[string]bool, len(a.Records))
	for i, r := range a.Records {
		if r.RaceID == "" {
			return fmt.Errorf("records[%d]: missing race_id", i)
		}
		if seen[r.RaceID] {
			return fmt.Errorf("records[%d]: duplicate race_id %q", i, r.RaceID)
		}
		seen[r.RaceID] = true
	}
	return nil
}

type submitResponse struct {
	model.Submission
	Status model.RunStatus `json:"status,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
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

// writeServiceError maps errors from the service layer to responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, rating.ErrMalformedRecord):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
