// Package client talks to the raterd HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/racetier/internal/adapters/http/api"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/internal/domain/types"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// Client is a raterd API client.
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health calls GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// SubmitAudit queues records under key. An empty key disables
// deduplication on the server.
func (c *Client) SubmitAudit(ctx context.Context, key string, records []rating.RaceRating) (model.Submission, error) {
	body, err := json.Marshal(struct {
		Records []rating.RaceRating `json:"records"`
	}{records})
	if err != nil {
		return model.Submission{}, fmt.Errorf("encode records: %w", err)
	}
	header := http.Header{}
	if key != "" {
		header.Set(api.IdempotencyHeader, key)
	}
	var sub model.Submission
	if err := c.call(ctx, http.MethodPost, "/audits", header, body, &sub); err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

// AuditRun fetches one audit run.
func (c *Client) AuditRun(ctx context.Context, id string) (model.AuditRun, error) {
	var run model.AuditRun
	err := c.call(ctx, http.MethodGet, "/audits/"+url.PathEscape(id), nil, nil, &run)
	return run, err
}

// WaitAuditRun polls the run until it is done or failed.
func (c *Client) WaitAuditRun(ctx context.Context, id string) (model.AuditRun, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		run, err := c.AuditRun(ctx, id)
		if err != nil {
			return model.AuditRun{}, err
		}
		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return model.AuditRun{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Ratings fetches the top limit ratings. A limit of zero uses the server
// default.
func (c *Client) Ratings(ctx context.Context, limit int) ([]types.RatingEntry, error) {
	path := "/ratings"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var entries []types.RatingEntry
	err := c.call(ctx, http.MethodGet, path, nil, nil, &entries)
	return entries, err
}

// Rating fetches the ranked entry of one race.
func (c *Client) Rating(ctx context.Context, raceID string) (types.RatingEntry, error) {
	var entry types.RatingEntry
	err := c.call(ctx, http.MethodGet, "/ratings/"+url.PathEscape(raceID), nil, nil, &entry)
	return entry, err
}

func (c *Client) call(ctx context.Context, method, path string, header http.Header, body []byte, out any) error {
	resp, err := c.do(ctx, method, path, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeStatusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode body: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeStatusError(status int, data []byte) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return &StatusError{Status: status, Message: strings.TrimSpace(string(data))}
	}
	return &StatusError{Status: status, Code: body.Code, Message: body.Message}
}

// VerifyRanking checks a ratings listing: overall scores never increase,
// ties are ordered by race id and share a rank, and each new score takes
// the next rank.
func VerifyRanking(entries []types.RatingEntry) error {
	for i, e := range entries {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("%w: first entry %s has rank %d", ErrUnordered, e.RaceID, e.Rank)
			}
			continue
		}
		prev := entries[i-1]
		switch {
		case e.OverallScore > prev.OverallScore:
			return fmt.Errorf("%w: %s (%d) ranked below %s (%d)",
				ErrUnordered, e.RaceID, e.OverallScore, prev.RaceID, prev.OverallScore)
		case e.OverallScore == prev.OverallScore && (e.Rank != prev.Rank || e.RaceID < prev.RaceID):
			return fmt.Errorf("%w: tie between %s and %s", ErrUnordered, prev.RaceID, e.RaceID)
		case e.OverallScore < prev.OverallScore && e.Rank != prev.Rank+1:
			return fmt.Errorf("%w: %s has rank %d after rank %d", ErrUnordered, e.RaceID, e.Rank, prev.Rank)
		}
	}
	return nil
}
