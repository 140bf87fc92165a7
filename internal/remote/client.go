// Package remote implements the HTTP client for the practice-management
// API: entity create/update, the demographic patient search used for
// fallback identity matching, and a health probe. Transient failures
// (network, 5xx, 429) and permanent rejections (other 4xx) surface as
// distinct error types so the sync engine can retry the former and fail
// fast on the latter.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryCeiling = 3

	// maxBodyBytes bounds how much of an error response is kept for the
	// failure report.
	maxBodyBytes = 4096
)

// Entity is the remote payload of one record: remote attribute name to
// rendered string value.
type Entity map[string]string

// Candidate is one result of the demographic patient search.
type Candidate struct {
	RemoteID    string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
}

// SearchCriteria are the demographic keys of the fallback match.
type SearchCriteria struct {
	FirstName   string
	LastName    string
	DateOfBirth string // ISO 8601
}

// Config carries the remote endpoint settings.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration // per-request; zero means defaultTimeout
	RetryCeiling int           // attempts per call; zero means defaultRetryCeiling
}

// Client talks to the remote API. Safe for concurrent use.
type Client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	retryCeiling int
	backoff      backoff
	logger       *slog.Logger
}

// New creates a client from config. BaseURL must be non-empty; trailing
// slashes are normalized away.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote base URL not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ceiling := cfg.RetryCeiling
	if ceiling <= 0 {
		ceiling = defaultRetryCeiling
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		http:         &http.Client{Timeout: timeout},
		retryCeiling: ceiling,
		backoff:      defaultBackoff,
		logger:       logger,
	}, nil
}

// Create posts a new entity to a resource collection and returns the
// remote-assigned id. resource is a collection path relative to the API
// root, e.g. "patients" or "patients/91003/contact-lens-rx".
func (c *Client) Create(ctx context.Context, resource string, entity Entity) (string, error) {
	op := "create " + resource
	var created struct {
		ID string `json:"id"`
	}
	err := c.withRetry(ctx, op, func() error {
		return c.do(ctx, op, http.MethodPost, c.apiURL(resource), entity, &created)
	})
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &RejectedError{Op: op, StatusCode: http.StatusOK, Body: "response missing entity id"}
	}
	return created.ID, nil
}

// Update replaces an existing entity's synced attributes.
func (c *Client) Update(ctx context.Context, resource, remoteID string, entity Entity) error {
	op := "update " + resource
	return c.withRetry(ctx, op, func() error {
		return c.do(ctx, op, http.MethodPut, c.apiURL(resource)+"/"+url.PathEscape(remoteID), entity, nil)
	})
}

// Search runs the demographic patient search. Matching is the server's:
// exact on last name, first name and date of birth, case-insensitive on
// the names. An empty result is not an error.
func (c *Client) Search(ctx context.Context, criteria SearchCriteria) ([]Candidate, error) {
	op := "search patients"
	q := url.Values{}
	q.Set("lastName", criteria.LastName)
	q.Set("firstName", criteria.FirstName)
	if criteria.DateOfBirth != "" {
		q.Set("dateOfBirth", criteria.DateOfBirth)
	}

	var result struct {
		Patients []Candidate `json:"patients"`
	}
	err := c.withRetry(ctx, op, func() error {
		return c.do(ctx, op, http.MethodGet, c.apiURL("patients/search")+"?"+q.Encode(), nil, &result)
	})
	if err != nil {
		return nil, err
	}
	return result.Patients, nil
}

// Health probes the API root. Used by the CLI before a run so a dead
// endpoint fails fast instead of burning retries per record.
func (c *Client) Health(ctx context.Context) error {
	op := "health check"
	return c.withRetry(ctx, op, func() error {
		return c.do(ctx, op, http.MethodGet, c.apiURL("health"), nil, nil)
	})
}

func (c *Client) apiURL(resource string) string {
	return c.baseURL + "/api/v1/" + resource
}

// do performs one HTTP exchange. A nil body sends no payload; a nil out
// discards the response body.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode payload: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return classify(op, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RejectedError{Op: op, StatusCode: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}
	return nil
}
