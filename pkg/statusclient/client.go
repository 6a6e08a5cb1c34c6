// Package statusclient polls the resume status endpoint with adaptive
// backoff until a caller-supplied condition holds.
package statusclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultInitialInterval = 2 * time.Second
	DefaultMaxInterval     = 10 * time.Second
	DefaultMultiplier      = 1.5
)

type Status struct {
	ResumeID               string  `json:"resumeId"`
	Status                 string  `json:"status"`
	Error                  *string `json:"error"`
	ErrorType              string  `json:"errorType,omitempty"`
	ProgressPercentage     int     `json:"progressPercentage"`
	EstimatedTimeRemaining int     `json:"estimatedTimeRemaining"`
	RecoverySuggestion     string  `json:"recoverySuggestion,omitempty"`
	StatusDescription      string  `json:"statusDescription"`
}

// Settled reports whether no background stage is running.
func (s *Status) Settled() bool {
	switch s.Status {
	case "parsing", "analyzing", "reprocessing", "uploaded":
		return false
	}
	return true
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		Initial:    DefaultInitialInterval,
		Max:        DefaultMaxInterval,
		Multiplier: DefaultMultiplier,
	}
}

// Get fetches the current status once.
func (c *Client) Get(ctx context.Context, resumeID string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/resumes/"+resumeID+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("get status: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var s Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &s, nil
}

// Poll fetches the status until done returns true, a request fails, or ctx
// ends. The wait grows by Multiplier after each check up to Max. onUpdate,
// when set, sees every status.
func (c *Client) Poll(ctx context.Context, resumeID string, done func(*Status) bool, onUpdate func(*Status)) (*Status, error) {
	if done == nil {
		done = (*Status).Settled
	}
	interval := c.Initial
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		s, err := c.Get(ctx, resumeID)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(s)
		}
		if done(s) {
			return s, nil
		}

		timer.Reset(interval)
		interval = c.next(interval)
	}
}

func (c *Client) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * c.Multiplier)
	if n > c.Max {
		return c.Max
	}
	return n
}
