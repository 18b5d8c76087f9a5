// Package devices talks to the external device/camera registry. The engine
// consults it for exactly one fact: how many devices are attached to a zone,
// which gates zone deletion. Registry trouble blocks deletion rather than
// letting it through.
package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
)

var ErrRegistryUnavailable = errors.New("device registry unavailable")

// Client queries the registry over HTTP with bounded retries and a circuit
// breaker, so a flapping registry cannot stall administrative calls.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	maxAttempts uint
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxAttempts bounds retries per lookup.
func WithMaxAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("device registry base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: 3,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "device-registry",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type deviceCountResponse struct {
	Count int `json:"count"`
}

// DeviceCount returns the number of devices attached to a zone.
func (c *Client) DeviceCount(ctx context.Context, zoneID string) (int, error) {
	zoneID = strings.TrimSpace(zoneID)
	if zoneID == "" {
		return 0, errors.New("zone id is required")
	}

	result, err := c.breaker.Execute(func() (any, error) {
		var count int
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(c.maxAttempts),
			retry.LastErrorOnly(true),
		)
		retryErr := r.Do(func() error {
			var callErr error
			count, callErr = c.fetchCount(ctx, zoneID)
			return callErr
		})
		return count, retryErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return result.(int), nil
}

func (c *Client) fetchCount(ctx context.Context, zoneID string) (int, error) {
	endpoint := fmt.Sprintf("%s/v1/zones/%s/devices/count", c.baseURL, url.PathEscape(zoneID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("registry returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload deviceCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode registry response: %w", err)
	}
	if payload.Count < 0 {
		return 0, fmt.Errorf("registry reported negative count %d", payload.Count)
	}
	return payload.Count, nil
}

// Static always reports a fixed device count. Deployments without a registry
// use a zero-count Static so the child-zone precondition still applies.
type Static struct {
	Count int
}

func (s Static) DeviceCount(ctx context.Context, zoneID string) (int, error) {
	return s.Count, nil
}
