package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/richxcame/driver-agent/internal/auth"
	"github.com/richxcame/driver-agent/pkg/common"
	"github.com/richxcame/driver-agent/pkg/config"
	"github.com/richxcame/driver-agent/pkg/httpclient"
	"github.com/richxcame/driver-agent/pkg/models"
	"github.com/richxcame/driver-agent/pkg/resilience"
)

// Client talks to the platform REST API with bearer authentication,
// retries and a circuit breaker. It mirrors the accept/reject socket
// events over REST and serves the cancel-reason list.
type Client struct {
	http    *httpclient.Client
	breaker *resilience.CircuitBreaker

	mu      sync.Mutex
	reasons []CancelReason
}

// NewClient creates a platform API client
func NewClient(cfg config.APIConfig, tokens *auth.TokenSource) *Client {
	return &Client{
		http: httpclient.NewClient(cfg.BaseURL, cfg.Timeout,
			httpclient.WithDefaultRetry(),
			httpclient.WithAuthorization(tokens.Header),
		),
		breaker: resilience.NewCircuitBreaker(resilience.Settings{
			Name:    "platform-api",
			Timeout: 30 * time.Second,
		}, nil),
	}
}

// Profile fetches the driver's account record
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	body, err := c.get(ctx, "/user-details")
	if err != nil {
		return nil, err
	}

	var resp envelope[Profile]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &resp.Data, nil
}

// ToggleWorkStatus flips the driver's availability on the platform
func (c *Client) ToggleWorkStatus(ctx context.Context, active bool) error {
	_, err := c.post(ctx, "/toggle-work-status", WorkStatusRequest{Active: active})
	return err
}

// CancelReasons returns the server-supplied cancellation reason list.
// The list rarely changes, so the first successful fetch is cached and
// served when the API is unreachable.
func (c *Client) CancelReasons(ctx context.Context) ([]CancelReason, error) {
	body, err := c.get(ctx, "/cancel-reasons")
	if err != nil {
		c.mu.Lock()
		cached := c.reasons
		c.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	var resp envelope[[]CancelReason]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode cancel reasons: %w", err)
	}

	c.mu.Lock()
	c.reasons = resp.Data
	c.mu.Unlock()
	return resp.Data, nil
}

// ValidReason reports whether a reason code is on the cached list. An
// empty cache accepts any non-empty reason rather than blocking the
// cancellation on an unreachable API.
func (c *Client) ValidReason(code string) bool {
	if code == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.reasons) == 0 {
		return true
	}
	for _, reason := range c.reasons {
		if reason.Code == code {
			return true
		}
	}
	return false
}

// AcceptRide mirrors the socket accept event over REST
func (c *Client) AcceptRide(ctx context.Context, requestID string, payload models.AcceptPayload) error {
	_, err := c.post(ctx, "/accept-ride/"+requestID, payload)
	return err
}

// RejectRide mirrors the socket reject event over REST
func (c *Client) RejectRide(ctx context.Context, requestID string, payload models.RejectPayload) error {
	_, err := c.post(ctx, "/reject-ride/"+requestID, payload)
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.http.Get(ctx, path)
	})
	if err != nil {
		return nil, common.NewConnectionError("platform api unreachable", err)
	}
	return result.([]byte), nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.http.Post(ctx, path, body)
	})
	if err != nil {
		return nil, common.NewConnectionError("platform api unreachable", err)
	}
	return result.([]byte), nil
}
