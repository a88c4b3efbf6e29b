// Package client talks to the tsuite status server.
//
//	c, err := client.New("http://harness:8097")
//	if err != nil {
//	    return err
//	}
//	st, err := c.Status(ctx)
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"evalgo.org/tsuite/internal/api"
	"evalgo.org/tsuite/models"
)

// Client is a status server client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health is the response of the health endpoint.
type Health struct {
	Status    string `json:"status"`
	Resources int    `json:"resources"`
	Error     string `json:"error,omitempty"`
}

// Health reports whether the server has a topology loaded. An unhealthy
// server is not an error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &h, nil
}

// Resources lists the topology of the fleet.
func (c *Client) Resources(ctx context.Context) (*api.ResourceList, error) {
	var out api.ResourceList
	if err := c.get(ctx, "/api/v1/resources", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status runs a live status check of every resource.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.get(ctx, "/api/v1/status", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// StatusOf runs a live status check of the resources of one kind.
func (c *Client) StatusOf(ctx context.Context, kind models.Kind) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.get(ctx, "/api/v1/status/"+url.PathEscape(string(kind)), &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, v interface{}, accept ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	for _, code := range accept {
		if resp.StatusCode == code {
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			return nil
		}
	}

	apiErr := &api.APIError{Code: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
