// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/miniscope/calab/lib/netutil"
	"github.com/miniscope/calab/lib/npy"
)

// Client calls a running bridge the way the browser tool does.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the bridge at baseURL, e.g.
// "http://127.0.0.1:41234". A handoff URL carrying a ?bridge= parameter
// is also accepted; the parameter's value is used.
func NewClient(baseURL string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("bridge: invalid bridge URL %q: %w", baseURL, err)
	}
	if inner := parsed.Query().Get("bridge"); inner != "" {
		return NewClient(inner)
	}
	if parsed.Scheme != "http" || parsed.Host == "" {
		return nil, fmt.Errorf("bridge: bridge URL %q must be an absolute http URL", baseURL)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(parsed.Scheme+"://"+parsed.Host+parsed.Path, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// BaseURL returns the bridge address the client calls.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks the plain-text liveness route.
func (c *Client) Health(ctx context.Context) error {
	response, err := c.do(ctx, http.MethodGet, PathHealth, nil)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return fmt.Errorf("bridge: reading health response: %w", err)
	}
	if string(body) != "ok" {
		return fmt.Errorf("bridge: unexpected health response %q", body)
	}
	return nil
}

// Status fetches the readiness probe.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.getJSON(ctx, PathStatus, &status)
	return status, err
}

// Metadata fetches the sampling rate and matrix dimensions.
func (c *Client) Metadata(ctx context.Context) (Metadata, error) {
	var metadata Metadata
	err := c.getJSON(ctx, PathMetadata, &metadata)
	return metadata, err
}

// Traces downloads and decodes the traces matrix.
func (c *Client) Traces(ctx context.Context) (*mat.Dense, error) {
	response, err := c.do(ctx, http.MethodGet, PathTraces, nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	traces, err := npy.Decode(response.Body)
	if err != nil {
		return nil, fmt.Errorf("bridge: decoding traces: %w", err)
	}
	return traces, nil
}

// Heartbeat tells the bridge the tool is still open.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.postJSON(ctx, PathHeartbeat, nil)
}

// SendParams posts an exported configuration. The payload is sent as
// JSON and must encode to an object.
func (c *Client) SendParams(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bridge: encoding params: %w", err)
	}
	return c.postJSON(ctx, PathParams, body)
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	response, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if err := netutil.DecodeResponse(response.Body, v); err != nil {
		return fmt.Errorf("bridge: GET %s: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte) error {
	response, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	var ack Ack
	if err := netutil.DecodeResponse(response.Body, &ack); err != nil {
		return fmt.Errorf("bridge: POST %s: %w", path, err)
	}
	if ack.Status != "ok" {
		return fmt.Errorf("bridge: POST %s: unexpected status %q", path, ack.Status)
	}
	return nil
}

// do sends a request and returns the response if it is a 200. Any other
// status is returned as an error carrying the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("bridge: building %s %s: %w", method, path, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("bridge: %s %s: %w", method, path, err)
	}
	if response.StatusCode != http.StatusOK {
		defer response.Body.Close()
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   response.StatusCode,
			Body:   strings.TrimSpace(netutil.ErrorBody(response.Body)),
		}
	}
	return response, nil
}

// StatusError is returned by Client when the bridge answers with a
// status other than 200.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bridge: %s %s: HTTP %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("bridge: %s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}
