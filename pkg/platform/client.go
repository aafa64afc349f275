// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultCallTimeout = 5 * time.Second

// Client is an HTTP+JSON client for the platform registry and projects
// services. Every call is bounded by a per-call timeout.
type Client struct {
	baseURL     string
	token       string
	callTimeout time.Duration
	httpClient  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a platform client against baseURL authenticating
// with the given service token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		token:       token,
		callTimeout: defaultCallTimeout,
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreateConfig stores a new configuration item and returns its id.
func (c *Client) CreateConfig(ctx context.Context, projectID int64, cfgType string, payload json.RawMessage) (string, error) {
	in := Config{ProjectID: projectID, Type: cfgType, Payload: payload}
	var out Config
	if err := c.do(ctx, http.MethodPost, "/api/v1/configs", nil, in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// FindConfigs returns all configuration items of cfgType for a project.
func (c *Client) FindConfigs(ctx context.Context, projectID int64, cfgType string) ([]Config, error) {
	q := url.Values{}
	q.Set("project_id", strconv.FormatInt(projectID, 10))
	q.Set("type", cfgType)

	var out []Config
	if err := c.do(ctx, http.MethodGet, "/api/v1/configs", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateConfig replaces the payload of an existing configuration item.
func (c *Client) UpdateConfig(ctx context.Context, id string, payload json.RawMessage) error {
	in := Config{Payload: payload}
	return c.do(ctx, http.MethodPut, "/api/v1/configs/"+url.PathEscape(id), nil, in, nil)
}

// GetProjectByID fetches a project by its numeric id.
func (c *Client) GetProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	var out Project
	path := "/api/v1/projects/" + strconv.FormatInt(projectID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckUserInProject reports whether the user is a member of the project.
func (c *Client) CheckUserInProject(ctx context.Context, projectID, userID int64) (bool, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))

	var out struct {
		Member bool `json:"member"`
	}
	path := "/api/v1/projects/" + strconv.FormatInt(projectID, 10) + "/membership"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return false, err
	}
	return out.Member, nil
}
