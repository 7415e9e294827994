// Package client talks to the editor backend's REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/confedit/autocomplete"
	"github.com/odvcencio/confedit/filetree"
)

// maxErrorBody caps how much of a failed response body ends up in an error
// message.
const maxErrorBody = 200

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// FileContent is the payload of a file read.
type FileContent struct {
	Filename string             `json:"filename"`
	Content  string             `json:"content"`
	Size     int64              `json:"size"`
	Modified filetree.Timestamp `json:"modified"`
}

// SaveResult is the payload of a successful save.
type SaveResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Config holds client configuration.
type Config struct {
	// BaseURL is where the API is mounted, e.g. "http://host:8099/" or a
	// sub-path such as "http://host/api/hassio_ingress/abc/".
	BaseURL string
	Timeout time.Duration
}

// Client performs the backend calls. Requests are never retried.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a client. A nil logger disables logging.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return &Client{
		base: base,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		log: log,
	}, nil
}

// EncodePath percent-encodes every segment of a slash-separated file path
// and keeps the separators.
func EncodePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// endpoint resolves an already-escaped relative path against the base URL.
func (c *Client) endpoint(escaped string) string {
	u := *c.base
	u.RawPath = ""
	return u.String() + escaped
}

// FetchEntities returns the entity list.
func (c *Client) FetchEntities(ctx context.Context) ([]autocomplete.Entity, error) {
	var out []autocomplete.Entity
	if err := c.getJSON(ctx, "api/entities", "fetch entities", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFiles returns the configuration file tree.
func (c *Client) FetchFiles(ctx context.Context) ([]*filetree.Node, error) {
	var out []*filetree.Node
	if err := c.getJSON(ctx, "api/files", "fetch files", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile returns the content and metadata of one file.
func (c *Client) ReadFile(ctx context.Context, path string) (*FileContent, error) {
	var out FileContent
	if err := c.getJSON(ctx, "api/files/"+EncodePath(path), "read file", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchServices returns the upstream service registry as raw JSON.
func (c *Client) FetchServices(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.getJSON(ctx, "api/services", "fetch services", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "health", "check health", &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("backend status %q", out.Status)
	}
	return nil
}

// SaveFile writes content to path. On failure the error message is the
// backend's own {"error": ...} text when it sent one.
func (c *Client) SaveFile(ctx context.Context, path, content string) (*SaveResult, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint("api/files/"+EncodePath(path)), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("save request failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("save file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    "Failed to save file: " + http.StatusText(resp.StatusCode),
		}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		c.log.Warn("save rejected", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("error", apiErr.Message))
		return nil, apiErr
	}

	var out SaveResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode save response: %w", err)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, escaped, verb string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(escaped), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("endpoint", escaped), zap.Error(err))
		return fmt.Errorf("%s: %w", verb, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("Failed to %s: %s", verb, http.StatusText(resp.StatusCode))
		if b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); len(bytes.TrimSpace(b)) > 0 {
			msg += " - " + string(bytes.TrimSpace(b))
		}
		c.log.Debug("request rejected", zap.String("endpoint", escaped), zap.Int("status", resp.StatusCode))
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", escaped, err)
	}
	return nil
}
