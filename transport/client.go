package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/xerrors"

	"github.com/st-keller/event-counter/component"
)

// ErrNotFound is returned when the component or attribute does not exist.
var ErrNotFound = xerrors.New("not found")

// Client queries a remote introspection surface served by NewHandler.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the surface at baseURL
// (e.g., "http://127.0.0.1:9464").
func NewClient(baseURL string, tlsCfg TLSConfig) (*Client, error) {
	if baseURL == "" {
		return nil, xerrors.New("baseURL required")
	}
	httpClient, err := BuildHTTP2Client(tlsCfg)
	if err != nil {
		return nil, xerrors.Errorf("build HTTP client: %w", err)
	}
	return NewClientWithHTTP(baseURL, httpClient), nil
}

// NewClientWithHTTP creates a client using an existing http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// CloseIdleConnections closes connections kept alive by the underlying transport.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

// List returns the registered component names.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/components", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Collect returns a component's snapshot. Integer values decode as json.Number.
func (c *Client) Collect(ctx context.Context, name string) (component.Snapshot, error) {
	var snap component.Snapshot
	if err := c.do(ctx, http.MethodGet, "/components/"+url.PathEscape(name), nil, &snap); err != nil {
		return component.Snapshot{}, err
	}
	return snap, nil
}

// GetAttribute reads one attribute. Integer values decode as json.Number.
func (c *Client) GetAttribute(ctx context.Context, name, attr string) (any, error) {
	var body Attribute
	path := "/components/" + url.PathEscape(name) + "/attributes/" + url.PathEscape(attr)
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Value, nil
}

// Invoke runs an operation on a remote component.
func (c *Client) Invoke(ctx context.Context, name, op string, args ...any) (any, error) {
	var body io.Reader
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, xerrors.Errorf("marshal arguments: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	var result any
	path := "/components/" + url.PathEscape(name) + "/operations/" + url.PathEscape(op)
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return xerrors.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return xerrors.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode >= 300:
		var apiErr Error
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		return xerrors.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Message)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return xerrors.Errorf("decode response: %w", err)
	}
	return nil
}
