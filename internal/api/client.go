// Package api is the HTTP gateway to the remote todo service.
// A Client holds configuration only; every call is an independent round trip
// with no retry and no caching.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Makepad-fr/tada/internal/model"
)

const (
	DefaultBaseURL = "http://localhost:3001"
	DefaultTimeout = 10 * time.Second

	// cap on how much of an error body we keep for logs and messages
	maxErrorBody = 4 << 10
)

type Client struct {
	baseURL *url.URL
	hc      *http.Client
	log     *slog.Logger
}

type Option func(*options)

type options struct {
	timeout time.Duration
	hc      *http.Client
	log     *slog.Logger
}

func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithHTTPClient uses hc's transport. Its Timeout is replaced by the client timeout.
func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.hc = hc } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// New builds a Client for baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}

	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	hc := &http.Client{}
	if o.hc != nil {
		cp := *o.hc
		hc = &cp
	}
	hc.Timeout = o.timeout
	if o.log == nil {
		o.log = slog.Default()
	}

	return &Client{baseURL: u, hc: hc, log: o.log.With("component", "api")}, nil
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// List fetches every todo, in server order.
func (c *Client) List(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, "list", http.MethodGet, c.baseURL.JoinPath("todos"), nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// Create submits a new todo and returns the record the server stored.
func (c *Client) Create(ctx context.Context, req model.CreateRequest) (model.Item, error) {
	var it model.Item
	if err := c.do(ctx, "create", http.MethodPost, c.baseURL.JoinPath("todos"), req, &it); err != nil {
		return model.Item{}, err
	}
	return it, nil
}

// Update sends only the fields set in req.
func (c *Client) Update(ctx context.Context, id int64, req model.UpdateRequest) (model.Item, error) {
	var it model.Item
	if err := c.do(ctx, "update", http.MethodPatch, c.itemURL(id), req, &it); err != nil {
		return model.Item{}, err
	}
	return it, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete", http.MethodDelete, c.itemURL(id), nil, nil)
}

func (c *Client) itemURL(id int64) *url.URL {
	return c.baseURL.JoinPath("todos", strconv.FormatInt(id, 10))
}

// do performs one round trip. body is JSON-encoded when non-nil; out is
// decoded from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, op, method string, u *url.URL, body, out any) error {
	reqID := uuid.NewString()
	log := c.log.With("op", op, "method", method, "url", u.String(), "request_id", reqID)

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return c.fail(log, &RequestError{Op: op, Err: fmt.Errorf("encode body: %w", err)})
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return c.fail(log, &RequestError{Op: op, Err: fmt.Errorf("build request: %w", err)})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return c.fail(log, &NetworkError{Op: op, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(log, &ResponseError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return c.fail(log, &RequestError{Op: op, Err: fmt.Errorf("decode response: %w", err)})
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	log.Debug("api call ok", "status", resp.StatusCode, "duration", time.Since(start))
	return nil
}

// fail logs err according to its class and hands it back unchanged.
func (c *Client) fail(log *slog.Logger, err error) error {
	var (
		re *ResponseError
		ne *NetworkError
	)
	switch {
	case errors.As(err, &re):
		log.Error("api error", "status", re.StatusCode, "body", re.Body)
	case errors.As(err, &ne):
		log.Error("network error", "err", ne.Err)
	default:
		log.Error("request error", "err", err)
	}
	return err
}
