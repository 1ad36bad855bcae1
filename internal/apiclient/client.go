// Package apiclient is the shared HTTP client for the REST backend and the AI
// service.
//
// Every request passes through a RoundTripper that attaches the stored token
// verbatim as the Authorization header. A 401 response triggers the
// unauthorized broadcast before the error reaches the caller; the client
// never retries, never refreshes and never touches the token store itself.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/greencycle/greencycle/internal/events"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/tokenstore"
)

// DefaultUserAgent identifies the client to the backend.
const DefaultUserAgent = "greencycle-cli/1.0"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	// Timeout bounds each non-streaming request. Zero means no bound.
	Timeout time.Duration
	// Service labels metrics and logs ("api", "ai").
	Service string

	// Store supplies the bearer token. Nil sends no Authorization header.
	Store tokenstore.Store
	// Registry receives the unauthorized broadcast. Nil disables it.
	Registry *events.Registry

	HTTPClient *http.Client
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Client talks JSON to one base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	service string
	metrics metrics.Recorder
	logger  *slog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", opts.BaseURL)
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Service == "" {
		opts.Service = "api"
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = NewHTTPClient()
	}
	baseTransport := hc.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	wrapped := *hc
	wrapped.Transport = &authTransport{
		base:      baseTransport,
		store:     opts.Store,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
	}

	return &Client{
		baseURL: base,
		http:    &wrapped,
		timeout: opts.Timeout,
		service: opts.Service,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "apiclient", "service", opts.Service),
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// RequestOption customizes one request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	query         url.Values
	header        http.Header
	skipBroadcast bool
}

// WithQuery appends query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) {
		for k, vs := range q {
			for _, v := range vs {
				rc.query.Add(k, v)
			}
		}
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.header.Set(key, value)
	}
}

// SkipUnauthorizedBroadcast suppresses the 401 broadcast for this request.
// Only sign-in and sign-out use it.
func SkipUnauthorizedBroadcast() RequestOption {
	return func(rc *requestConfig) {
		rc.skipBroadcast = true
	}
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	_, err := c.Do(ctx, http.MethodGet, path, nil, out, opts...)
	return err
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	_, err := c.Do(ctx, http.MethodPost, path, body, out, opts...)
	return err
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	_, err := c.Do(ctx, http.MethodPatch, path, body, out, opts...)
	return err
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
	return err
}

// Do sends a JSON request and returns the response headers. A nil body sends
// no payload; a nil out discards the response body.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) (http.Header, error) {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, out, opts)
}

// FormFile is one file part of a multipart request.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        io.Reader
}

// PostMultipart sends a multipart/form-data POST.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []FormFile, out any, opts ...RequestOption) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create form file %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Data); err != nil {
			return fmt.Errorf("write form file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	_, err := c.send(ctx, http.MethodPost, path, &buf, w.FormDataContentType(), out, opts)
	return err
}

// Stream issues a GET and hands back the open response for the caller to
// consume. Non-2xx statuses are returned as *APIError. The caller closes the
// body.
func (c *Client) Stream(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "", opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(c.service, metrics.StatusClass(0), time.Since(start))
		return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, path, err)
	}
	c.metrics.ObserveRequest(c.service, metrics.StatusClass(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, c.apiError(req, resp)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string, opts []RequestOption) (*http.Request, error) {
	rc := &requestConfig{query: url.Values{}, header: http.Header{}}
	for _, opt := range opts {
		opt(rc)
	}

	u, err := c.resolve(path, rc.query)
	if err != nil {
		return nil, err
	}

	if rc.skipBroadcast {
		ctx = withSkipBroadcast(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range rc.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	q := ref.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any, opts []RequestOption) (http.Header, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, body, contentType, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(c.service, metrics.StatusClass(0), duration)
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveRequest(c.service, metrics.StatusClass(resp.StatusCode), duration)
	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
		slog.String("request_id", requestID(resp)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, c.apiError(req, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Header, fmt.Errorf("%w: read %s %s: %v", ErrTransport, method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.Header, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.Header, fmt.Errorf("%w: %s %s: %v", ErrDecode, method, path, err)
	}
	return resp.Header, nil
}

func (c *Client) apiError(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Status:   resp.StatusCode,
		Method:   req.Method,
		Path:     req.URL.Path,
		Messages: parseMessages(body),
		Body:     body,
	}
}

func requestID(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return resp.Request.Header.Get(HeaderRequestID)
}
