package apiclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/greencycle/greencycle/internal/events"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/tokenstore"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 30 * time.Second
)

// Header names set on every request.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderAPIKey        = "X-API-Key"
)

// NewHTTPClient creates an HTTP client with bounded connection setup. It has
// no overall timeout so that streaming responses survive; per-request
// deadlines come from the context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

type ctxKey int

const skipBroadcastKey ctxKey = iota

func withSkipBroadcast(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipBroadcastKey, true)
}

func skipBroadcast(ctx context.Context) bool {
	v, _ := ctx.Value(skipBroadcastKey).(bool)
	return v
}

// authTransport decorates outgoing requests with the stored token and fires
// the unauthorized broadcast on 401 responses.
type authTransport struct {
	base      http.RoundTripper
	store     tokenstore.Store
	registry  *events.Registry
	metrics   metrics.Recorder
	apiKey    string
	userAgent string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())

	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	if r.Header.Get(HeaderRequestID) == "" {
		r.Header.Set(HeaderRequestID, uuid.New().String())
	}
	if t.apiKey != "" {
		r.Header.Set(HeaderAPIKey, t.apiKey)
	}

	// The token is sent exactly as stored, scheme prefix included.
	r.Header.Del(HeaderAuthorization)
	if t.store != nil {
		if token := tokenstore.Token(r.Context(), t.store); token != "" {
			r.Header.Set(HeaderAuthorization, token)
		}
	}

	resp, err := t.base.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.registry != nil && !skipBroadcast(r.Context()) {
		t.metrics.IncUnauthorizedBroadcast()
		t.registry.NotifyAll()
	}
	return resp, nil
}
