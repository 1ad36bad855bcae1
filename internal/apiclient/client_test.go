package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greencycle/greencycle/internal/events"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/testutil"
	"github.com/greencycle/greencycle/internal/tokenstore"
)

type fixture struct {
	backend  *testutil.Backend
	store    *tokenstore.MemoryStore
	registry *events.Registry
	metrics  *metrics.InMemoryRecorder
	client   *Client
	notified *atomic.Int64
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		backend:  testutil.NewBackend(t),
		store:    tokenstore.NewMemoryStore(),
		registry: events.NewRegistry(testutil.DiscardLogger()),
		metrics:  metrics.NewInMemory(),
		notified: &atomic.Int64{},
	}
	f.registry.Subscribe(func() { f.notified.Add(1) })

	o := Options{
		BaseURL:  f.backend.URL(),
		Store:    f.store,
		Registry: f.registry,
		Metrics:  f.metrics,
		Logger:   testutil.DiscardLogger(),
		Timeout:  5 * time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	f.client = c
	return f
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://nope"})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "://bad"})
	assert.Error(t, err)
}

func TestClient_AuthorizationHeader(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"no token", "", ""},
		{"bearer token sent verbatim", "Bearer abc.def", "Bearer abc.def"},
		{"raw token sent verbatim", "abc", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.Router.Get("/blogs", testutil.JSON(http.StatusOK, []any{}))
			if tt.token != "" {
				require.NoError(t, f.store.Save(context.Background(), tt.token, nil))
			}

			require.NoError(t, f.client.Get(context.Background(), "/blogs", nil))

			got := f.backend.Last(t)
			_, present := got.Header[HeaderAuthorization]
			assert.Equal(t, tt.token != "", present)
			assert.Equal(t, tt.want, got.Header.Get(HeaderAuthorization))
		})
	}
}

func TestClient_TokenReadPerRequest(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Get("/blogs", testutil.JSON(http.StatusOK, []any{}))
	ctx := context.Background()

	require.NoError(t, f.client.Get(ctx, "/blogs", nil))
	require.NoError(t, f.store.Save(ctx, "Bearer new", nil))
	require.NoError(t, f.client.Get(ctx, "/blogs", nil))
	require.NoError(t, f.store.Clear(ctx))
	require.NoError(t, f.client.Get(ctx, "/blogs", nil))

	reqs := f.backend.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].Header.Get(HeaderAuthorization))
	assert.Equal(t, "Bearer new", reqs[1].Header.Get(HeaderAuthorization))
	assert.Empty(t, reqs[2].Header.Get(HeaderAuthorization))
}

func TestClient_StandardHeaders(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.APIKey = "k-123" })
	f.backend.Router.Get("/sections", testutil.JSON(http.StatusOK, []any{}))

	require.NoError(t, f.client.Get(context.Background(), "/sections", nil))

	h := f.backend.Last(t).Header
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, DefaultUserAgent, h.Get("User-Agent"))
	assert.Equal(t, "k-123", h.Get(HeaderAPIKey))
	assert.Len(t, h.Get(HeaderRequestID), 36)
}

func TestClient_UnauthorizedBroadcast(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Get("/bloggers/1", testutil.JSON(http.StatusUnauthorized, map[string]string{"error": "You need to sign in"}))
	require.NoError(t, f.store.Save(context.Background(), "Bearer stale", nil))

	var seenBeforeReturn int64
	f.registry.Subscribe(func() { seenBeforeReturn = f.notified.Load() })

	err := f.client.Get(context.Background(), "/bloggers/1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, int64(1), f.notified.Load())
	assert.Equal(t, int64(1), seenBeforeReturn, "listeners run before the error is returned")
	assert.Equal(t, []string{"You need to sign in"}, Messages(err))

	// The client never clears the store on 401.
	assert.Equal(t, "Bearer stale", tokenstore.Token(context.Background(), f.store))
	assert.Equal(t, uint64(1), f.metrics.Snapshot().UnauthorizedBroadcasts)
}

func TestClient_SkipUnauthorizedBroadcast(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Post("/bloggers/sign_in", testutil.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid Email or password."}))

	err := f.client.Post(context.Background(), "/bloggers/sign_in", map[string]string{}, nil, SkipUnauthorizedBroadcast())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int64(0), f.notified.Load())
}

func TestClient_ConcurrentUnauthorizedEachBroadcast(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Get("/blogs/{id}", testutil.JSON(http.StatusUnauthorized, nil))

	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			_ = f.client.Get(context.Background(), "/blogs/1", nil)
			done <- struct{}{}
		}()
	}
	<-done
	<-done
	assert.Equal(t, int64(2), f.notified.Load())
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status   int
		body     any
		sentinel error
	}{
		{http.StatusForbidden, map[string]string{"error": "not yours"}, ErrForbidden},
		{http.StatusNotFound, nil, ErrNotFound},
		{http.StatusUnprocessableEntity, map[string]any{"errors": []string{"Title can't be blank"}}, ErrValidation},
		{http.StatusInternalServerError, nil, ErrServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := newFixture(t)
			f.backend.Router.Post("/blogs", testutil.JSON(tt.status, tt.body))

			err := f.client.Post(context.Background(), "/blogs", map[string]string{"a": "b"}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.NotErrorIs(t, err, ErrUnauthorized)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "/blogs", apiErr.Path)
			assert.Equal(t, int64(0), f.notified.Load())
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	f := newFixture(t)
	f.backend.Server.Close()

	err := f.client.Get(context.Background(), "/blogs", nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().Requests["api error"])
}

func TestClient_DecodeError(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Get("/blogs", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	})

	var out []map[string]any
	err := f.client.Get(context.Background(), "/blogs", &out)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestClient_QueryAndBody(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Patch("/blogs/{id}", testutil.JSON(http.StatusOK, map[string]any{"id": 3, "title": "New"}))

	var out struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	q := url.Values{"page": {"2"}}
	err := f.client.Patch(context.Background(), "/blogs/3", map[string]any{"blog": map[string]string{"title": "New"}}, &out, WithQuery(q))
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.ID)

	last := f.backend.Last(t)
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.Equal(t, "page=2", last.Query)
	assert.JSONEq(t, `{"blog":{"title":"New"}}`, string(last.Body))
	assert.Equal(t, "application/json", last.Header.Get("Content-Type"))
}

func TestClient_DoReturnsHeaders(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Post("/bloggers/sign_in", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Authorization", "Bearer fresh")
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"id": 1})
	})

	h, err := f.client.Do(context.Background(), http.MethodPost, "/bloggers/sign_in", map[string]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", h.Get("Authorization"))
}

func TestClient_NoContent(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Delete("/blogs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	var out map[string]any
	require.NoError(t, f.client.Delete(context.Background(), "/blogs/1", &out))
	assert.Nil(t, out)
}

func TestClient_PostMultipart(t *testing.T) {
	f := newFixture(t)
	var gotField, gotFile string
	f.backend.Router.Post("/games/{id}/upload_image", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotField = r.FormValue("name")
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		gotFile = string(data)
		testutil.WriteJSON(w, http.StatusCreated, map[string]any{"id": 8})
	})

	err := f.client.PostMultipart(context.Background(), "/games/2/upload_image",
		map[string]string{"name": "can"},
		[]FormFile{{Field: "image", Filename: "can.jpg", ContentType: "image/jpeg", Data: strings.NewReader("JPEGDATA")}},
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "can", gotField)
	assert.Equal(t, "JPEGDATA", gotFile)
}

func TestClient_Stream(t *testing.T) {
	f := newFixture(t)
	f.backend.Router.Get("/video_feed", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "frames")
	})
	f.backend.Router.Get("/missing", testutil.JSON(http.StatusNotFound, nil))

	resp, err := f.client.Stream(context.Background(), "/video_feed")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "frames", string(data))

	_, err = f.client.Stream(context.Background(), "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_BasePathPreserved(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.BaseURL += "/api/v1/" })
	f.backend.Router.Get("/api/v1/blogs", testutil.JSON(http.StatusOK, []any{}))

	require.NoError(t, f.client.Get(context.Background(), "blogs", nil))
	assert.Equal(t, "/api/v1/blogs", f.backend.Last(t).Path)
}
