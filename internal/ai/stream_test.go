package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/testutil"
)

func writeMJPEG(t *testing.T, w io.Writer, frames ...string) string {
	t.Helper()
	mw := multipart.NewWriter(w)
	for _, f := range frames {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.Boundary()
}

func TestFrameReader(t *testing.T) {
	var buf strings.Builder
	boundary := writeMJPEG(t, &buf, "frame-1", "frame-2")

	fr, err := NewFrameReader("multipart/x-mixed-replace; boundary="+boundary, io.NopCloser(strings.NewReader(buf.String())))
	require.NoError(t, err)
	defer fr.Close()

	f, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "frame-1", string(f.Data))
	assert.Equal(t, "image/jpeg", f.ContentType)
	assert.Equal(t, EncodeDataURL("image/jpeg", []byte("frame-1")), f.DataURL())

	f, err = fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "frame-2", string(f.Data))

	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_RejectsNonMultipart(t *testing.T) {
	body := io.NopCloser(strings.NewReader(""))
	for _, ct := range []string{"image/jpeg", "multipart/x-mixed-replace", ""} {
		_, err := NewFrameReader(ct, body)
		assert.ErrorIs(t, err, ErrNotMultipart, ct)
	}
}

func TestVideoFeed(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Get("/video_feed", func(w http.ResponseWriter, _ *http.Request) {
		var buf strings.Builder
		boundary := writeMJPEG(t, &buf, "only-frame")
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
		_, _ = io.WriteString(w, buf.String())
	})

	fr, err := c.VideoFeed(context.Background())
	require.NoError(t, err)
	defer fr.Close()

	f, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "only-frame", string(f.Data))
}

func TestVideoFeed_CustomPath(t *testing.T) {
	backend, c := newTestClient(t, Options{VideoPath: "/video-feed"})
	backend.Router.Get("/video-feed", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
	})

	_, err := c.VideoFeed(context.Background())
	assert.ErrorIs(t, err, ErrNotMultipart)
	assert.Equal(t, "/video-feed", backend.Last(t).Path)
}

type sliceSource struct {
	frames []Frame
	i      int
}

func (s *sliceSource) Next() (Frame, error) {
	if s.i >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

func frames(n int) *sliceSource {
	src := &sliceSource{}
	for i := 0; i < n; i++ {
		src.frames = append(src.frames, Frame{ContentType: "image/jpeg", Data: []byte(fmt.Sprintf("f%d", i))})
	}
	return src
}

func TestCapture_AnalyzesUpToN(t *testing.T) {
	rec := metrics.NewInMemory()
	backend, c := newTestClient(t, Options{Metrics: rec})
	backend.Router.Post("/analyze-captured-image", testutil.JSON(http.StatusOK, sampleResult))

	var got []CaptureResult
	err := c.captureFrom(context.Background(), frames(5), 3, rate.NewLimiter(rate.Inf, 1), func(r CaptureResult) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, i, r.Index)
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, uint64(3), rec.Snapshot().CaptureFrames[FrameAnalyzed])
	assert.Len(t, backend.Requests(), 3)
}

func TestCapture_DropsFramesWhileThrottled(t *testing.T) {
	rec := metrics.NewInMemory()
	backend, c := newTestClient(t, Options{Metrics: rec})
	backend.Router.Post("/analyze-captured-image", testutil.JSON(http.StatusOK, sampleResult))

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	var count int
	err := c.captureFrom(context.Background(), frames(4), 0, limiter, func(CaptureResult) error {
		count++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	snap := rec.Snapshot()
	assert.Equal(t, uint64(1), snap.CaptureFrames[FrameAnalyzed])
	assert.Equal(t, uint64(3), snap.CaptureFrames[FrameDropped])
}

func TestCapture_FailedFrameDoesNotStop(t *testing.T) {
	rec := metrics.NewInMemory()
	backend, c := newTestClient(t, Options{Metrics: rec})
	backend.Router.Post("/analyze-captured-image", testutil.JSON(http.StatusBadGateway, nil))

	var results []CaptureResult
	err := c.captureFrom(context.Background(), frames(2), 0, nil, func(r CaptureResult) error {
		results = append(results, r)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.Equal(t, uint64(2), rec.Snapshot().CaptureFrames[FrameFailed])
}

func TestCapture_CallbackErrorStops(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/analyze-captured-image", testutil.JSON(http.StatusOK, sampleResult))

	boom := errors.New("enough")
	err := c.captureFrom(context.Background(), frames(3), 0, nil, func(CaptureResult) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, backend.Requests(), 1)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws"},
		{"https://ai.example.com/v1", "wss://ai.example.com/v1/ws"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, WebSocketURL(u))
	}
}

func TestDecodeDetectionEvent(t *testing.T) {
	ev, err := DecodeDetectionEvent([]byte(` [{"trash_type":"GLASS","confidence":0.5}]`))
	require.NoError(t, err)
	require.Len(t, ev.Predictions, 1)
	assert.Equal(t, "GLASS", ev.Predictions[0].TrashType)

	ev, err = DecodeDetectionEvent([]byte(`{"predictions":[],"counts":{"GLASS":0}}`))
	require.NoError(t, err)
	assert.Contains(t, ev.Counts, "GLASS")

	_, err = DecodeDetectionEvent([]byte(`nope`))
	assert.Error(t, err)
}

type wsServer struct {
	*httptest.Server
	mu       sync.Mutex
	received []string
	gotStop  chan struct{}
}

func newWSServer(t *testing.T, messages ...string) *wsServer {
	t.Helper()
	s := &wsServer{gotStop: make(chan struct{})}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, string(data))
			s.mu.Unlock()
			if string(data) == "stop" {
				close(s.gotStop)
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newWSClient(t *testing.T, s *wsServer) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: s.URL, Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	return c
}

func TestWatch_DeliversEvents(t *testing.T) {
	s := newWSServer(t,
		`[{"trash_type":"PLASTIC","confidence":0.8}]`,
		`garbage`,
		`{"predictions":[{"trash_type":"METAL","confidence":0.7}]}`,
	)
	c := newWSClient(t, s)

	var events []model.DetectionEvent
	err := c.Watch(context.Background(), func(ev model.DetectionEvent) error {
		events = append(events, ev)
		if len(events) == 2 {
			return ErrStopWatch
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "PLASTIC", events[0].Predictions[0].TrashType)
	assert.Equal(t, "METAL", events[1].Predictions[0].TrashType)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestWatch_SendsStopOnCancel(t *testing.T) {
	s := newWSServer(t, `[]`)
	c := newWSClient(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Watch(ctx, func(model.DetectionEvent) error {
			cancel()
			return nil
		})
	}()

	select {
	case <-s.gotStop:
	case <-time.After(5 * time.Second):
		t.Fatal("server never received stop")
	}
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_CallbackError(t *testing.T) {
	s := newWSServer(t, `[]`)
	c := newWSClient(t, s)

	boom := errors.New("render failed")
	err := c.Watch(context.Background(), func(model.DetectionEvent) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWatch_DialFailure(t *testing.T) {
	_, c := newTestClient(t, Options{})
	err := c.Watch(context.Background(), func(model.DetectionEvent) error { return nil })
	assert.Error(t, err)
}
