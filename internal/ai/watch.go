package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greencycle/greencycle/internal/model"
)

// stopWriteTimeout bounds the farewell message on shutdown.
const stopWriteTimeout = time.Second

// WebSocketURL derives the detection socket address from the service URL.
func WebSocketURL(base *url.URL) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + websocketPath
	u.RawQuery = ""
	return u.String()
}

// DecodeDetectionEvent parses one socket message. The service sends either
// a bare list of predictions or an event object.
func DecodeDetectionEvent(data []byte) (model.DetectionEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var preds []model.Prediction
		if err := json.Unmarshal(trimmed, &preds); err != nil {
			return model.DetectionEvent{}, fmt.Errorf("decode detections: %w", err)
		}
		return model.DetectionEvent{Predictions: preds}, nil
	}
	var ev model.DetectionEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return model.DetectionEvent{}, fmt.Errorf("decode detections: %w", err)
	}
	return ev, nil
}

// Watch streams live detections to fn until ctx is done, the server closes
// the socket or fn returns an error. On ctx cancellation the service is told
// to stop before the socket closes and Watch returns nil.
func (c *Client) Watch(ctx context.Context, fn func(model.DetectionEvent) error) error {
	wsURL := WebSocketURL(c.api.BaseURL())
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect detection socket: %w", err)
	}
	c.logger.Info("detection socket connected", slog.String("url", wsURL))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(stopWriteTimeout)
			_ = conn.SetWriteDeadline(deadline)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(websocketStopText))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read detection socket: %w", err)
		}

		ev, err := DecodeDetectionEvent(data)
		if err != nil {
			c.logger.Warn("skipping malformed detection message", slog.String("error", err.Error()))
			continue
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		if err := fn(ev); err != nil {
			conn.Close()
			if errors.Is(err, ErrStopWatch) {
				return nil
			}
			return err
		}
	}
}

// ErrStopWatch can be returned by a Watch callback to end the session
// without an error.
var ErrStopWatch = errors.New("stop watching")
