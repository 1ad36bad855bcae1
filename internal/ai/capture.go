package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/greencycle/greencycle/internal/model"
)

// Capture frame outcomes recorded in metrics.
const (
	FrameAnalyzed = "analyzed"
	FrameFailed   = "failed"
	FrameDropped  = "dropped"
)

// CaptureResult is the analysis of one captured frame.
type CaptureResult struct {
	Index    int                     `json:"index"`
	Result   *model.PredictionResult `json:"result"`
	Archived string                  `json:"archived,omitempty"`
	Err      error                   `json:"-"`
}

// Capture reads up to n frames from the camera feed and analyzes them,
// waiting on limiter between submissions. Frames that arrive while the
// limiter is closed are dropped so analysis always sees a recent picture.
// A failed analysis is reported to fn and does not end the capture. n <= 0
// captures until ctx is done or the feed ends.
func (c *Client) Capture(ctx context.Context, n int, limiter *rate.Limiter, fn func(CaptureResult) error) error {
	feed, err := c.VideoFeed(ctx)
	if err != nil {
		return err
	}
	defer feed.Close()
	return c.captureFrom(ctx, feed, n, limiter, fn)
}

type frameSource interface {
	Next() (Frame, error)
}

func (c *Client) captureFrom(ctx context.Context, src frameSource, n int, limiter *rate.Limiter, fn func(CaptureResult) error) error {
	analyzed := 0
	for n <= 0 || analyzed < n {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("capture: %w", err)
		}

		if limiter != nil && !limiter.Allow() {
			c.metrics.IncCaptureFrame(FrameDropped)
			continue
		}

		res := CaptureResult{Index: analyzed}
		res.Result, res.Err = c.AnalyzeCapturedImage(ctx, frame.DataURL())
		if res.Err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.metrics.IncCaptureFrame(FrameFailed)
			c.logger.Warn("frame analysis failed",
				slog.Int("frame", analyzed),
				slog.String("error", res.Err.Error()),
			)
		} else {
			c.metrics.IncCaptureFrame(FrameAnalyzed)
			loc, err := c.ArchiveAnnotated(ctx, res.Result)
			if err != nil {
				c.logger.Warn("archive failed", slog.String("error", err.Error()))
			}
			res.Archived = loc
		}
		analyzed++

		if err := fn(res); err != nil {
			return err
		}
	}
	return nil
}
