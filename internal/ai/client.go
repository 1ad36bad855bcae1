// Package ai is the client for the external inference service: image
// classification, recycling advice, game scoring and the live camera feed.
//
// The service is called without credentials.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/model"
)

// Service paths.
const (
	predictPath       = "/ai/predict-image"
	advicePath        = "/chatbot/advice"
	analyzePath       = "/analyze-captured-image"
	game1Path         = "/game1/submit"
	game2Path         = "/game2/submit"
	DefaultVideoPath  = "/video_feed"
	websocketPath     = "/ws"
	websocketStopText = "stop"
)

// ErrNoInput is returned when a request carries nothing to analyze.
var ErrNoInput = errors.New("no image supplied")

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// VideoPath overrides the camera stream path.
	VideoPath string
	Dialer    *websocket.Dialer
	Archive   Archiver
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Client calls the inference service.
type Client struct {
	api       *apiclient.Client
	http      *http.Client
	dialer    *websocket.Dialer
	videoPath string
	archive   Archiver
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = apiclient.NewHTTPClient()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.VideoPath == "" {
		opts.VideoPath = DefaultVideoPath
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	api, err := apiclient.New(apiclient.Options{
		BaseURL:    opts.BaseURL,
		Timeout:    opts.Timeout,
		Service:    "ai",
		HTTPClient: opts.HTTPClient,
		Metrics:    opts.Metrics,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("ai client: %w", err)
	}

	return &Client{
		api:       api,
		http:      opts.HTTPClient,
		dialer:    opts.Dialer,
		videoPath: opts.VideoPath,
		archive:   opts.Archive,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "ai"),
	}, nil
}

// ImageInput is one image to classify. Exactly one source must be set.
type ImageInput struct {
	File     io.Reader
	Filename string
	URL      string
	// Base64 is a data URL or bare base64 payload.
	Base64 string
}

func (in ImageInput) validate() error {
	n := 0
	if in.File != nil {
		n++
	}
	if in.URL != "" {
		n++
	}
	if in.Base64 != "" {
		n++
	}
	switch n {
	case 0:
		return ErrNoInput
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: set only one of file, url or base64", model.ErrInvalidInput)
	}
}

// PredictImage classifies the trash in one image.
func (c *Client) PredictImage(ctx context.Context, in ImageInput) (*model.PredictionResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	var files []apiclient.FormFile
	switch {
	case in.File != nil:
		name := in.Filename
		if name == "" {
			name = "image.jpg"
		}
		files = append(files, apiclient.FormFile{Field: "file", Filename: name, ContentType: "image/jpeg", Data: in.File})
	case in.URL != "":
		fields["image_url"] = in.URL
	default:
		fields["image_base64"] = in.Base64
	}

	var out model.PredictionResult
	if err := c.api.PostMultipart(ctx, predictPath, fields, files, &out); err != nil {
		return nil, fmt.Errorf("predict image: %w", err)
	}
	return &out, nil
}

// Advice returns recycling guidance for each label.
func (c *Client) Advice(ctx context.Context, labels []string) (map[string]model.Advice, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels", model.ErrInvalidInput)
	}
	out := map[string]model.Advice{}
	if err := c.api.Post(ctx, advicePath, map[string]any{"labels": labels}, &out); err != nil {
		return nil, fmt.Errorf("advice: %w", err)
	}
	return out, nil
}

// AnalyzeCapturedImage classifies a captured camera frame.
func (c *Client) AnalyzeCapturedImage(ctx context.Context, imageBase64 string) (*model.PredictionResult, error) {
	if imageBase64 == "" {
		return nil, ErrNoInput
	}
	var out model.PredictionResult
	if err := c.api.Post(ctx, analyzePath, map[string]string{"image_base64": imageBase64}, &out); err != nil {
		return nil, fmt.Errorf("analyze captured image: %w", err)
	}
	return &out, nil
}

// Game1Request is a spot-the-trash submission. With no selections it is a
// detection pass.
type Game1Request struct {
	Data         string            `json:"data"`
	QuestionType string            `json:"question_type"`
	Selections   []model.Selection `json:"selections"`
}

// SubmitGame1 scores a game 1 round, or detects trash when no selections
// are given.
func (c *Client) SubmitGame1(ctx context.Context, req Game1Request) (*model.Game1Result, error) {
	if req.Data == "" {
		return nil, ErrNoInput
	}
	if req.Selections == nil {
		req.Selections = []model.Selection{}
	}
	var out model.Game1Result
	if err := c.api.Post(ctx, game1Path, req, &out); err != nil {
		return nil, fmt.Errorf("submit game 1: %w", err)
	}
	return &out, nil
}

// SubmitGame2 scores the images sorted into bins.
func (c *Client) SubmitGame2(ctx context.Context, items []model.SortedItem) (*model.Game2Result, error) {
	if len(items) == 0 {
		return nil, ErrNoInput
	}
	var out model.Game2Result
	if err := c.api.Post(ctx, game2Path, map[string]any{"items": items}, &out); err != nil {
		return nil, fmt.Errorf("submit game 2: %w", err)
	}
	return &out, nil
}

// FetchImage downloads an image as a data URL.
func (c *Client) FetchImage(ctx context.Context, url string) (string, error) {
	return FetchDataURL(ctx, c.http, url)
}

// ArchiveAnnotated stores a result's annotated image and returns its
// location. It is a no-op without a configured archive.
func (c *Client) ArchiveAnnotated(ctx context.Context, res *model.PredictionResult) (string, error) {
	if c.archive == nil || res == nil || res.ImageWithBoxes == "" {
		return "", nil
	}
	mimeType, data, err := DecodeDataURL(res.ImageWithBoxes)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	key := ArchiveKey(mimeType)
	loc, err := c.archive.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType)
	if err != nil {
		return "", fmt.Errorf("archive annotated image: %w", err)
	}
	c.logger.Debug("archived annotated image", slog.String("key", key))
	return loc, nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
