package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/greencycle/greencycle/internal/apiclient"
)

// ErrNotMultipart is returned when the camera endpoint does not answer with
// a multipart stream.
var ErrNotMultipart = errors.New("video feed is not a multipart stream")

// maxFrameBytes caps a single JPEG frame.
const maxFrameBytes = 8 << 20

// Frame is one JPEG image taken from the camera stream.
type Frame struct {
	ContentType string
	Data        []byte
}

// DataURL renders the frame for the capture endpoint.
func (f Frame) DataURL() string {
	ct := f.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return EncodeDataURL(ct, f.Data)
}

// FrameReader reads frames from an open MJPEG stream.
type FrameReader struct {
	body io.ReadCloser
	mr   *multipart.Reader
}

// VideoFeed opens the camera's multipart/x-mixed-replace stream.
func (c *Client) VideoFeed(ctx context.Context) (*FrameReader, error) {
	resp, err := c.api.Stream(ctx, c.videoPath, apiclient.WithHeader("Accept", "multipart/x-mixed-replace"))
	if err != nil {
		return nil, fmt.Errorf("open video feed: %w", err)
	}
	fr, err := NewFrameReader(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return fr, nil
}

// NewFrameReader wraps a stream body given its Content-Type header.
func NewFrameReader(contentType string, body io.ReadCloser) (*FrameReader, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	boundary := params["boundary"]
	if !strings.HasPrefix(mediaType, "multipart/") || boundary == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotMultipart, mediaType)
	}
	// Some cameras repeat the leading dashes in the header parameter.
	boundary = strings.TrimPrefix(boundary, "--")
	return &FrameReader{body: body, mr: multipart.NewReader(body, boundary)}, nil
}

// Next returns the next frame, or io.EOF when the stream ends.
func (r *FrameReader) Next() (Frame, error) {
	for {
		part, err := r.mr.NextPart()
		if err != nil {
			return Frame{}, err
		}
		data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes+1))
		part.Close()
		if err != nil {
			return Frame{}, fmt.Errorf("read frame: %w", err)
		}
		if len(data) > maxFrameBytes {
			return Frame{}, fmt.Errorf("read frame: larger than %d bytes", maxFrameBytes)
		}
		if len(data) == 0 {
			continue
		}
		return Frame{ContentType: part.Header.Get("Content-Type"), Data: data}, nil
	}
}

// Close releases the stream.
func (r *FrameReader) Close() error {
	return r.body.Close()
}
