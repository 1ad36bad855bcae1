package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/testutil"
)

func newTestClient(t *testing.T, opts Options) (*testutil.Backend, *Client) {
	t.Helper()
	backend := testutil.NewBackend(t)
	opts.BaseURL = backend.URL()
	if opts.Logger == nil {
		opts.Logger = testutil.DiscardLogger()
	}
	c, err := New(opts)
	require.NoError(t, err)
	return backend, c
}

func readForm(t *testing.T, req testutil.RecordedRequest) *multipart.Form {
	t.Helper()
	r, err := http.NewRequest(req.Method, "/", bytes.NewReader(req.Body))
	require.NoError(t, err)
	r.Header = req.Header
	require.NoError(t, r.ParseMultipartForm(1<<20))
	return r.MultipartForm
}

var sampleResult = map[string]any{
	"counts":           map[string]int{"PLASTIC": 2, "METAL": 1},
	"image_with_boxes": "data:image/png;base64,iVBORw0KGgo=",
	"predictions": []map[string]any{
		{"trash_type": "PLASTIC", "confidence": 0.91, "bounding_box": map[string]float64{"x": 1, "y": 2, "width": 3, "height": 4}},
	},
}

func TestPredictImage_ByURL(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/ai/predict-image", testutil.JSON(http.StatusOK, sampleResult))

	res, err := c.PredictImage(context.Background(), ImageInput{URL: "https://img.example/bottle.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Counts["PLASTIC"])
	require.Len(t, res.Predictions, 1)
	assert.InDelta(t, 0.91, res.Predictions[0].Confidence, 1e-9)
	assert.Equal(t, []string{"METAL", "PLASTIC"}, res.Labels())

	last := backend.Last(t)
	form := readForm(t, last)
	assert.Equal(t, []string{"https://img.example/bottle.jpg"}, form.Value["image_url"])
	assert.Empty(t, form.File)
	assert.Empty(t, last.Header.Get(apiclient.HeaderAuthorization))
}

func TestPredictImage_ByFile(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/ai/predict-image", testutil.JSON(http.StatusOK, sampleResult))

	_, err := c.PredictImage(context.Background(), ImageInput{File: strings.NewReader("jpegbytes"), Filename: "can.jpg"})
	require.NoError(t, err)

	form := readForm(t, backend.Last(t))
	require.Len(t, form.File["file"], 1)
	assert.Equal(t, "can.jpg", form.File["file"][0].Filename)
	assert.Empty(t, form.Value["image_url"])
	assert.Empty(t, form.Value["image_base64"])
}

func TestPredictImage_InputValidation(t *testing.T) {
	backend, c := newTestClient(t, Options{})

	_, err := c.PredictImage(context.Background(), ImageInput{})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = c.PredictImage(context.Background(), ImageInput{URL: "https://a/b.jpg", Base64: "aGk="})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	assert.Empty(t, backend.Requests())
}

func TestAdvice(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/chatbot/advice", testutil.JSON(http.StatusOK, map[string]any{
		"PLASTIC": map[string]string{"concept": "Plastic", "advice": "Rinse it", "references": "https://ref"},
	}))

	advice, err := c.Advice(context.Background(), []string{"PLASTIC"})
	require.NoError(t, err)
	assert.Equal(t, "Rinse it", advice["PLASTIC"].Advice)

	var body struct {
		Labels []string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(backend.Last(t).Body, &body))
	assert.Equal(t, []string{"PLASTIC"}, body.Labels)

	_, err = c.Advice(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestAnalyzeCapturedImage(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/analyze-captured-image", testutil.JSON(http.StatusOK, sampleResult))

	res, err := c.AnalyzeCapturedImage(context.Background(), "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ImageWithBoxes)
	assert.JSONEq(t, `{"image_base64":"data:image/jpeg;base64,AAAA"}`, string(backend.Last(t).Body))

	_, err = c.AnalyzeCapturedImage(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestSubmitGame1_DetectionPassSendsEmptySelections(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/game1/submit", testutil.JSON(http.StatusOK, map[string]any{
		"predictions": sampleResult["predictions"],
		"correct":     0,
		"incorrect":   0,
	}))

	res, err := c.SubmitGame1(context.Background(), Game1Request{Data: "data:image/jpeg;base64,AAAA"})
	require.NoError(t, err)
	assert.Len(t, res.Predictions, 1)
	assert.JSONEq(t, `{"data":"data:image/jpeg;base64,AAAA","question_type":"","selections":[]}`, string(backend.Last(t).Body))
}

func TestSubmitGame1_Scoring(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/game1/submit", testutil.JSON(http.StatusOK, map[string]any{"correct": 1, "incorrect": 0}))

	res, err := c.SubmitGame1(context.Background(), Game1Request{
		Data:         "data:image/jpeg;base64,AAAA",
		QuestionType: "PLASTIC",
		Selections:   []model.Selection{{XRatio: 0.25, YRatio: 0.5, TrashType: "PLASTIC"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Correct)

	var body Game1Request
	require.NoError(t, json.Unmarshal(backend.Last(t).Body, &body))
	assert.Equal(t, "PLASTIC", body.QuestionType)
	require.Len(t, body.Selections, 1)
	assert.InDelta(t, 0.25, body.Selections[0].XRatio, 1e-9)
}

func TestSubmitGame2(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/game2/submit", testutil.JSON(http.StatusOK, map[string]any{
		"results": []map[string]any{{"selected_bin": "METAL", "predicted_bin": "METAL", "is_correct": true}},
		"score":   map[string]int{"correct": 1, "incorrect": 0, "total": 1},
	}))

	res, err := c.SubmitGame2(context.Background(), []model.SortedItem{{SelectedBin: model.BinMetal, ImageBase64: "AAAA"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score.Total)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].IsCorrect)
	assert.JSONEq(t, `{"items":[{"selected_bin":"METAL","image_base64":"AAAA"}]}`, string(backend.Last(t).Body))

	_, err = c.SubmitGame2(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestSubmit_ServerErrorClassified(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	backend.Router.Post("/game2/submit", testutil.JSON(http.StatusInternalServerError, map[string]string{"error": "model offline"}))

	_, err := c.SubmitGame2(context.Background(), []model.SortedItem{{SelectedBin: model.BinGlass, ImageBase64: "AAAA"}})
	assert.ErrorIs(t, err, apiclient.ErrServer)
	assert.Equal(t, []string{"model offline"}, apiclient.Messages(err))
}

type fakeArchive struct {
	key         string
	contentType string
	data        []byte
	err         error
}

func (f *fakeArchive) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.key, f.contentType, f.data = key, contentType, data
	return "s3://bucket/" + key, nil
}

func TestArchiveAnnotated(t *testing.T) {
	archive := &fakeArchive{}
	_, c := newTestClient(t, Options{Archive: archive})

	res := &model.PredictionResult{ImageWithBoxes: EncodeDataURL("image/png", []byte("png-bytes"))}
	loc, err := c.ArchiveAnnotated(context.Background(), res)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(archive.key, "predictions/"))
	assert.True(t, strings.HasSuffix(archive.key, ".png"))
	assert.Equal(t, "image/png", archive.contentType)
	assert.Equal(t, []byte("png-bytes"), archive.data)
	assert.Equal(t, "s3://bucket/"+archive.key, loc)
}

func TestArchiveAnnotated_Disabled(t *testing.T) {
	_, c := newTestClient(t, Options{})
	loc, err := c.ArchiveAnnotated(context.Background(), &model.PredictionResult{ImageWithBoxes: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	assert.Empty(t, loc)
}

func TestArchiveAnnotated_Error(t *testing.T) {
	boom := errors.New("bucket gone")
	_, c := newTestClient(t, Options{Archive: &fakeArchive{err: boom}})
	_, err := c.ArchiveAnnotated(context.Background(), &model.PredictionResult{ImageWithBoxes: "data:image/png;base64,AAAA"})
	assert.ErrorIs(t, err, boom)
}

func TestArchiveKey_Unique(t *testing.T) {
	a, b := ArchiveKey("image/png"), ArchiveKey("image/jpeg")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(b, ".jpg"))
}

func TestFetchImage(t *testing.T) {
	backend, c := newTestClient(t, Options{})
	pngHeader := []byte("\x89PNG\r\n\x1a\n0000")
	backend.Router.Get("/images/{name}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "name") != "bottle.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pngHeader)
	})

	got, err := c.FetchImage(context.Background(), backend.URL()+"/images/bottle.png")
	require.NoError(t, err)
	assert.Equal(t, EncodeDataURL("image/png", pngHeader), got)

	_, err = c.FetchImage(context.Background(), backend.URL()+"/images/missing.png")
	assert.Error(t, err)
}

func TestDataURL(t *testing.T) {
	s := EncodeDataURL("image/jpeg", []byte("hello"))
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", s)

	mimeType, data, err := DecodeDataURL(s)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)
	assert.Equal(t, []byte("hello"), data)

	mimeType, data, err = DecodeDataURL("aGVsbG8=")
	require.NoError(t, err)
	assert.Empty(t, mimeType)
	assert.Equal(t, []byte("hello"), data)

	for _, bad := range []string{"data:image/png,plain", "data:image/png;base64", "not base64!"} {
		_, _, err := DecodeDataURL(bad)
		assert.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost:8000"})
	assert.Error(t, err)
}

func TestNew_DefaultsApplied(t *testing.T) {
	c, err := New(Options{BaseURL: "http://localhost:8000"})
	require.NoError(t, err)
	assert.Equal(t, DefaultVideoPath, c.videoPath)
	assert.NotNil(t, c.dialer)
	_, ok := c.metrics.(*metrics.NoopRecorder)
	assert.True(t, ok)
}
