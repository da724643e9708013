package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kikiluvv/spotlight/internal/annotations"
	"github.com/kikiluvv/spotlight/internal/config"
	"github.com/kikiluvv/spotlight/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "Labels": [
    {"Timestamp": 2000, "Label": {"Name": "Face", "Instances": []}},
    {"Timestamp": 2000, "Label": {"Name": "Suit", "Instances": []}},
    {"Timestamp": 2000, "Label": {"Name": "Man", "Instances": [
      {"BoundingBox": {"Width": 0.3, "Height": 0.6, "Left": 0.2, "Top": 0.1}}
    ]}}
  ],
  "Celebrities": [
    {"Timestamp": 0, "Celebrity": {"Name": "Jeff Bezos", "BoundingBox": {"Width": 0.25, "Height": 0.5, "Left": 0.5, "Top": 0.25}}},
    {"Timestamp": 1800, "Celebrity": {"Name": "Jeff Bezos", "BoundingBox": {"Width": 0.1, "Height": 0.2, "Left": 0.3, "Top": 0.4}}},
    {"Timestamp": 4000, "Celebrity": {"Name": "Jeff Bezos", "BoundingBox": {"Width": 0.25, "Height": 0.5, "Left": 0.5, "Top": 0.25}}}
  ]
}`

func newTestApp(t *testing.T, mutate func(*config.Config)) (*fiber.App, *pipeline.Pipeline) {
	t.Helper()

	cfg := config.Default()
	cfg.Annotations.RequiredLabels = []string{"Face", "Suit"}
	cfg.Edit.OutputDir = t.TempDir()
	cfg.FFmpeg.BinaryPath = "spotlight-missing-ffmpeg"
	cfg.FFmpeg.ProbePath = "spotlight-missing-ffprobe"
	if mutate != nil {
		mutate(cfg)
	}

	store, err := annotations.Parse([]byte(fixture))
	require.NoError(t, err)
	p, err := pipeline.New(zerolog.Nop(), cfg, store)
	require.NoError(t, err)

	return NewServer(zerolog.Nop(), p), p
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["ffmpeg"])
}

func TestMatch(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/match", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.8, body["timestampSec"])
	assert.Equal(t, "identity", body["source"])
	assert.Equal(t, true, body["hasBox"])

	box, ok := body["box"].(map[string]any)
	require.True(t, ok, "box: %v", body["box"])
	assert.Equal(t, 0.2, box["Left"])
}

func TestMatchNotFound(t *testing.T) {
	app, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Annotations.RequiredLabels = []string{"Hat"}
	})

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/match", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.EqualValues(t, http.StatusNotFound, body["status"])
	assert.NotEmpty(t, body["error"])
}

func TestAppearances(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/appearances?subject=Jeff%20Bezos", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Jeff Bezos", body["subject"])

	intervals, ok := body["intervals"].([]any)
	require.True(t, ok)
	require.Len(t, intervals, 3)

	first := intervals[0].(map[string]any)
	assert.Equal(t, 0.0, first["start"])
	assert.Equal(t, 1.8, first["end"])
	assert.Contains(t, first, "boundingBox")
}

func TestAppearancesUnknownSubject(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/appearances?subject=Nobody", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["intervals"])
}

func TestOverlay(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/overlay?t=1.9&frameW=1280&frameH=720&mode=direct", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["visible"])

	geometry := body["geometry"].(map[string]any)
	box := geometry["box"].(map[string]any)
	assert.Equal(t, "direct", geometry["mode"])
	assert.InDelta(t, 128.0, box["w"], 1e-9)
	assert.InDelta(t, 144.0, box["h"], 1e-9)
}

func TestOverlayWindow(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/overlay?t=0&frameW=1280&frameH=720&mode=window", nil))
	require.Equal(t, http.StatusOK, status)

	geometry := body["geometry"].(map[string]any)
	window := geometry["window"].(map[string]any)
	assert.Contains(t, window, "masks")
}

func TestOverlayNotVisible(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/overlay?t=10&frameW=1280&frameH=720", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["visible"])
	assert.NotContains(t, body, "geometry")
}

func TestOverlayBadQuery(t *testing.T) {
	app, _ := newTestApp(t, nil)

	cases := []string{
		"/api/overlay?frameW=1280&frameH=720",
		"/api/overlay?t=abc&frameW=1280&frameH=720",
		"/api/overlay?t=1&frameW=0&frameH=720",
		"/api/overlay?t=1&frameW=1280&frameH=720&mode=zoom",
	}
	for _, path := range cases {
		t.Run(path, func(t *testing.T) {
			status, body := do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGenerateVideoBadRequests(t *testing.T) {
	app, _ := newTestApp(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"timestamps": [`},
		{"missing timestamps", `{"outputFileName": "a.mp4"}`},
		{"empty timestamps", `{"timestamps": []}`},
		{"only zero-length", `{"timestamps": [{"start": 1, "end": 1, "boundingBox": {"Width": 0.5, "Height": 0.5, "Left": 0, "Top": 0}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, postJSON("/api/generate_video", tt.body))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.EqualValues(t, http.StatusBadRequest, body["status"])
		})
	}
}

func TestGenerateVideoInvalidSegment(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, _ := do(t, app, postJSON("/api/generate_video",
		`{"timestamps": [{"start": 0, "end": 2, "boundingBox": {"Width": 0, "Height": 0, "Left": 0, "Top": 0}}]}`))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGenerateVideoBusy(t *testing.T) {
	app, p := newTestApp(t, nil)

	release, err := p.Reserve(p.Config().OutputPath("busy.mp4"))
	require.NoError(t, err)
	defer release()

	status, body := do(t, app, postJSON("/api/generate_video",
		`{"timestamps": [{"start": 0, "end": 2, "boundingBox": {"Width": 0.5, "Height": 0.5, "Left": 0, "Top": 0}}], "outputFileName": "busy.mp4"}`))
	assert.Equal(t, http.StatusConflict, status)
	assert.EqualValues(t, http.StatusConflict, body["status"])
}

func TestGenerateVideoExecutionFailed(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, body := do(t, app, postJSON("/api/generate_video",
		`{"timestamps": [{"start": 0, "end": 2, "boundingBox": {"Width": 0.5, "Height": 0.5, "Left": 0, "Top": 0}}]}`))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "ffmpeg")
}

func TestGenerateVideoRejectsInputsAsOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(source, []byte("video"), 0644))

	app, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Edit.OutputDir = dir
		cfg.Edit.SourceVideo = source
		cfg.Annotations.Path = filepath.Join(dir, "rekognition.json")
	})

	for _, name := range []string{"source.mp4", "rekognition.json", ".", "..", "/"} {
		t.Run(name, func(t *testing.T) {
			status, body := do(t, app, postJSON("/api/generate_video",
				`{"timestamps": [{"start": 0, "end": 2, "boundingBox": {"Width": 0.5, "Height": 0.5, "Left": 0, "Top": 0}}], "outputFileName": "`+name+`"}`))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.EqualValues(t, http.StatusBadRequest, body["status"])
		})
	}

	assert.FileExists(t, source)
	assert.DirExists(t, dir)
}
