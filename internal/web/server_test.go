package web

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/station"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

type idleReader struct{ ctx context.Context }

func (r *idleReader) Read() (image.Image, error) {
	<-r.ctx.Done()
	return nil, r.ctx.Err()
}

func (r *idleReader) Close() error { return nil }

type noFaces struct{}

func (noFaces) Load(ctx context.Context) error { return nil }

func (noFaces) Detect(ctx context.Context, img image.Image) (*detect.Detection, error) {
	return nil, nil
}

type noDispatch struct{}

func (noDispatch) Send(ctx context.Context, frame image.Image, dir attendance.Direction) (*attendance.MatchResponse, error) {
	return nil, context.Canceled
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := station.New(
		station.Config{Name: "entry", Direction: attendance.Entry, URL: "http://cam/stream0/index.m3u8"},
		station.Deps{
			Open: func(ctx context.Context, url string) (stream.Reader, error) {
				return &idleReader{ctx: ctx}, nil
			},
			Detector:   noFaces{},
			Dispatcher: noDispatch{},
		},
	)
	if err != nil {
		t.Fatalf("failed to create station: %v", err)
	}
	m, err := station.NewManager(s)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 0}}
	return NewServer(cfg, m)
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/stations", http.StatusOK},
		{http.MethodGet, "/api/v1/stations/entry", http.StatusOK},
		{http.MethodGet, "/api/v1/stations/exit", http.StatusNotFound},
		{http.MethodPost, "/api/v1/stations/entry/start", http.StatusOK},
		{http.MethodPost, "/api/v1/stations/entry/stop", http.StatusOK},
		{http.MethodGet, "/api/v1/stations/entry/start", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/stations/entry/snapshot", http.StatusNotFound},
		{http.MethodGet, "/", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			srv.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
		})
	}
}

func TestServer_StartThenStatus(t *testing.T) {
	srv := newTestServer(t)

	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/stations/entry/start", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("start failed with status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/stations/entry", nil))

	var status struct {
		Name string `json:"name"`
		Loop struct {
			Enabled bool   `json:"enabled"`
			State   string `json:"state"`
		} `json:"loop"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal status: %v", err)
	}
	if !status.Loop.Enabled {
		t.Error("expected loop to be enabled")
	}
	// models are loaded on mount, so an unmounted station stays idle
	if status.Loop.State != "idle" {
		t.Errorf("expected idle state, got %q", status.Loop.State)
	}
}

func TestServer_Dashboard(t *testing.T) {
	srv := newTestServer(t)

	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if ct := recorder.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML, got %s", ct)
	}
	if !strings.Contains(recorder.Body.String(), "EventSource") {
		t.Error("expected dashboard to subscribe to station events")
	}
	if recorder.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected security headers on the dashboard")
	}
}
