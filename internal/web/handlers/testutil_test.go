package handlers

import (
	"context"
	"image"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/station"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type testReader struct {
	ctx context.Context
}

func (r *testReader) Read() (image.Image, error) {
	select {
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	case <-time.After(time.Millisecond):
		return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
	}
}

func (r *testReader) Close() error { return nil }

type testDetector struct{}

func (testDetector) Load(ctx context.Context) error { return nil }

func (testDetector) Detect(ctx context.Context, img image.Image) (*detect.Detection, error) {
	return nil, nil
}

type testDispatcher struct{}

func (testDispatcher) Send(ctx context.Context, frame image.Image, dir attendance.Direction) (*attendance.MatchResponse, error) {
	return attendance.DecodeResponse([]byte(`{"status":"unknown"}`))
}

// newTestManager creates an entry and an exit station backed by fakes. The
// stations are not mounted.
func newTestManager(t *testing.T) *station.Manager {
	t.Helper()

	deps := station.Deps{
		Open: func(ctx context.Context, url string) (stream.Reader, error) {
			return &testReader{ctx: ctx}, nil
		},
		Detector:   testDetector{},
		Dispatcher: testDispatcher{},
	}

	var stations []*station.Station
	for _, cfg := range []station.Config{
		{Name: "entry", Direction: attendance.Entry, URL: "http://cam/stream0/index.m3u8"},
		{Name: "exit", Direction: attendance.Exit, URL: "http://cam/stream1/index.m3u8"},
	} {
		s, err := station.New(cfg, deps)
		if err != nil {
			t.Fatalf("failed to create station: %v", err)
		}
		stations = append(stations, s)
	}

	m, err := station.NewManager(stations...)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}
