package web

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() {
	stationsHandler := handlers.NewStationsHandler(s.stations)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event streams are long-lived and stay outside the request timeout
		r.Get("/stations/{name}/events", stationsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Get("/health", handlers.HealthCheck)

			r.Get("/stations", stationsHandler.List)
			r.Get("/stations/{name}", stationsHandler.Get)
			r.Post("/stations/{name}/start", stationsHandler.Start)
			r.Post("/stations/{name}/stop", stationsHandler.Stop)
			r.Get("/stations/{name}/snapshot", stationsHandler.Snapshot)
		})
	})

	// Kiosk dashboard
	s.router.With(middleware.SecurityHeaders()).Get("/", s.serveDashboard)
}

// serveDashboard serves the embedded kiosk page.
func (s *Server) serveDashboard(w http.ResponseWriter, r *http.Request) {
	f, err := static.GetFileSystem().Open("/index.html")
	if err != nil {
		http.Error(w, "dashboard not available", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
