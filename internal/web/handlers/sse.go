package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/notify"
)

// Subscription is a source of notifications an SSE client can follow.
type Subscription interface {
	AddListener() chan notify.Notification
	RemoveListener(ch chan notify.Notification)
	Recent() []notify.Notification
}

// setupSSEConnection sets the SSE headers and returns the flusher. On failure
// it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return flusher, true
}

// streamSSEEvents sends the initial status, replays recent notifications and
// then streams new ones until the client disconnects or the subscription is
// closed.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, sub Subscription, initial any, keepAlive time.Duration) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := sub.AddListener()
	defer sub.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", initial)
	for _, n := range sub.Recent() {
		sendSSEEvent(w, flusher, "notification", n)
	}

	if keepAlive <= 0 {
		keepAlive = constants.SSEKeepAliveInterval
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		case n, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "notification", n)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
