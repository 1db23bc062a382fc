// Package notify turns classified match outcomes into transient user alerts
// and delivers them to sinks (log, console, SSE subscribers).
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// Tone is the severity an alert is rendered with.
type Tone string

// Tone constants.
const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

// Notification is one rendered alert.
type Notification struct {
	ID        string                 `json:"id"`
	Station   string                 `json:"station"`
	Direction attendance.Direction   `json:"direction"`
	Tone      Tone                   `json:"tone"`
	Kind      attendance.OutcomeKind `json:"kind"`
	Name      string                 `json:"name,omitempty"`
	Category  string                 `json:"category,omitempty"`
	Message   string                 `json:"message"`
	At        time.Time              `json:"at"`
}

// Sink receives notifications. Implementations must not block the caller.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Notification)

// Notify implements Sink.
func (f SinkFunc) Notify(n Notification) { f(n) }

// ToneFor returns the fixed tone of an outcome kind.
func ToneFor(kind attendance.OutcomeKind) Tone {
	switch kind {
	case attendance.OutcomeRecognized:
		return ToneSuccess
	case attendance.OutcomeDuplicateEntry, attendance.OutcomeNoOpenEntry:
		return ToneWarning
	default:
		return ToneError
	}
}

// Message renders the alert text for an outcome. Exit stations say goodbye
// where entry stations say welcome; everything else is direction-independent.
func Message(dir attendance.Direction, o attendance.Outcome) string {
	name := DisplayName(o.Name)

	switch o.Kind {
	case attendance.OutcomeDuplicateEntry:
		return "Entry already exists. Please exit first."
	case attendance.OutcomeNoOpenEntry:
		return "No active entry found. Please enter first."
	case attendance.OutcomeUnrecognized:
		return "User not registered. Please register first."
	case attendance.OutcomeBlocked:
		if name == "" {
			return "Your access is blocked."
		}
		return fmt.Sprintf("%s's access is blocked.", name)
	case attendance.OutcomeRecognized:
		greeting := "Welcome"
		if dir == attendance.Exit {
			greeting = "Goodbye"
		}
		if o.Category == attendance.Visitor {
			return fmt.Sprintf("%s %s (visitor)", greeting, name)
		}
		return fmt.Sprintf("%s %s", greeting, name)
	default:
		return "Could not process face. Please try again."
	}
}

// Render builds the notification for one outcome on one station.
func Render(station string, dir attendance.Direction, o attendance.Outcome) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Station:   station,
		Direction: dir,
		Tone:      ToneFor(o.Kind),
		Kind:      o.Kind,
		Name:      DisplayName(o.Name),
		Message:   Message(dir, o),
		At:        time.Now(),
	}
	if o.Kind == attendance.OutcomeRecognized {
		n.Category = o.Category.String()
	}
	return n
}
