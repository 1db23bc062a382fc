package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

func TestRenderTable(t *testing.T) {
	tests := []struct {
		name    string
		dir     attendance.Direction
		outcome attendance.Outcome
		tone    Tone
		message string
	}{
		{"duplicate entry", attendance.Entry, attendance.Outcome{Kind: attendance.OutcomeDuplicateEntry}, ToneWarning, "Entry already exists. Please exit first."},
		{"no open entry", attendance.Exit, attendance.Outcome{Kind: attendance.OutcomeNoOpenEntry}, ToneWarning, "No active entry found. Please enter first."},
		{"unrecognized", attendance.Entry, attendance.Outcome{Kind: attendance.OutcomeUnrecognized}, ToneError, "User not registered. Please register first."},
		{"blocked", attendance.Exit, attendance.Blocked("Eve"), ToneError, "Eve's access is blocked."},
		{"blocked without name", attendance.Entry, attendance.Blocked(""), ToneError, "Your access is blocked."},
		{"employee entry", attendance.Entry, attendance.Recognized("Ann", attendance.Employee), ToneSuccess, "Welcome Ann"},
		{"visitor entry", attendance.Entry, attendance.Recognized("Ann", attendance.Visitor), ToneSuccess, "Welcome Ann (visitor)"},
		{"employee exit", attendance.Exit, attendance.Recognized("Ann", attendance.Employee), ToneSuccess, "Goodbye Ann"},
		{"visitor exit", attendance.Exit, attendance.Recognized("Ann", attendance.Visitor), ToneSuccess, "Goodbye Ann (visitor)"},
		{"unexpected", attendance.Exit, attendance.Unexpected(), ToneError, "Could not process face. Please try again."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := Render("gate", tc.dir, tc.outcome)
			if n.Tone != tc.tone {
				t.Errorf("Tone = %s; want %s", n.Tone, tc.tone)
			}
			if n.Message != tc.message {
				t.Errorf("Message = %q; want %q", n.Message, tc.message)
			}
			if n.ID == "" {
				t.Error("expected notification ID to be set")
			}
			if n.Station != "gate" || n.Direction != tc.dir {
				t.Errorf("unexpected station/direction: %s %s", n.Station, n.Direction)
			}
		})
	}
}

func TestRenderCategoryOnlyForRecognized(t *testing.T) {
	if n := Render("s", attendance.Entry, attendance.Recognized("A", attendance.Visitor)); n.Category != "Visitor" {
		t.Errorf("Category = %q; want Visitor", n.Category)
	}
	if n := Render("s", attendance.Entry, attendance.Blocked("A")); n.Category != "" {
		t.Errorf("Category = %q; want empty for blocked", n.Category)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "Jan Novák"},
		{"Jan  Novák", "Jan Novák"},
		{"Jan Nova\u0301k", "Jan Novák"},
		{"Eve\u200b", "Eve"},
		{"Bad\x1b[31mName", "Bad[31mName"},
		{"  padded\t", "padded"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := DisplayName(tc.input); got != tc.expected {
				t.Errorf("DisplayName(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	sink.Notify(Render("entry", attendance.Entry, attendance.Recognized("Ann", attendance.Employee)))

	line := buf.String()
	if !strings.Contains(line, "Welcome Ann") || !strings.Contains(line, "success") {
		t.Errorf("unexpected console line: %q", line)
	}
}

func TestMultiSink(t *testing.T) {
	var got []string
	m := Multi{
		SinkFunc(func(n Notification) { got = append(got, "a:"+n.Message) }),
		nil,
		SinkFunc(func(n Notification) { got = append(got, "b:"+n.Message) }),
	}
	m.Notify(Notification{Message: "hi"})
	if len(got) != 2 || got[0] != "a:hi" || got[1] != "b:hi" {
		t.Errorf("unexpected fan-out: %v", got)
	}
}
