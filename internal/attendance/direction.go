// Package attendance holds the vocabulary shared by every attendance station:
// the Entry/Exit direction tag, the decoded matcher response and the closed set
// of outcomes a match attempt can produce.
package attendance

import (
	"fmt"
	"strings"
)

// Direction distinguishes the two symmetric attendance stations.
type Direction int

// Direction constants. The zero value is invalid on purpose so an unset
// direction is caught by ParseDirection/Validate instead of defaulting to Entry.
const (
	DirectionUnknown Direction = iota
	Entry
	Exit
)

// String returns the wire form sent to the matcher ("Entry" / "Exit").
func (d Direction) String() string {
	switch d {
	case Entry:
		return "Entry"
	case Exit:
		return "Exit"
	default:
		return "Unknown"
	}
}

// Valid reports whether d is Entry or Exit.
func (d Direction) Valid() bool {
	return d == Entry || d == Exit
}

// ParseDirection parses "entry"/"exit" case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry", "in":
		return Entry, nil
	case "exit", "out":
		return Exit, nil
	default:
		return DirectionUnknown, fmt.Errorf("unknown direction %q (want entry or exit)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(strings.ToLower(d.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so directions can be read
// from YAML station files and JSON alike.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
