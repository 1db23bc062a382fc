package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StatusKind is the top-level status tag of a matcher response.
type StatusKind int

// StatusKind constants cover every status the matcher is known to send.
// StatusOther keeps an unrecognized but well-formed status; StatusMalformed
// marks a body that could not be decoded at all.
const (
	StatusMalformed StatusKind = iota
	StatusOK
	StatusUnknown
	StatusEntryExists
	StatusEntryNotFound
	StatusOther
)

// Wire values of the matcher's "status" field.
const (
	wireStatusOK            = "ok"
	wireStatusUnknown       = "unknown"
	wireStatusEntryExists   = "entry_exists"
	wireStatusEntryNotFound = "entry_not_found"
)

func (k StatusKind) String() string {
	switch k {
	case StatusOK:
		return wireStatusOK
	case StatusUnknown:
		return wireStatusUnknown
	case StatusEntryExists:
		return wireStatusEntryExists
	case StatusEntryNotFound:
		return wireStatusEntryNotFound
	case StatusOther:
		return "other"
	default:
		return "malformed"
	}
}

// IsConflict reports whether the status says the attendance record is in the
// wrong state for the request (an open entry exists, or none does).
func (k StatusKind) IsConflict() bool {
	return k == StatusEntryExists || k == StatusEntryNotFound
}

// Category is the kind of person a match belongs to.
type Category int

// Category constants.
const (
	CategoryUnknown Category = iota
	Employee
	Visitor
)

func (c Category) String() string {
	switch c {
	case Employee:
		return "Employee"
	case Visitor:
		return "Visitor"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCategory maps the matcher's user_type field. Unrecognized values map to
// CategoryUnknown rather than an error: an odd category is a classification
// outcome, not a decode failure.
func ParseCategory(s string) Category {
	switch {
	case strings.EqualFold(s, "employee"):
		return Employee
	case strings.EqualFold(s, "visitor"):
		return Visitor
	default:
		return CategoryUnknown
	}
}

// Match is one identity candidate returned by the matcher.
type Match struct {
	Name     string
	Category Category
	UserType string // raw user_type, kept for logging
	Status   string // access status, e.g. "Active" or "Blocked"
}

// Blocked reports whether the identity's access is administratively blocked.
func (m Match) Blocked() bool {
	return strings.EqualFold(strings.TrimSpace(m.Status), "blocked")
}

// MatchResponse is the matcher payload decoded once into a tagged form.
type MatchResponse struct {
	Kind    StatusKind
	Status  string // raw status string as received
	Matches []Match
}

// First returns the best (first) match, if any.
func (r *MatchResponse) First() (Match, bool) {
	if r == nil || len(r.Matches) == 0 {
		return Match{}, false
	}
	return r.Matches[0], true
}

// wireResponse mirrors the JSON the matcher sends. Matches is a RawMessage
// because some matcher builds send null, an object or omit the field.
type wireResponse struct {
	Status  *string         `json:"status"`
	Matches json.RawMessage `json:"matches"`
}

type wireMatch struct {
	Name     string `json:"name"`
	UserType string `json:"user_type"`
	Status   string `json:"status"`
}

// DecodeResponse decodes a matcher body into a MatchResponse. It only returns
// an error for bodies that are not a JSON object at all; the result then has
// Kind StatusMalformed. A missing status is also StatusMalformed.
func DecodeResponse(body []byte) (*MatchResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &MatchResponse{Kind: StatusMalformed}, fmt.Errorf("matcher response is not a JSON object: %q", truncate(string(trimmed), 64))
	}

	var wire wireResponse
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return &MatchResponse{Kind: StatusMalformed}, fmt.Errorf("could not unmarshal matcher response: %w", err)
	}

	resp := &MatchResponse{Kind: StatusMalformed}
	if wire.Status != nil {
		resp.Status = *wire.Status
		resp.Kind = parseStatusKind(*wire.Status)
	}
	resp.Matches = decodeMatches(wire.Matches)
	return resp, nil
}

func parseStatusKind(s string) StatusKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case wireStatusOK:
		return StatusOK
	case wireStatusUnknown:
		return StatusUnknown
	case wireStatusEntryExists:
		return StatusEntryExists
	case wireStatusEntryNotFound:
		return StatusEntryNotFound
	default:
		return StatusOther
	}
}

// decodeMatches accepts a list of matches or a single match object and
// ignores anything else.
func decodeMatches(raw json.RawMessage) []Match {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var list []wireMatch
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
	case '{':
		var single wireMatch
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []wireMatch{single}
	default:
		return nil
	}

	matches := make([]Match, 0, len(list))
	for _, m := range list {
		matches = append(matches, Match{
			Name:     strings.TrimSpace(m.Name),
			Category: ParseCategory(m.UserType),
			UserType: m.UserType,
			Status:   m.Status,
		})
	}
	return matches
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
