package attendance

import "fmt"

// OutcomeKind enumerates the user-facing results of a match attempt.
type OutcomeKind int

// OutcomeKind constants. OutcomeUnexpected is the zero value so a forgotten
// assignment never reads as a successful recognition.
const (
	OutcomeUnexpected OutcomeKind = iota
	OutcomeDuplicateEntry
	OutcomeNoOpenEntry
	OutcomeUnrecognized
	OutcomeBlocked
	OutcomeRecognized
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeUnexpected:     "unexpected",
	OutcomeDuplicateEntry: "duplicate_entry",
	OutcomeNoOpenEntry:    "no_open_entry",
	OutcomeUnrecognized:   "unrecognized",
	OutcomeBlocked:        "blocked",
	OutcomeRecognized:     "recognized",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for kind, name := range outcomeNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Outcome is the classified result of one match attempt. Name is set for
// Blocked and Recognized, Category only for Recognized.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	Name     string      `json:"name,omitempty"`
	Category Category    `json:"category,omitempty"`
}

// Unexpected is the defensive fallback outcome.
func Unexpected() Outcome { return Outcome{Kind: OutcomeUnexpected} }

// Recognized builds a successful outcome.
func Recognized(name string, category Category) Outcome {
	return Outcome{Kind: OutcomeRecognized, Name: name, Category: category}
}

// Blocked builds a blocked-access outcome.
func Blocked(name string) Outcome {
	return Outcome{Kind: OutcomeBlocked, Name: name}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeRecognized:
		return fmt.Sprintf("%s(%s, %s)", o.Kind, o.Name, o.Category)
	case OutcomeBlocked:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Name)
	default:
		return o.Kind.String()
	}
}
