package attendance

// conflictOutcome is the only direction-specific branch of classification.
func conflictOutcome(dir Direction) Outcome {
	if dir == Exit {
		return Outcome{Kind: OutcomeNoOpenEntry}
	}
	return Outcome{Kind: OutcomeDuplicateEntry}
}

// Classify maps a matcher response (or the transport error that replaced it)
// to an Outcome. The checks run in a fixed order and the first hit wins:
//
//  1. conflict status (entry_exists / entry_not_found) -> DuplicateEntry for
//     Entry, NoOpenEntry for Exit
//  2. unknown identity -> Unrecognized
//  3. first match blocked -> Blocked(name)
//  4. ok status with an Employee/Visitor first match -> Recognized
//  5. everything else -> Unexpected
//
// Payloads can satisfy several of these at once (an ok status with a blocked
// match, a conflict carrying matches), which is why the order matters.
func Classify(dir Direction, resp *MatchResponse, err error) Outcome {
	if err != nil || resp == nil || !dir.Valid() {
		return Unexpected()
	}

	if resp.Kind.IsConflict() {
		return conflictOutcome(dir)
	}

	if resp.Kind == StatusUnknown {
		return Outcome{Kind: OutcomeUnrecognized}
	}

	first, ok := resp.First()
	if ok && first.Blocked() {
		return Blocked(first.Name)
	}

	if resp.Kind == StatusOK && ok && first.Name != "" {
		switch first.Category {
		case Employee, Visitor:
			return Recognized(first.Name, first.Category)
		}
	}

	return Unexpected()
}

// ConflictMismatch reports whether resp carries the other direction's
// conflict status: entry_not_found on an Entry station or entry_exists on an
// Exit station. Classify still decides by direction; callers log the mismatch.
func ConflictMismatch(dir Direction, resp *MatchResponse) bool {
	if resp == nil {
		return false
	}
	switch dir {
	case Entry:
		return resp.Kind == StatusEntryNotFound
	case Exit:
		return resp.Kind == StatusEntryExists
	default:
		return false
	}
}
