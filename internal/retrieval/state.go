package retrieval

// State is a phase of a source's retrieval loop
type State int

const (
	StateFetching State = iota
	StateResolving
	StateProcessing
	StateExhaustedEmpty
	StateExhaustedDuplicateThreshold
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateResolving:
		return "resolving"
	case StateProcessing:
		return "processing"
	case StateExhaustedEmpty:
		return "exhausted_empty"
	case StateExhaustedDuplicateThreshold:
		return "exhausted_duplicate_threshold"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions follow s
func (s State) IsTerminal() bool {
	return s >= StateExhaustedEmpty
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
