package transaction

import "fmt"

// Status is the ingestion lifecycle state of a transaction.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus converts a stored status string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether a transaction may move from one status to another.
// Transitions only ever move forward:
//
//	new        -> processing | completed | failed
//	processing -> completed | failed
func CanTransition(from, to Status) bool {
	switch from {
	case StatusNew:
		switch to {
		case StatusProcessing, StatusCompleted, StatusFailed:
			return true
		}
	case StatusProcessing:
		switch to {
		case StatusCompleted, StatusFailed:
			return true
		}
	case StatusCompleted, StatusFailed:
		return false
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition wrapped with the offending states.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
