package analytics

import (
	"errors"
	"fmt"
)

// ErrInsufficientData matches every InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("analytics: insufficient data")

// InsufficientDataError reports a pass that cannot produce a well-formed
// result, such as zero sessions or fewer users than requested segments.
type InsufficientDataError struct {
	Pass string
	What string
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("analytics: %s needs at least %d %s, have %d", e.Pass, e.Need, e.What, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

func noSessions(pass string) error {
	return &InsufficientDataError{Pass: pass, What: "sessions", Need: 1}
}
