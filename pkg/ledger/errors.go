package ledger

import (
	"errors"
	"fmt"

	"github.com/mcclellann/fredAdvance/pkg/date"
)

var (
	// ErrInvalidRange is returned when no day can be simulated for the requested end date.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvalidEvent is returned when an event cannot enter the log.
	ErrInvalidEvent = errors.New("invalid event")
)

// InvalidRangeError describes why a simulation could not start. First is the
// zero date when no event was found at all.
type InvalidRangeError struct {
	End    date.Date
	First  date.Date
	Input  string // Raw end date input, when it failed to parse
	Reason string
}

func (e *InvalidRangeError) Error() string {
	switch {
	case e.Input != "":
		return fmt.Sprintf("invalid range: end date %q: %s", e.Input, e.Reason)
	case e.First.IsZero():
		return fmt.Sprintf("invalid range: %s (end date %s)", e.Reason, e.End)
	default:
		return fmt.Sprintf("invalid range: %s (first event %s, end date %s)", e.Reason, e.First, e.End)
	}
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// ParseEndDate parses a user supplied end date. Malformed input is an InvalidRangeError.
func ParseEndDate(s string) (date.Date, error) {
	d, err := date.Parse(s)
	if err != nil {
		return date.Date{}, &InvalidRangeError{Input: s, Reason: "want format " + date.Format}
	}
	return d, nil
}
