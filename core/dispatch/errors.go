package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadySent is returned when a draft in the terminal sent state
	// is handed to the engine again.
	ErrAlreadySent = errors.New("draft already sent")
	// ErrPeriodSent is returned by SendPeriod for periods already marked sent.
	ErrPeriodSent = errors.New("period already sent")
)

// DeliveryError reports the relay failure of the last attempt made for a
// draft.
type DeliveryError struct {
	DraftID int64
	Attempt int
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver draft %d (attempt %d): %v", e.DraftID, e.Attempt, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
