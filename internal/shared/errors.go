package shared

import "errors"

var (
	// ErrNotFound indicates a referenced entity is missing.
	ErrNotFound = errors.New("not found")
	// ErrNotEditable indicates a mutation against a non-draft receiving order.
	ErrNotEditable = errors.New("order is read-only")
	// ErrConflict indicates a state-machine precondition was violated.
	ErrConflict = errors.New("conflicts with current state")
	// ErrInvalidConversion indicates a unit-of-measure mismatch or non-integral package fit.
	ErrInvalidConversion = errors.New("invalid unit conversion")
)

// UserSafeMessage maps domain errors to messages safe to show to callers.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrNotEditable):
		return "The order can no longer be edited"
	case errors.Is(err, ErrConflict):
		return "The operation conflicts with the current order state"
	case errors.Is(err, ErrInvalidConversion):
		return "The units of measure are not compatible"
	default:
		return "Something went wrong, please try again"
	}
}
