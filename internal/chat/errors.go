package chat

import "errors"

// Error taxonomy for inbound events. Failures are reported only to the
// originating connection as an "error" event and never touch other
// connections' state.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not a participant")
	ErrValidation     = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
)

// ErrorCode maps an error to the wire code carried by the error event.
// Anything outside the taxonomy is reported as a retryable persistence
// failure.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "persistence"
	}
}
