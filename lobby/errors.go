package lobby

import "errors"

// Request errors returned by the registry and coordinator. A rejected
// request never leaves partial state behind; callers match with errors.Is
// and translate to their own wire format.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("lobby not found")
	ErrWrongPassword   = errors.New("wrong password")
	ErrFull            = errors.New("lobby is full")
	ErrAlreadyMember   = errors.New("client is already in a lobby")
	ErrNotAuthorized   = errors.New("admin privileges required")
	ErrNotMember       = errors.New("client is not a lobby member")
	ErrOutOfRange      = errors.New("history index out of range")
)

// ErrorCode maps a lobby error to a short wire code for clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrFull):
		return "full"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrNotMember):
		return "not_member"
	default:
		return "internal"
	}
}
