package errorx

import "fmt"

type Code int

const (
	NotFound         Code = 100004
	Conflict         Code = 100006
	InvalidOperation Code = 100001
	Unauthorized     Code = 100003
	Internal         Code = 100007
)

var (
	ErrNotFound         = Error{Code: NotFound, Message: "not found"}
	ErrConflict         = Error{Code: Conflict, Message: "conflict"}
	ErrInvalidOperation = Error{Code: InvalidOperation, Message: "invalid operation"}
	ErrUnauthorized     = Error{Code: Unauthorized, Message: "unauthorized"}
	ErrInternal         = Error{Code: Internal, Message: "internal error"}
)

// Error carries a stable code next to the human readable message. Two errors
// with the same code match under errors.Is regardless of the message.
type Error struct {
	Code    Code
	Message string
}

func (e Error) Error() string {
	return e.Message
}

func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Code == e.Code
}

func New(code Code, format string, args ...any) Error {
	return Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first Error found in the chain, or Internal.
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Internal
}
