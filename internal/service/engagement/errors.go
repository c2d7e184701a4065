package engagement

import (
	"errors"
	"fmt"
)

// Kind classifies an engagement failure; handlers map it to an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is; every *Error matches the sentinel of its kind.
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication required")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal error")
)

// Repository sentinels. Store implementations translate driver errors into these.
var (
	ErrNoRecord        = errors.New("no matching record")
	ErrDuplicateRecord = errors.New("duplicate record")
)

var kindSentinels = map[Kind]error{
	KindInternal:       ErrInternal,
	KindValidation:     ErrValidation,
	KindAuthentication: ErrAuthentication,
	KindForbidden:      ErrForbidden,
	KindNotFound:       ErrNotFound,
	KindConflict:       ErrConflict,
}

// Error is returned by every Service operation. Message is safe to show to
// callers; Err (internal errors only) is for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf reports the kind of err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is the caller-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}

// lookup maps a repository miss onto NotFound for what.
func lookup(err error, what string) error {
	if errors.Is(err, ErrNoRecord) {
		return notFound(what)
	}
	return err
}
