package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// RateLimitCode is the application error code the API returns when the
// request rate is exceeded.
const RateLimitCode = 10000

// NoCode marks an error that carries no application error code.
const NoCode = -1

// Kind is the closed classification of remote failures.
type Kind int

const (
	// KindTransport is a network failure or a response of unknown shape.
	KindTransport Kind = iota
	// KindRateLimited means the request rate was exceeded.
	KindRateLimited
	// KindNotFound means the addressed entity does not exist.
	KindNotFound
	// KindRejected is a deterministic application-level rejection.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the only error type returned by Client implementations.
type Error struct {
	Kind    Kind
	Op      string // e.g. "create asset"
	Status  int    // HTTP-like status, 0 when no response was received
	Code    int    // application error code, NoCode when absent
	Message string
	Err     error // underlying transport error, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Code >= 0 && e.Status > 0:
		return fmt.Sprintf("%s: %s (status %d, code %d): %s", e.Op, e.Kind, e.Status, e.Code, msg)
	case e.Status > 0:
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps a response status and application error code to a Kind.
// A negative code means the response carried none.
func Classify(status, code int) Kind {
	switch {
	case code == RateLimitCode || status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusNotFound:
		return KindNotFound
	case code >= 0:
		return KindRejected
	default:
		return KindTransport
	}
}

// NewError builds a classified *Error from a response.
func NewError(op string, status, code int, message string) *Error {
	return &Error{Kind: Classify(status, code), Op: op, Status: status, Code: code, Message: message}
}

// TransportError wraps a failure that produced no response.
func TransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Code: NoCode, Err: err}
}

// KindOf returns the kind of a remote error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// IsNotFound reports whether err is a remote not-found failure.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotFound
}

// IsRateLimited reports whether err is a remote rate-limit failure.
func IsRateLimited(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindRateLimited
}
