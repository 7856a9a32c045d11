package firemock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is returned by every operation that can fail. Code carries the kind
// of failure using the same gRPC codes the real Firestore client reports, so
// status.Code(err) works the same way against both.
type Error struct {
	Code codes.Code
	Msg  string
	Path string
	Err  error
}

var (
	ErrNotFound           = &Error{Code: codes.NotFound}
	ErrAlreadyExists      = &Error{Code: codes.AlreadyExists}
	ErrConflict           = &Error{Code: codes.Aborted}
	ErrInvalidArgument    = &Error{Code: codes.InvalidArgument}
	ErrFailedPrecondition = &Error{Code: codes.FailedPrecondition}

	// ErrNoField is returned by strict field path lookups when an
	// intermediate or final key is missing.
	ErrNoField = errors.New("no such field")
)

func errf(code codes.Code, path string, err error, format string, args ...any) error {
	return &Error{Code: code, Path: path, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func notFoundf(path string, format string, args ...any) error {
	return errf(codes.NotFound, path, nil, format, args...)
}

func invalidArgf(path string, format string, args ...any) error {
	return errf(codes.InvalidArgument, path, nil, format, args...)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d ", e.HTTPStatus())
	if e.Msg != "" {
		buf.WriteString(e.Msg)
	} else {
		buf.WriteString(e.Code.String())
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// Is matches sentinel errors (those with no message) by code. AlreadyExists
// is a kind of Conflict, so errors.Is(err, ErrConflict) holds for it too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == codes.Aborted && e.Code == codes.AlreadyExists
}

// GRPCStatus implements the interface used by status.FromError and status.Code.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Error())
}

// HTTPStatus returns the HTTP-like status code of the emulated client's
// error taxonomy.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Canceled:
		return 499
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a Conflict, including AlreadyExists.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func noFieldErr(path []string, i int) error {
	return fmt.Errorf("%s (at %q): %w", strings.Join(path, "."), path[i], ErrNoField)
}

// contextErr turns a canceled or expired context into an Error with the
// matching code.
func contextErr(err error) error {
	if err == nil {
		return nil
	}
	code := codes.Canceled
	if errors.Is(err, context.DeadlineExceeded) {
		code = codes.DeadlineExceeded
	}
	return &Error{Code: code, Err: err}
}

// codeFor classifies an arbitrary error for wrapping into an Error.
func codeFor(err error) codes.Code {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e.Code
	case errors.Is(err, ErrNoField):
		return codes.NotFound
	default:
		return codes.Internal
	}
}
