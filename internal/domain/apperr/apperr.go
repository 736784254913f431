// Package apperr defines the error kinds surfaced by the build pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport layer and operators can tell
// "never going to work" apart from "retry it".
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindConfiguration     Kind = "configuration"
	KindAuthorization     Kind = "authorization"
	KindValidation        Kind = "validation"
	KindTransport         Kind = "transport"
	KindMalformedResponse Kind = "malformed_response"
	KindLocalTool         Kind = "local_tool"
)

// Error is a classified error. Op names the operation that failed,
// Detail carries diagnostic output (response bodies, git stderr).
type Error struct {
	Kind   Kind
	Op     string
	Err    error
	Detail string
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += "\n" + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error from a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Newf is New with formatting.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithDetail attaches diagnostic output to a classified error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrMissingFiles     = errors.New("model did not return a non-empty 'files' array")
	ErrInvalidFileEntry = errors.New("each file must have 'path' and 'content'")
	ErrUnsafePath       = errors.New("file path escapes the working directory")
)
