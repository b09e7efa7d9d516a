package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Error codes shared by the gateway and the REST surface.
const (
	ValidationError     = 1001
	Unauthorized        = 1401
	NotFound            = 1404
	ServerInternalError = 1500
	StorageError        = 1501
	EnrichmentFailure   = 1502
)

var (
	ErrValidation   = NewCodeError(ValidationError, "ValidationError")
	ErrUnauthorized = NewCodeError(Unauthorized, "Unauthorized")
	ErrNotFound     = NewCodeError(NotFound, "NotFound")
	ErrInternal     = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrStorage      = NewCodeError(StorageError, "StorageError")
	ErrEnrichment   = NewCodeError(EnrichmentFailure, "EnrichmentFailure")
)

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

// Wrap returns the code error with a stack attached.
func (e CodeError) Wrap() error {
	return pkgerrors.WithStack(e)
}

// WrapMsg clones e, appends msg and the key/value pairs to its detail and
// attaches a stack.
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	if msg != "" || len(kv) > 0 {
		e = e.WithDetail(toString(msg, kv))
	}
	return pkgerrors.WithStack(e)
}

// Cause wraps an underlying error under this code. The cause stays reachable
// through errors.Is / errors.As.
func (e CodeError) Cause(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	ce := e
	if msg != "" || len(kv) > 0 {
		ce = ce.WithDetail(toString(msg, kv))
	}
	return pkgerrors.WithStack(&causeError{code: ce, cause: err})
}

func (e CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

type causeError struct {
	code  CodeError
	cause error
}

func (c *causeError) Error() string { return c.code.Error() + ": " + c.cause.Error() }
func (c *causeError) Unwrap() error { return c.cause }

// As lets errors.As find the CodeError inside a cause wrapper.
func (c *causeError) As(target any) bool {
	if t, ok := target.(*CodeError); ok {
		*t = c.code
		return true
	}
	return false
}

// CodeOf returns the code carried by err, or ServerInternalError when err has
// none. A nil error has code 0.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ce CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerInternalError
}

// Is reports whether err carries the given code.
func Is(err error, code int) bool {
	return err != nil && CodeOf(err) == code
}

// Wrap attaches a stack to a plain error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteString("=")
		if i+1 < len(kv) {
			b.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			b.WriteString("MISSING")
		}
	}
	return b.String()
}
