package udt

import (
	"strconv"
	"strings"
)

// Kind categorizes a failure by the operation or precondition involved.
type Kind string

const (
	KindFamilyMismatch     Kind = "family_mismatch"
	KindUnsupportedFamily  Kind = "unsupported_family"
	KindDisciplineMismatch Kind = "discipline_mismatch"
	KindInvalidArgument    Kind = "invalid_argument"
	KindSocketClosed       Kind = "socket_closed"
	KindCreateFailed       Kind = "create_failed"
	KindBindFailed         Kind = "bind_failed"
	KindListenFailed       Kind = "listen_failed"
	KindAcceptFailed       Kind = "accept_failed"
	KindConnectFailed      Kind = "connect_failed"
	KindSendFailed         Kind = "send_failed"
	KindReceiveFailed      Kind = "receive_failed"
	KindIncompleteTransfer Kind = "incomplete_transfer"
	KindCloseFailed        Kind = "close_failed"
	KindOptionFailed       Kind = "option_failed"
	KindNameFailed         Kind = "name_failed"
	KindStartupFailed      Kind = "startup_failed"
	KindCleanupFailed      Kind = "cleanup_failed"
)

// Source tells whether a failure was reported by the engine or detected
// before any engine call.
type Source string

const (
	SourceLocal  Source = "local"
	SourceNative Source = "native"
)

// LocalCode is the Code of every local failure.
const LocalCode int32 = -1

// Error is the structured failure returned by every socket operation.
// Native failures carry the engine's code and description as captured
// right after the failing call.
type Error struct {
	Kind   Kind
	Source Source
	Code   int32
	Desc   string
	Cause  error
}

// Sentinels for errors.Is. Matching compares Kind only.
var (
	ErrFamilyMismatch     = &Error{Kind: KindFamilyMismatch}
	ErrUnsupportedFamily  = &Error{Kind: KindUnsupportedFamily}
	ErrDisciplineMismatch = &Error{Kind: KindDisciplineMismatch}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrSocketClosed       = &Error{Kind: KindSocketClosed}
	ErrCreateFailed       = &Error{Kind: KindCreateFailed}
	ErrBindFailed         = &Error{Kind: KindBindFailed}
	ErrListenFailed       = &Error{Kind: KindListenFailed}
	ErrAcceptFailed       = &Error{Kind: KindAcceptFailed}
	ErrConnectFailed      = &Error{Kind: KindConnectFailed}
	ErrSendFailed         = &Error{Kind: KindSendFailed}
	ErrReceiveFailed      = &Error{Kind: KindReceiveFailed}
	ErrIncompleteTransfer = &Error{Kind: KindIncompleteTransfer}
	ErrCloseFailed        = &Error{Kind: KindCloseFailed}
	ErrOptionFailed       = &Error{Kind: KindOptionFailed}
	ErrNameFailed         = &Error{Kind: KindNameFailed}
	ErrStartupFailed      = &Error{Kind: KindStartupFailed}
	ErrCleanupFailed      = &Error{Kind: KindCleanupFailed}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))
	if e.Source == SourceNative {
		b.WriteString(": native error ")
		b.WriteString(strconv.Itoa(int(e.Code)))
	}
	if e.Desc != "" {
		b.WriteString(": ")
		b.WriteString(e.Desc)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Native reports whether the engine produced the failure.
func (e *Error) Native() bool {
	return e.Source == SourceNative
}

func localError(kind Kind, desc string) *Error {
	return &Error{Kind: kind, Source: SourceLocal, Code: LocalCode, Desc: desc}
}

func nativeError(kind Kind, code int32, desc string) *Error {
	return &Error{Kind: kind, Source: SourceNative, Code: code, Desc: desc}
}
