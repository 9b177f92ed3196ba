package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure.
type Kind string

const (
	KindUnauthenticated      Kind = "Unauthenticated"
	KindInvalidTransition    Kind = "InvalidTransition"
	KindMissingSelection     Kind = "MissingSelection"
	KindEmptySignature       Kind = "EmptySignature"
	KindRemoteRejected       Kind = "RemoteRejected"
	KindNetworkUnavailable   Kind = "NetworkUnavailable"
	KindContractCreateFailed Kind = "ContractCreateFailed"
	KindBusy                 Kind = "Busy"
	KindNotFound             Kind = "NotFound"
	KindDialogClosed         Kind = "DialogClosed"
)

// Error is the single error type crossing the workflow boundary.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int // HTTP status for RemoteRejected, 0 otherwise
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrEmptySignature) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

var (
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition}
	ErrMissingSelection     = &Error{Kind: KindMissingSelection}
	ErrEmptySignature       = &Error{Kind: KindEmptySignature}
	ErrRemoteRejected       = &Error{Kind: KindRemoteRejected}
	ErrNetworkUnavailable   = &Error{Kind: KindNetworkUnavailable}
	ErrContractCreateFailed = &Error{Kind: KindContractCreateFailed}
	ErrBusy                 = &Error{Kind: KindBusy}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrDialogClosed         = &Error{Kind: KindDialogClosed}
)

// E builds an *Error.
func E(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// KindOf returns the kind of err, or "" if it is not a workflow error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the user-facing message carried by err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
