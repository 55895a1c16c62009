// Package ffi is the boundary between the backend and the host. Everything
// the host calls returns a tagged *Error instead of panicking, and every
// error handed out owns a payload the host has to free exactly once.
package ffi

import (
	"errors"
	"fmt"
)

// Kind tells the host which exception an Error stands for.
type Kind int

// Error kinds.
const (
	Generic Kind = iota
	NullPointer
	IllegalArgument
	IllegalState
	// Propagated errors came from the host and are passed back untouched.
	Propagated
)

func (k Kind) String() string {
	switch k {
	case Generic:
		return "Generic"
	case NullPointer:
		return "NullPointer"
	case IllegalArgument:
		return "IllegalArgument"
	case IllegalState:
		return "IllegalState"
	case Propagated:
		return "Propagated"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a tagged error. Errors created inside the backend carry only a
// message; once they cross the boundary they also own a payload token of
// the table that exported them.
type Error struct {
	Kind    Kind
	Token   uint64
	message string
	owner   *Payloads
}

// Errorf creates an Error of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind, keeping its message.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, message: err.Error()}
}

func (e *Error) Error() string {
	if e.Kind == Propagated {
		return "propagated host error"
	}
	return e.message
}

// Message is the error message, empty for propagated errors.
func (e *Error) Message() string {
	return e.message
}

// Allocated reports whether the error owns a payload.
func (e *Error) Allocated() bool {
	return e.Token != 0
}

// Classify returns the kind of the first *Error in err's chain, Generic
// for anything else.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}
