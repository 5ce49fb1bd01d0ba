package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrEmptyText        = errors.New("note text cannot be empty")
	ErrEmptyID          = errors.New("note ID cannot be empty")
	ErrNotFound         = errors.New("note not found")
	ErrClosed           = errors.New("reconciler is closed")
	ErrUnsupportedEvent = errors.New("unsupported event type")
)

// Op names the remote call that failed.
type Op string

const (
	OpList      Op = "list"
	OpCreate    Op = "create"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpSubscribe Op = "subscribe"
)

// RemoteError reports a failed call to the remote note service.
// Failures are never retried; the caller decides what to do next.
type RemoteError struct {
	Op  Op
	ID  string
	Err error
}

func (e *RemoteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("remote %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err (or anything it wraps) is a *RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

func remoteErr(op Op, id string, err error) error {
	return &RemoteError{Op: op, ID: id, Err: err}
}
