package onedrivefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// ErrorCode is the category of a filesystem error.
//
// ErrorCode implements error so the codes double as sentinels:
//
//	if errors.Is(err, onedrivefs.ErrNotFound) { ... }
//
// matches both a bare code and any *FSError carrying it.
type ErrorCode int

const (
	// ErrNotFound indicates the path, or its parent, does not exist remotely.
	ErrNotFound ErrorCode = iota + 1

	// ErrPermission indicates the handle's mode does not allow the operation.
	// Reading a write-only handle and writing a read-only handle both fail
	// with this code. Never retried.
	ErrPermission

	// ErrClosed indicates the handle was already closed.
	// ErrClosed also matches ErrPermission.
	ErrClosed

	// ErrConflict indicates the service still answered with a conflict after
	// the single retry.
	ErrConflict

	// ErrProtocolViolation indicates the service broke an assumption of the
	// transfer protocol: a partial-content answer to a whole-content
	// download, or a resumable upload whose byte count does not add up.
	ErrProtocolViolation

	// ErrRemoteFailure is any other non-success answer from the service.
	ErrRemoteFailure

	// ErrInvalidArgument indicates invalid parameters were provided.
	// Examples: text open mode, negative size, bad chunk size
	ErrInvalidArgument

	// ErrInvalidCharsInPath indicates the path contains a character OneDrive
	// does not allow.
	ErrInvalidCharsInPath

	// ErrFileExists indicates an exclusive open found an existing file.
	ErrFileExists

	// ErrFileExpected indicates the operation needs a file but got a folder.
	ErrFileExpected

	// ErrDirectoryExists indicates MakeDir found an existing item.
	ErrDirectoryExists

	// ErrDirectoryExpected indicates the operation needs a folder but got a file.
	ErrDirectoryExpected

	// ErrDirectoryNotEmpty indicates RemoveDir was called on a non-empty folder.
	ErrDirectoryNotEmpty

	// ErrDestinationExists indicates Copy would overwrite an existing item.
	ErrDestinationExists

	// ErrRemoveRoot indicates an attempt to remove the root folder.
	ErrRemoveRoot
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:           "resource not found",
	ErrPermission:         "permission denied",
	ErrClosed:             "file closed",
	ErrConflict:           "conflict",
	ErrProtocolViolation:  "protocol violation",
	ErrRemoteFailure:      "remote operation failed",
	ErrInvalidArgument:    "invalid argument",
	ErrInvalidCharsInPath: "invalid characters in path",
	ErrFileExists:         "file exists",
	ErrFileExpected:       "file expected",
	ErrDirectoryExists:    "directory exists",
	ErrDirectoryExpected:  "directory expected",
	ErrDirectoryNotEmpty:  "directory not empty",
	ErrDestinationExists:  "destination exists",
	ErrRemoveRoot:         "cannot remove root",
}

// String returns a human-readable name for the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(c))
}

// Error implements the error interface.
func (c ErrorCode) Error() string {
	return c.String()
}

// Is lets ErrClosed match ErrPermission.
func (c ErrorCode) Is(target error) bool {
	return c == ErrClosed && target == ErrPermission
}

// FSError is a filesystem error with a code, the path it concerns and the
// underlying cause, if any.
type FSError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the filesystem path related to the error (if applicable)
	Path string

	// Err is the underlying drive error, if any
	Err error
}

// Error implements the error interface.
func (e *FSError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches on the error code.
func (e *FSError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	if !ok {
		return false
	}
	return e.Code == code || e.Code.Is(code)
}

// Unwrap returns the underlying cause.
func (e *FSError) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, path string) *FSError {
	return &FSError{Code: code, Path: path}
}

func wrapError(code ErrorCode, path string, err error) *FSError {
	return &FSError{Code: code, Path: path, Err: err}
}

// translateError maps a drive error onto a filesystem error for path.
// Context cancellation and errors that already carry a code pass through.
func translateError(path string, err error) error {
	if err == nil {
		return nil
	}

	var fsErr *FSError
	if errors.As(err, &fsErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case errors.Is(err, drive.ErrNotFound):
		return wrapError(ErrNotFound, path, err)
	case errors.Is(err, drive.ErrConflict):
		return wrapError(ErrConflict, path, err)
	case errors.Is(err, drive.ErrPartialContent):
		return wrapError(ErrProtocolViolation, path, err)
	default:
		return wrapError(ErrRemoteFailure, path, err)
	}
}
