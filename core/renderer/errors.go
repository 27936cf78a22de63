// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	"github.com/pkg/errors"
)

// Recoverable conditions. Backends return these (optionally wrapped)
// and the Scheduler handles them without surfacing them to the caller.
var (
	ErrOutOfDate          = errors.New("renderer: swapchain out of date")
	ErrExtentNotSupported = errors.New("renderer: extent not supported by surface")
	ErrTimeout            = errors.New("renderer: timed out waiting for the presentation engine")
)

// ErrPoolExhausted is returned by a UniformPool whose slots are all held
// by frames still in flight. The Scheduler waits for the in-flight frame
// and tries once more before giving up.
var ErrPoolExhausted = errors.New("renderer: upload pool exhausted")

// Precondition and invariant violations, always delivered inside a FatalError.
var (
	ErrNoDrawCalls        = errors.New("renderer: frame has no draw calls")
	ErrNoFuture           = errors.New("renderer: in-flight future already taken")
	ErrReentrant          = errors.New("renderer: frame submission already in progress")
	ErrMalformedDrawCall  = errors.New("renderer: draw call without vertex buffer or pipeline")
	ErrCaptureUnsupported = errors.New("renderer: command recorder can not capture images")
)

// ErrFrameSkipped is returned by CaptureFrame when nothing was drawn,
// the caller may simply try again on the next tick.
var ErrFrameSkipped = errors.New("renderer: frame skipped")

// FatalError marks a failure the render session can not continue from.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("renderer: fatal error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FatalError) Unwrap() error { return e.Err }

// Cause implements the pkg/errors causer.
func (e *FatalError) Cause() error { return e.Err }

func fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FatalError); ok {
		return fe
	}
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err must terminate the render session.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsRecoverable reports whether err is one of the conditions that only
// cost a skipped frame.
func IsRecoverable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	return errors.Is(err, ErrOutOfDate) ||
		errors.Is(err, ErrExtentNotSupported) ||
		errors.Is(err, ErrTimeout)
}
