package router

import (
	"errors"
	"fmt"

	"github.com/surrealdb/dualstore/pkg/constants"
)

// AdapterError is a single store operation that failed, timed out or panicked.
type AdapterError struct {
	Entity string
	Side   constants.StoreSide
	Kind   string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s %s failed: %v", e.Side, e.Entity, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// FlagSourceError is a failed routing-flag lookup. The router recovers it to
// "use primary" and only ever logs it.
type FlagSourceError struct {
	Key      string
	CallerID string
	Err      error
}

func (e *FlagSourceError) Error() string {
	return fmt.Sprintf("flag %q for caller %q: %v", e.Key, e.CallerID, e.Err)
}

func (e *FlagSourceError) Unwrap() error {
	return e.Err
}

// DualWriteFailure is returned by Write when no applicable store produced a
// value. Primary is always set. Secondary is set when the secondary was
// attempted and also failed. Both are *AdapterError values.
type DualWriteFailure struct {
	Entity    string
	Primary   error
	Secondary error
}

func (e *DualWriteFailure) Error() string {
	if e.Secondary != nil {
		return fmt.Sprintf("%s: %s write failed on both stores: primary: %v; secondary: %v",
			constants.ErrPrimaryOperationFailed, e.Entity, e.Primary, e.Secondary)
	}
	return fmt.Sprintf("%s: %s write: %v", constants.ErrPrimaryOperationFailed, e.Entity, e.Primary)
}

// Unwrap exposes every recorded cause to errors.Is and errors.As.
func (e *DualWriteFailure) Unwrap() []error {
	if e.Secondary != nil {
		return []error{e.Primary, e.Secondary}
	}
	return []error{e.Primary}
}

// Is makes every DualWriteFailure match constants.ErrPrimaryOperationFailed.
func (e *DualWriteFailure) Is(target error) bool {
	return target == constants.ErrPrimaryOperationFailed
}

// IsDualWriteFailure reports whether err is, or wraps, a DualWriteFailure.
func IsDualWriteFailure(err error) bool {
	var failure *DualWriteFailure
	return errors.As(err, &failure)
}
