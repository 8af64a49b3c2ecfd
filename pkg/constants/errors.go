package constants

import "errors"

// Errors
var (
	ErrPrimaryOperationFailed = errors.New("primary operation failed")
	ErrSecondaryUnavailable   = errors.New("secondary database not available")
	ErrReadOnly               = errors.New("operation denied: application is in read-only mode")
	ErrAdapterTimeout         = errors.New("adapter call timed out")
	ErrUnknownEntity          = errors.New("unknown entity")
	ErrFeatureDisabled        = errors.New("feature not enabled")
	ErrNotFound               = errors.New("record not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrConflict               = errors.New("record already exists")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrEmptyCart              = errors.New("cart is empty")
)
