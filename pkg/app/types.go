package app

import (
	"errors"
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// ImageTarget selects the image, and the filesystem within it, across
// commands
type ImageTarget struct {
	Path string

	// Offset is the byte offset of the filesystem within the image.
	// Negative leaves it to the configuration and offset detection.
	Offset int64
}

// Validate ensures the image target is valid
func (it *ImageTarget) Validate() error {
	if it.Path == "" {
		return errors.New("image path is required")
	}
	if it.Offset > 0 && it.Offset%512 != 0 {
		return fmt.Errorf("offset %d is not a multiple of 512", it.Offset)
	}
	return nil
}

// HasOffset reports whether an explicit offset was requested
func (it *ImageTarget) HasOffset() bool {
	return it.Offset >= 0
}

// String returns a string representation of the image target
func (it *ImageTarget) String() string {
	if it.HasOffset() {
		return fmt.Sprintf("%s @ %d", it.Path, it.Offset)
	}
	return it.Path
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeImageAccess  = "IMAGE_ACCESS"
	ErrCodeCorrupted    = "CORRUPTED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeResources    = "RESOURCES"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ClassifyError wraps a filesystem error with the matching error code
func ClassifyError(message string, err error) *CommonError {
	code := ErrCodeCorrupted
	switch {
	case errors.Is(err, types.ErrIO):
		code = ErrCodeImageAccess
	case errors.Is(err, types.ErrNotFound):
		code = ErrCodeNotFound
	case errors.Is(err, types.ErrNotADirectory), errors.Is(err, types.ErrUnmounted):
		code = ErrCodeInvalidInput
	case errors.Is(err, types.ErrAllocationFailure):
		code = ErrCodeResources
	}
	return NewError(code, message, err)
}
