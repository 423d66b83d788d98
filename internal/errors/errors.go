package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Cairn error code.
type ErrorCode string

const (
	ErrValidation  ErrorCode = "VALIDATION"  // 400: malformed ids/params, caller's fault
	ErrNotFound    ErrorCode = "NOT_FOUND"   // 404: segment or project absent
	ErrConsistency ErrorCode = "CONSISTENCY" // 409: index/archive divergence, rebuild recommended
	ErrStorageIO   ErrorCode = "STORAGE_IO"  // 500: disk read/write failure, recoverable via rebuild
	ErrInternal    ErrorCode = "INTERNAL"    // 500
)

// CairnError represents a structured error with code, status, and details.
type CairnError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CairnError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidation creates a 400 error for invalid request parameters.
func NewValidation(msg string) *CairnError {
	return &CairnError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewSegmentNotFound creates a 404 error for a missing segment.
func NewSegmentNotFound(projectID, segmentID string) *CairnError {
	return &CairnError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("segment not found: %s", segmentID),
		Details: map[string]any{"project_id": projectID, "segment_id": segmentID},
	}
}

// NewProjectNotFound creates a 404 error for a missing project.
func NewProjectNotFound(projectID string) *CairnError {
	return &CairnError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("project not found: %s", projectID),
		Details: map[string]any{"project_id": projectID},
	}
}

// NewConsistency creates a 409 error for index/archive divergence.
// The details always carry a rebuild recommendation; callers must never
// silently repair the divergence themselves.
func NewConsistency(projectID, msg string) *CairnError {
	return &CairnError{
		Code:    ErrConsistency,
		Status:  409,
		Message: msg,
		Details: map[string]any{"project_id": projectID, "recovery": "rebuild"},
	}
}

// NewStorageIO creates a 500 error wrapping a disk read/write failure.
func NewStorageIO(op string, err error) *CairnError {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	return &CairnError{
		Code:    ErrStorageIO,
		Status:  500,
		Message: msg,
		Details: map[string]any{"recovery": "rebuild"},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CairnError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CairnError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a CairnError with the given code.
// Wrapped errors (e.g. "segments[0]: %w") are unwrapped.
func Is(err error, code ErrorCode) bool {
	var cErr *CairnError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
