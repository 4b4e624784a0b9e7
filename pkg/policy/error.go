package policy

import (
	"errors"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Reason identifies which rule rejected a candidate or batch.
type Reason string

const (
	ReasonType      Reason = "type"
	ReasonSize      Reason = "size"
	ReasonCount     Reason = "count"
	ReasonBatchSize Reason = "batchSize"
)

// Error is a validation rejection. Name is empty for batch-level rejections.
type Error struct {
	Reason  Reason `json:"reason"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// ErrRejected matches every *Error with errors.Is
var ErrRejected = errors.New("rejected")

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newError(reason Reason, name, message string) *Error {
	return &Error{Reason: reason, Name: name, Message: message}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrRejected
}

// IsBatch reports whether the rejection applies to the whole batch.
func (e *Error) IsBatch() bool {
	return e.Reason == ReasonCount || e.Reason == ReasonBatchSize
}

// ReasonOf returns the rejection reason for err, or an empty string if err
// is not a validation rejection.
func ReasonOf(err error) Reason {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return ""
}
