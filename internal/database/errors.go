package database

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("already exists")
	ErrUpstream  = errors.New("upstream failure")
)

// ValidationError reports malformed input. Nothing is written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UpstreamError wraps a failure of the underlying store.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// ValidateCreateMessage enforces that a message carries text, an image, or both.
func ValidateCreateMessage(params CreateMessageParams) error {
	if params.SenderId == "" {
		return &ValidationError{Field: "senderId", Reason: "sender is required"}
	}
	if params.ReceiverId == "" {
		return &ValidationError{Field: "receiverId", Reason: "receiver is required"}
	}
	if blank(params.Text) && blank(params.Image) {
		return &ValidationError{Field: "text", Reason: "text or image is required"}
	}
	return nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Reason: "text cannot be empty"}
	}
	return nil
}
