package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrInvalidStateTransition is a caller contract violation and is never stored on a notification.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	ErrNoDeliverableChannel = errors.New("no deliverable channel")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateNotActive    = errors.New("template not active")
	ErrMissingTemplateParam = errors.New("missing template parameter")
)

// IsConfigurationError reports whether err describes a setup problem that retrying cannot fix.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNoDeliverableChannel) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrTemplateNotActive) ||
		errors.Is(err, ErrMissingTemplateParam)
}
