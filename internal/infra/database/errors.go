package database

import "errors"

// Sentinel errors shared by the repository implementations.
var (
	ErrRecipientNotFound  = errors.New("recipient not found")
	ErrPreferenceNotFound = errors.New("reminder preference not found")
	ErrReviewItemNotFound = errors.New("review item not found")
	ErrDefinitionNotFound = errors.New("alarm definition not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrInstanceNotFound   = errors.New("alarm instance not found")
	// ErrRunLockHeld means another dispatch run currently holds the
	// run-scoped claim.
	ErrRunLockHeld = errors.New("dispatch run lock is held by another run")
)
