package apperrors

import (
	"errors"
)

// Category is the stable prefix attached to every failure so pipeline logs can be filtered
// by failure mode.
type Category string

const (
	// CloneFailure covers network and authentication errors while acquiring the manifest repository.
	CloneFailure Category = "manifestsync-clone-failed"
	// ManifestNotFound means the repository has no deployment manifest for the requested service.
	ManifestNotFound Category = "manifestsync-manifest-notfound"
	// PushRejected means the remote refused the push, typically because it moved ahead concurrently.
	// Rerunning the step against the updated remote is the expected recovery.
	PushRejected Category = "manifestsync-push-rejected"
	// PreconditionFailure means a required argument or environment variable was missing or empty.
	PreconditionFailure Category = "manifestsync-precondition-failed"
)

// ErrNoOpCommit signals that the manifest already referenced the requested image. It is not a
// failure, and callers must map it to a successful exit so repeated pipeline runs do not flap.
var ErrNoOpCommit = errors.New("manifestsync-noop - the manifest already references the requested image")

// UpdateError is a categorised failure surfaced to the pipeline step.
type UpdateError struct {
	Category Category
	Message  string
	Cause    error
}

func New(category Category, message string) *UpdateError {
	return &UpdateError{
		Category: category,
		Message:  message,
	}
}

func Wrap(category Category, message string, cause error) *UpdateError {
	return &UpdateError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func (e *UpdateError) Error() string {
	if e.Cause == nil {
		return string(e.Category) + " - " + e.Message
	}

	return string(e.Category) + " - " + e.Message + ": " + e.Cause.Error()
}

func (e *UpdateError) Unwrap() error {
	return e.Cause
}

// CategoryOf extracts the failure category from an error chain.
func CategoryOf(err error) (Category, bool) {
	var updateError *UpdateError
	if errors.As(err, &updateError) {
		return updateError.Category, true
	}

	return "", false
}
