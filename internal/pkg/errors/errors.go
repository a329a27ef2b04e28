package errors

import "errors"

var (
	// ErrSelfMentorship rejects edges where a user would mentor themselves.
	ErrSelfMentorship = errors.New("a user cannot be their own mentor")
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a concurrent mentor reassignment that could not be
	// reconciled; callers may retry the whole operation.
	ErrConflict = errors.New("conflicting concurrent update")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)
