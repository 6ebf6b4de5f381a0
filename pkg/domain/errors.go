package domain

import "errors"

var (
	// ErrInvalidReference marks a repository name that is not of the
	// "owner/repo" form.
	ErrInvalidReference = errors.New("invalid repository reference")

	ErrUserNotFound       = errors.New("user not found")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrTagNotFound        = errors.New("tag not found")

	// ErrActionForbidden is returned when a requested scope action is not
	// authorized for the principal. Any single forbidden action fails the
	// whole token request.
	ErrActionForbidden = errors.New("action forbidden")
)

// IsAccessDenied reports whether err should surface as an access-denied
// outcome on the token endpoint. The webhook path does not use this mapping;
// it drops failing events instead.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrRepositoryNotFound) ||
		errors.Is(err, ErrActionForbidden)
}
