package domain

import (
	"fmt"
	"strings"
)

// Reference addresses a repository by its owner's username and the
// repository name.
type Reference struct {
	Owner string
	Name  string
}

// ParseReference splits a fully-qualified repository name "owner/repo" on
// the first slash. It fails when there is no slash, the slash is the first
// or last character, or either side is blank after trimming. The caller
// decides whether that failure is fatal (token request) or skips the event
// (notification processing).
func ParseReference(fullName string) (Reference, error) {
	slash := strings.Index(fullName, "/")
	if slash <= 0 || slash == len(fullName)-1 {
		return Reference{}, fmt.Errorf("%w (expected owner/repo): %q", ErrInvalidReference, fullName)
	}

	owner := strings.TrimSpace(fullName[:slash])
	name := strings.TrimSpace(fullName[slash+1:])
	if owner == "" || name == "" {
		return Reference{}, fmt.Errorf("%w (expected owner/repo): %q", ErrInvalidReference, fullName)
	}

	return Reference{Owner: owner, Name: name}, nil
}
