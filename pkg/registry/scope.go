package registry

import "strings"

// https://distribution.github.io/distribution/spec/auth/scope/

// Scope is a parsed authorization scope request: access to a named, typed
// resource with a list of actions.
type Scope struct {
	Type    string
	Name    string
	Actions []string
}

// AccessGrant is one entry of the token's `access` claim: the requested
// resource together with the subset of actions that were actually
// authorized.
type AccessGrant struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Actions []string `json:"actions"`
}

// ParseScope parses a raw "type:name:action,action" scope string. Parsing
// is total: a blank input, or one whose type or name is blank after
// trimming, yields nil ("no scope requested") rather than an error. Action
// tokens are trimmed and blank ones dropped; duplicates are kept as given,
// filtering happens during authorization.
func ParseScope(raw string) *Scope {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.SplitN(raw, ":", 3)

	scope := &Scope{
		Type: strings.TrimSpace(parts[0]),
	}
	if len(parts) > 1 {
		scope.Name = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		for _, action := range strings.Split(parts[2], ",") {
			if action = strings.TrimSpace(action); action != "" {
				scope.Actions = append(scope.Actions, action)
			}
		}
	}

	if scope.Type == "" || scope.Name == "" {
		return nil
	}

	return scope
}
