package token

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dockerplatform/registry-gate/pkg/domain"
	"github.com/dockerplatform/registry-gate/pkg/registry"
)

// actionRule decides whether one action is admitted against a repository,
// given what the principal is to it. New actions are new table entries, not
// new control flow.
type actionRule func(repo *domain.Repository, owner, admin bool) bool

// knownActions fixes the order the all-or-nothing check reports denials in.
var knownActions = []string{"pull", "push", "delete"}

var actionRules = map[string]actionRule{
	"pull": func(repo *domain.Repository, owner, admin bool) bool {
		return repo.Public || owner || admin
	},
	"push": func(repo *domain.Repository, owner, admin bool) bool {
		if repo.Official {
			return admin
		}
		return owner || admin
	},
	"delete": func(repo *domain.Repository, owner, admin bool) bool {
		return owner || admin
	},
}

// authorize filters the requested actions down to the admitted ones.
// Authorization is all-or-nothing over the known actions: if pull, push or
// delete was requested and denied, the whole request fails with
// ErrActionForbidden. Unknown action strings are silently dropped and never
// fail the request.
func (s *Service) authorize(ctx context.Context, user *domain.User, scope *registry.Scope) ([]string, error) {
	// Only repository scopes carry any access; other resource types get an
	// empty action set rather than an error.
	if !strings.EqualFold(scope.Type, "repository") {
		return []string{}, nil
	}

	ref, err := domain.ParseReference(scope.Name)
	if err != nil {
		return nil, err
	}

	repo, err := s.repositories.FindByOwnerAndName(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, scope.Name)
	}

	admin := user.IsAdmin()
	owner := repo.OwnerId != 0 && user.Id != 0 && repo.OwnerId == user.Id

	allowed := []string{}
	for _, action := range scope.Actions {
		if rule, known := actionRules[action]; known && rule(repo, owner, admin) {
			allowed = append(allowed, action)
		}
	}

	for _, action := range knownActions {
		if slices.Contains(scope.Actions, action) && !slices.Contains(allowed, action) {
			return nil, fmt.Errorf("%w: %s on %s", domain.ErrActionForbidden, action, scope.Name)
		}
	}

	return allowed, nil
}
