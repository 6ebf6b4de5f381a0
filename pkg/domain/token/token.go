package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dockerplatform/registry-gate/pkg"
	"github.com/dockerplatform/registry-gate/pkg/domain"
	"github.com/dockerplatform/registry-gate/pkg/registry"
)

// TokenTTL is the fixed lifetime of every issued token. There is no
// revocation; expiry is the only invalidation path.
const TokenTTL = 15 * time.Minute

type Service struct {
	users        domain.UserRepository
	repositories domain.RepositoryRepository
	signing      *SigningContext
}

func NewService(users domain.UserRepository, repositories domain.RepositoryRepository, signing *SigningContext) *Service {
	return &Service{
		users:        users,
		repositories: repositories,
		signing:      signing,
	}
}

// Issue resolves the principal, authorizes the requested scope (if any) and
// returns a signed compact token carrying the resulting access claim. The
// access claim holds exactly one grant when a scope was requested, none
// otherwise.
func (s *Service) Issue(ctx context.Context, username, service, rawScope string) (string, error) {
	logger := pkg.LoggerFromContext(ctx)

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUserNotFound, username)
	}

	access := []registry.AccessGrant{}

	if scope := registry.ParseScope(rawScope); scope != nil {
		allowed, err := s.authorize(ctx, user, scope)
		if err != nil {
			return "", err
		}

		access = append(access, registry.AccessGrant{
			Type:    scope.Type,
			Name:    scope.Name,
			Actions: allowed,
		})
	}

	audience := service
	if audience == "" {
		audience = s.signing.DefaultAudience
	}

	now := time.Now()

	claims := jwt.MapClaims{
		"iss":    s.signing.Issuer,
		"sub":    username,
		"aud":    audience,
		"iat":    now.Unix(),
		"exp":    now.Add(TokenTTL).Unix(),
		"access": access,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.signing.KeyId

	signed, err := t.SignedString(s.signing.Key)
	if err != nil {
		return "", fmt.Errorf("unable to sign token: %w", err)
	}

	logger.WithField("username", username).Debugf("Issued registry token for audience '%s'", audience)

	return signed, nil
}
