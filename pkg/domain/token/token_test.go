package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockerplatform/registry-gate/pkg/domain"
	"github.com/dockerplatform/registry-gate/pkg/storage/memory"
)

var testUsers = []domain.User{
	{Id: 1, Username: "alice", Role: domain.RoleRegular},
	{Id: 2, Username: "bob", Role: domain.RoleRegular},
	{Id: 3, Username: "root", Role: domain.RoleAdmin},
	{Id: 4, Username: "overlord", Role: domain.RoleSuperAdmin},
}

var testRepositories = []domain.Repository{
	{Id: 10, OwnerId: 1, Owner: "alice", Name: "webapp", Public: false, Official: false},
	{Id: 11, OwnerId: 1, Owner: "alice", Name: "site", Public: true, Official: false},
	{Id: 12, OwnerId: 1, Owner: "alice", Name: "tools", Public: true, Official: true},
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signing := &SigningContext{
		Key:             key,
		KeyId:           "TEST:KEY",
		Issuer:          "registry-gate-test",
		DefaultAudience: "local-registry",
	}

	return NewService(memory.NewUserRepository(testUsers), memory.NewRepositoryRepository(testRepositories), signing)
}

func decodeClaims(t *testing.T, signed string) (jwt.MapClaims, map[string]interface{}) {
	t.Helper()

	parsed, _, err := jwt.NewParser().ParseUnverified(signed, jwt.MapClaims{})
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)

	return claims, parsed.Header
}

func accessClaim(t *testing.T, claims jwt.MapClaims) []interface{} {
	t.Helper()

	access, ok := claims["access"].([]interface{})
	require.True(t, ok)
	return access
}

func grantedActions(t *testing.T, claims jwt.MapClaims) []string {
	t.Helper()

	access := accessClaim(t, claims)
	require.Len(t, access, 1)

	grant, ok := access[0].(map[string]interface{})
	require.True(t, ok)

	raw, ok := grant["actions"].([]interface{})
	require.True(t, ok)

	actions := make([]string, 0, len(raw))
	for _, a := range raw {
		actions = append(actions, a.(string))
	}
	return actions
}

func TestIssueRoundTrip(t *testing.T) {
	svc := newTestService(t)

	signed, err := svc.Issue(context.Background(), "alice", "registry.example.com", "repository:alice/webapp:pull,push")
	require.NoError(t, err)

	claims, header := decodeClaims(t, signed)

	assert.Equal(t, "registry-gate-test", claims["iss"])
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "registry.example.com", claims["aud"])
	assert.Equal(t, "TEST:KEY", header["kid"])
	assert.Equal(t, "RS256", header["alg"])

	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	assert.Equal(t, int64(900), exp-iat)

	assert.Equal(t, []string{"pull", "push"}, grantedActions(t, claims))
}

func TestIssueWithoutScope(t *testing.T) {
	svc := newTestService(t)

	signed, err := svc.Issue(context.Background(), "alice", "", "")
	require.NoError(t, err)

	claims, _ := decodeClaims(t, signed)

	assert.Equal(t, "local-registry", claims["aud"], "missing service falls back to the default audience")
	assert.Empty(t, accessClaim(t, claims), "no scope means an empty access claim")
}

func TestIssueUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Issue(context.Background(), "mallory", "", "repository:alice/site:pull")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestIssuePublicPullByAnyone(t *testing.T) {
	svc := newTestService(t)

	for _, username := range []string{"alice", "bob", "root"} {
		signed, err := svc.Issue(context.Background(), username, "", "repository:alice/site:pull")
		require.NoError(t, err, username)

		claims, _ := decodeClaims(t, signed)
		assert.Equal(t, []string{"pull"}, grantedActions(t, claims), username)
	}
}

func TestIssuePrivateRepository(t *testing.T) {
	svc := newTestService(t)

	// owner gets both push and pull on their private repository
	signed, err := svc.Issue(context.Background(), "alice", "", "repository:alice/webapp:push,pull")
	require.NoError(t, err)

	claims, _ := decodeClaims(t, signed)
	assert.Equal(t, []string{"push", "pull"}, grantedActions(t, claims))

	// a non-owner non-admin cannot even pull
	_, err = svc.Issue(context.Background(), "bob", "", "repository:alice/webapp:pull")
	assert.ErrorIs(t, err, domain.ErrActionForbidden)

	// admins can
	for _, username := range []string{"root", "overlord"} {
		signed, err := svc.Issue(context.Background(), username, "", "repository:alice/webapp:pull,push,delete")
		require.NoError(t, err, username)

		claims, _ := decodeClaims(t, signed)
		assert.Equal(t, []string{"pull", "push", "delete"}, grantedActions(t, claims), username)
	}
}

func TestIssueOfficialRepositoryPush(t *testing.T) {
	svc := newTestService(t)

	// even the owner cannot push to an official repository unless admin
	_, err := svc.Issue(context.Background(), "alice", "", "repository:alice/tools:push")
	assert.ErrorIs(t, err, domain.ErrActionForbidden)

	signed, err := svc.Issue(context.Background(), "root", "", "repository:alice/tools:push")
	require.NoError(t, err)

	claims, _ := decodeClaims(t, signed)
	assert.Equal(t, []string{"push"}, grantedActions(t, claims))

	// the same owner can push to a non-official repository they own
	_, err = svc.Issue(context.Background(), "alice", "", "repository:alice/webapp:push")
	assert.NoError(t, err)
}

func TestIssueDeleteRequiresOwnerOrAdmin(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Issue(context.Background(), "bob", "", "repository:alice/site:delete")
	assert.ErrorIs(t, err, domain.ErrActionForbidden)

	signed, err := svc.Issue(context.Background(), "alice", "", "repository:alice/site:delete")
	require.NoError(t, err)

	claims, _ := decodeClaims(t, signed)
	assert.Equal(t, []string{"delete"}, grantedActions(t, claims))
}

func TestIssueUnknownActionIsDropped(t *testing.T) {
	svc := newTestService(t)

	// an unrecognized action never fails the request, it is just not granted
	signed, err := svc.Issue(context.Background(), "bob", "", "repository:alice/site:frobnicate")
	require.NoError(t, err)

	claims, _ := decodeClaims(t, signed)
	assert.Empty(t, grantedActions(t, claims))

	// mixed with a granted action it simply disappears
	signed, err = svc.Issue(context.Background(), "bob", "", "repository:alice/site:pull,frobnicate")
	require.NoError(t, err)

	claims, _ = decodeClaims(t, signed)
	assert.Equal(t, []string{"pull"}, grantedActions(t, claims))
}

func TestIssueNonRepositoryScope(t *testing.T) {
	svc := newTestService(t)

	signed, err := svc.Issue(context.Background(), "bob", "", "registry:catalog:*")
	require.NoError(t, err)

	claims, _ := decodeClaims(t, signed)
	access := accessClaim(t, claims)
	require.Len(t, access, 1)

	grant := access[0].(map[string]interface{})
	assert.Equal(t, "registry", grant["type"])
	assert.Equal(t, "catalog", grant["name"])
	assert.Empty(t, grant["actions"], "non-repository scopes never carry actions")
}

func TestIssueUnknownRepository(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Issue(context.Background(), "alice", "", "repository:alice/ghost:pull")
	assert.ErrorIs(t, err, domain.ErrRepositoryNotFound)
}

func TestIssueMalformedRepositoryName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Issue(context.Background(), "alice", "", "repository:webapp:pull")
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestIssueMalformedScopeDegradesToNoScope(t *testing.T) {
	svc := newTestService(t)

	signed, err := svc.Issue(context.Background(), "alice", "", "repository")
	require.NoError(t, err)

	claims, _ := decodeClaims(t, signed)
	assert.Empty(t, accessClaim(t, claims))
}
