package domain

import (
	"context"
)

// TokenService issues signed bearer tokens for the Docker Registry v2 token
// authentication protocol. service selects the token audience (empty means
// the configured default), rawScope is the raw "type:name:actions" scope
// string from the request (empty means a token with no access claim).
type TokenService interface {
	Issue(ctx context.Context, username, service, rawScope string) (string, error)
}
