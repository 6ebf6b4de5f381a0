package handler

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/dockerplatform/registry-gate/pkg"
	"github.com/dockerplatform/registry-gate/pkg/domain"
	"github.com/dockerplatform/registry-gate/pkg/domain/token"
)

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type tokenErrorResponse struct {
	Errors []tokenError `json:"errors"`
}

type tokenError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

type tokenHandler struct {
	users  domain.UserRepository
	tokens domain.TokenService
}

func NewTokenHandler(users domain.UserRepository, tokens domain.TokenService) *tokenHandler {
	return &tokenHandler{
		users:  users,
		tokens: tokens,
	}
}

// ServeHTTP implements the Docker Registry v2 token endpoint. The request
// must carry basic credentials; any authorization failure downstream maps to
// a single 403 DENIED outcome with a human-readable detail.
func (h *tokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := pkg.LoggerFromContext(r.Context())

	username, password, ok := r.BasicAuth()
	if !ok || !h.authenticate(r, username, password) {
		w.Header().Set("WWW-Authenticate", `Basic realm="registry-gate"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	service := r.URL.Query().Get("service")
	scope := r.URL.Query().Get("scope")

	signed, err := h.tokens.Issue(r.Context(), username, service, scope)
	if err != nil {
		if domain.IsAccessDenied(err) {
			logger.WithError(err).WithField("username", username).Info("Registry token request denied")

			writeJson(w, http.StatusForbidden, tokenErrorResponse{
				Errors: []tokenError{{
					Code:    "DENIED",
					Message: "access denied",
					Detail:  err.Error(),
				}},
			})
			return
		}

		logger.WithError(err).Error("Unable to issue registry token")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJson(w, http.StatusOK, tokenResponse{
		Token:     signed,
		ExpiresIn: int64(token.TokenTTL.Seconds()),
	})
}

func (h *tokenHandler) authenticate(r *http.Request, username, password string) bool {
	user, err := h.users.FindByUsername(r.Context(), username)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
