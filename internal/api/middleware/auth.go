package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lorekeep/lorekeep/internal/api"
	"github.com/lorekeep/lorekeep/internal/repository"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	WorkspaceIDKey contextKey = "workspace_id"
)

// AuthValidator resolves a bearer token to an identity.
type AuthValidator interface {
	Validate(ctx context.Context, token string) (*repository.Identity, error)
}

// BearerAuth authenticates requests with an API bearer token and puts the
// resolved user and workspace on the request context.
func BearerAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			identity, err := validator.Validate(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, identity.UserID)
			ctx = context.WithValue(ctx, WorkspaceIDKey, identity.WorkspaceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetWorkspaceID returns the authenticated workspace ID from context.
func GetWorkspaceID(ctx context.Context) string {
	workspaceID, _ := ctx.Value(WorkspaceIDKey).(string)
	return workspaceID
}
