package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"beatspace/apperr"
	"beatspace/models"
	"beatspace/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrUnknownUser is wrapped into the Unauthorized error when the token
// subject has no matching user.
var ErrUnknownUser = errors.New("unknown user")

// UserLookup is the part of the user store the gate needs.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// ResolvePrincipal verifies token and loads the approved user it names.
// Every failure is Unauthorized; the wrapped cause distinguishes missing,
// expired and invalid tokens and unknown users.
func ResolvePrincipal(ctx context.Context, users UserLookup, token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, apperr.New(apperr.KindUnauthorized, "missing credentials")
	}
	claims, err := utils.ValidateJWT(token)
	if err != nil {
		return models.Principal{}, apperr.Wrap(apperr.KindUnauthorized, "invalid credentials", err)
	}
	user, err := users.GetByEmail(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrUserNotFound) {
		return models.Principal{}, apperr.Wrap(apperr.KindUnauthorized, "invalid credentials", ErrUnknownUser)
	}
	if err != nil {
		return models.Principal{}, err
	}
	if user.Status != models.UserApproved {
		return models.Principal{}, apperr.New(apperr.KindUnauthorized, "account is not approved")
	}

	if err := users.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		slog.Warn("last login refresh failed", "event", "last_login_failed", "module", "auth", "user_id", user.ID, "error", err)
	}
	return models.PrincipalFor(*user), nil
}

// Authenticator rejects requests without a valid bearer token and stores the
// resolved principal in the request context.
func Authenticator(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := ResolvePrincipal(r.Context(), users, BearerToken(r))
			if err != nil {
				slog.Debug("authentication failed", "module", "auth", "path", r.URL.Path, "error", err)
				utils.RespondWithAppError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects principals whose role is not listed. It must run after
// Authenticator.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.RespondWithAppError(w, r, apperr.ErrUnauthorized)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.RespondWithAppError(w, r, apperr.ErrForbidden)
		})
	}
}
