package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-autobook/internal/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Verifier checks a raw bearer token and returns the user it identifies.
type Verifier func(ctx context.Context, rawToken string) (string, error)

// NewOIDCVerifier discovers issuer and verifies ID tokens against its keys.
func NewOIDCVerifier(ctx context.Context, issuer string) (Verifier, error) {
	if issuer == "" {
		return nil, fmt.Errorf("OIDC issuer not configured")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return FromIDTokenVerifier(provider.Verifier(&oidc.Config{SkipClientIDCheck: true})), nil
}

// FromIDTokenVerifier adapts a go-oidc verifier, reading the sub claim.
func FromIDTokenVerifier(v *oidc.IDTokenVerifier) Verifier {
	return func(ctx context.Context, rawToken string) (string, error) {
		idToken, err := v.Verify(ctx, rawToken)
		if err != nil {
			return "", err
		}
		var claims struct {
			Sub string `json:"sub"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return "", fmt.Errorf("failed to parse claims: %w", err)
		}
		if claims.Sub == "" {
			return "", fmt.Errorf("token has no subject")
		}
		return claims.Sub, nil
	}
}

// Middleware rejects requests without a valid user token and puts the user
// id into the request context.
func Middleware(verify Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			userID, err := verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// UserID returns the authenticated user, or "" outside Middleware.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
