package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"notevault/internal/note/model"
	"notevault/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	IdentityKey  contextKey = "identity"
	RequestIDKey contextKey = "requestID"
)

type AuthConfig struct {
	// JWTSecret signs HS256 bearer tokens.
	JWTSecret string
	// Fallback is used for requests that carry no credentials at all.
	Fallback model.Identity
}

// IdentityFrom returns the caller attached by the auth middleware.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(model.Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// Auth resolves the caller from a bearer token. Requests without an
// Authorization header or token parameter run as cfg.Fallback; a token that
// is present but invalid is rejected.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Browsers cannot set headers on WebSocket upgrades, so the
			// token may also arrive in the query string.
			tokenString := r.URL.Query().Get("token")
			authHeader := r.Header.Get("Authorization")
			if tokenString == "" && authHeader != "" {
				tokenString = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			}

			if tokenString == "" && authHeader == "" {
				recordIdentity(r.Context(), cfg.Fallback.UserID)
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), cfg.Fallback)))
				return
			}

			identity, err := parseToken(tokenString, cfg.JWTSecret)
			if err != nil {
				logger.Sugar.Warnf("Invalid token: %v", err)
				WriteError(w, http.StatusUnauthorized, "Invalid credentials", nil)
				return
			}

			recordIdentity(r.Context(), identity.UserID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func parseToken(tokenString, secret string) (model.Identity, error) {
	if tokenString == "" {
		return model.Identity{}, fmt.Errorf("empty bearer token")
	}
	if secret == "" {
		return model.Identity{}, fmt.Errorf("server is not configured to validate JWTs")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return model.Identity{}, err
	}
	if !token.Valid {
		return model.Identity{}, fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Identity{}, fmt.Errorf("could not parse token claims")
	}
	userID, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(userID) == "" {
		return model.Identity{}, fmt.Errorf("user ID (sub) claim is missing or invalid")
	}

	role, _ := claims["role"].(string)
	return model.Identity{UserID: userID, Role: model.ParseRole(role)}, nil
}
