package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coachdesk-backend/pkg/config"
	"coachdesk-backend/pkg/models"
	"coachdesk-backend/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey keys values stored in the request context.
type ContextKey string

const (
	ActorContextKey ContextKey = "actor"
)

// AuthMiddleware verifies the bearer token and injects the authenticated
// actor into the request context. Identity is authenticated upstream; the
// middleware only verifies the signature, type and expiry.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}

			claims, ok := token.Claims.(*models.TokenClaims)
			if !ok {
				utils.WriteUnauthorizedResponse(w, "Invalid token claims")
				return
			}

			// Only access tokens authenticate requests
			if claims.Type != "access" {
				utils.WriteUnauthorizedResponse(w, "Invalid token type")
				return
			}

			if time.Now().Unix() > claims.Exp {
				utils.WriteUnauthorizedResponse(w, "Token expired")
				return
			}

			actor := &models.Actor{
				ID:    claims.ActorID,
				Email: claims.Email,
			}

			ctx := context.WithValue(r.Context(), ActorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActorFromContext returns the authenticated actor, if any.
func GetActorFromContext(ctx context.Context) (*models.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(*models.Actor)
	return actor, ok
}

// RequireActor returns the authenticated actor or an error.
func RequireActor(ctx context.Context) (*models.Actor, error) {
	actor, ok := GetActorFromContext(ctx)
	if !ok || actor == nil {
		return nil, fmt.Errorf("actor not authenticated")
	}
	return actor, nil
}
