package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActorRole is the advisory role carried on a profile. Real authority always
// comes from relation rows (memberships, assignments, shares, links).
type ActorRole string

const (
	RoleOwner   ActorRole = "owner"
	RoleCoach   ActorRole = "coach"
	RoleStaff   ActorRole = "staff"
	RoleStudent ActorRole = "student"
	RoleParent  ActorRole = "parent"
)

// Actor represents an authenticated profile in the system
type Actor struct {
	ID                string    `json:"id" db:"id"`
	Email             string    `json:"email" db:"email"`
	Name              string    `json:"name,omitempty" db:"name"`
	Role              ActorRole `json:"role" db:"role"`
	ActiveWorkspaceID string    `json:"active_workspace_id" db:"active_workspace_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// RefreshTokenRequest represents the request payload for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenClaims represents the JWT token claims
type TokenClaims struct {
	ActorID string `json:"actor_id"`
	Email   string `json:"email"`
	Type    string `json:"type"` // "access" or "refresh"
	Exp     int64  `json:"exp"`
	Iat     int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.ActorID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
