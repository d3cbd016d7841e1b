package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the payload of the access token the IMS backend issues.
// Older tokens carry the user id as "id" instead of "user_id".
type JWTClaims struct {
	UserID   string   `json:"user_id,omitempty"`
	LegacyID string   `json:"id,omitempty"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// ActorID returns the user id regardless of which claim carried it.
func (c *JWTClaims) ActorID() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.LegacyID != "":
		return c.LegacyID
	default:
		return c.Subject
	}
}

// NormalizedRole lowercases the role so "ADMIN" and "admin" compare equal.
func (c *JWTClaims) NormalizedRole() UserRole {
	return UserRole(strings.ToLower(strings.TrimSpace(string(c.Role))))
}

// Actor identifies the console user performing an operation.
type Actor struct {
	ID   string
	Role UserRole
}
