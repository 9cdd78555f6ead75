package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the JWT payload issued for authenticated accounts.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID          string `json:"uid,omitempty"`
	UserEmail    string `json:"email,omitempty"`
	UserName     string `json:"name,omitempty"`
	UserVerified bool   `json:"verified,omitempty"`
}

// UserID returns the account identifier, falling back to the subject claim.
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Email returns the email claim.
func (c *SessionClaims) Email() string {
	return c.UserEmail
}

// Name returns the display name claim.
func (c *SessionClaims) Name() string {
	return c.UserName
}

// Verified reports whether the account had a confirmed email when the token
// was issued.
func (c *SessionClaims) Verified() bool {
	return c.UserVerified
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
