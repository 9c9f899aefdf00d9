package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the fixed claim set carried by access tokens. Subject is
// the username; the role claims let transports make authorization decisions
// without a store lookup.
type AccessClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId,omitempty"`
	RoleID    int64  `json:"roleId,omitempty"`
	RoleName  string `json:"roleName,omitempty"`
}

// Username returns the subject claim.
func (c *AccessClaims) Username() string {
	return c.RegisteredClaims.Subject
}

// AccountUUID parses the accountId claim.
func (c *AccessClaims) AccountUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AccountID)
}

// HasRole checks the role claim against a well-known name.
func (c *AccessClaims) HasRole(name RoleName) bool {
	return c.RoleName == name
}

// IsAtLeast checks the role claim against the built-in hierarchy.
func (c *AccessClaims) IsAtLeast(minName RoleName) bool {
	return RoleIsAtLeast(c.RoleName, minName)
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAtTime returns the issued at time
func (c *AccessClaims) IssuedAtTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// IsExpired reports whether the exp claim is in the past.
func (c *AccessClaims) IsExpired(now time.Time) bool {
	exp := c.Expires()
	return !exp.IsZero() && !exp.After(now)
}

// RefreshClaims is the minimized claim set carried by refresh tokens. It
// deliberately omits role claims so a logged or leaked refresh token exposes
// as little as possible.
type RefreshClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId,omitempty"`
}

// Username returns the subject claim.
func (c *RefreshClaims) Username() string {
	return c.RegisteredClaims.Subject
}

// AccountUUID parses the accountId claim.
func (c *RefreshClaims) AccountUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AccountID)
}

// Expires returns the expiration time
func (c *RefreshClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IsExpired reports whether the exp claim is in the past.
func (c *RefreshClaims) IsExpired(now time.Time) bool {
	exp := c.Expires()
	return !exp.IsZero() && !exp.After(now)
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
