package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenPair is what a successful login or refresh hands back to the caller.
// AccessExpiresAt is the absolute expiry of the access token so transports
// can relay it without re-parsing the JWT.
type TokenPair struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string, opts ...SessionOption) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, opts ...SessionOption) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, proof, newPassword string) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenExpiration() time.Duration
	GetRefreshTokenExpiration() time.Duration
	GetProofExpiration() time.Duration
	GetClientBaseURL() string
	GetEmailVerificationPath() string
	GetPasswordResetPath() string
}

// Notifier delivers a message to an account holder. Implementations are
// expected to be best-effort: the orchestrator never rolls back a state
// change because a send failed.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// SessionOption carries advisory client context captured at login or refresh
// time. It is stored with the refresh token record and never used for
// validation.
type SessionOption func(*sessionContext)

type sessionContext struct {
	userAgent string
	ipAddress string
}

// WithUserAgent records the client user agent on the issued refresh token.
func WithUserAgent(ua string) SessionOption {
	return func(sc *sessionContext) {
		sc.userAgent = ua
	}
}

// WithIPAddress records the client source address on the issued refresh token.
func WithIPAddress(ip string) SessionOption {
	return func(sc *sessionContext) {
		sc.ipAddress = ip
	}
}

func applySessionOptions(opts []SessionOption) sessionContext {
	sc := sessionContext{}
	for _, opt := range opts {
		if opt != nil {
			opt(&sc)
		}
	}
	return sc
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
