package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle status of an account
type AccountStatus = string

const (
	// AccountStatusPending is the status between registration and activation
	AccountStatusPending AccountStatus = "pending_verification"
	// AccountStatusActive is the only status that may authenticate
	AccountStatusActive AccountStatus = "active"
	// AccountStatusDisabled is terminal; nothing transitions out of it
	AccountStatusDisabled AccountStatus = "disabled"
)

// Account is the identity record. Username is unique and case-sensitive;
// email is unique and stored lowercased so lookups are case-insensitive.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	RoleID         int64         `bun:"role_id,notnull" json:"role_id,omitempty"`
	Role           *Role         `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	Username       string        `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string        `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string        `bun:"password_hash,notnull" json:"-"`
	FullName       string        `bun:"full_name" json:"full_name,omitempty"`
	Phone          string        `bun:"phone" json:"phone,omitempty"`
	Status         AccountStatus `bun:"status,notnull" json:"status,omitempty"`
	LoginAttempts  int           `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time    `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time    `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	CreatedBy      string        `bun:"created_by" json:"created_by,omitempty"`
	UpdatedAt      *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	UpdatedBy      string        `bun:"updated_by" json:"updated_by,omitempty"`
}

// EnsureStatus defaults a blank status to pending verification.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = AccountStatusPending
	}
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Role is a named role referenced by accounts and embedded into access
// token claims.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Name          string `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string `bun:"description" json:"description,omitempty"`
}

// RefreshToken is a single issued refresh credential. TokenValue is a bearer
// secret: unique, never reused, and never logged after issuance. Records are
// revoked in place, never deleted; retention is the host's concern.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"-"`
	TokenValue    string     `bun:"token_value,notnull,unique" json:"-"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	IPAddress     string     `bun:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Revoked       bool       `bun:"revoked,notnull,default:false" json:"revoked,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired reports whether the record is past its expiry at the given time.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Usable reports whether the token can still be presented for refresh.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}

// ProofKind distinguishes the two single-use proof flows.
type ProofKind = string

const (
	// ProofKindActivation authorizes pending_verification -> active
	ProofKindActivation ProofKind = "activation"
	// ProofKindPasswordReset authorizes a password change
	ProofKindPasswordReset ProofKind = "password_reset"
)

// AccountProof is a single-use, time-bounded secret correlated to one
// account. Issuing a new proof invalidates any outstanding proof of the same
// kind; consumption is a compare-and-set on the consumed flag.
type AccountProof struct {
	bun.BaseModel `bun:"table:account_proofs,alias:prf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Kind          ProofKind  `bun:"kind,notnull" json:"kind,omitempty"`
	Secret        string     `bun:"secret,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Consumed      bool       `bun:"consumed,notnull,default:false" json:"consumed,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email so storage and lookup agree
// on a canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
