package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to transport layers alongside HTTP-ish codes.
const (
	TextCodeDuplicateUsername    = "DUPLICATE_USERNAME"
	TextCodeDuplicateEmail       = "DUPLICATE_EMAIL"
	TextCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidCreds         = "INVALID_CREDENTIALS"
	TextCodeAccountNotActive     = "ACCOUNT_NOT_ACTIVE"
	TextCodeInvalidStatus        = "INVALID_ACCOUNT_STATUS"
	TextCodeInvalidProof         = "INVALID_OR_EXPIRED_PROOF"
	TextCodeTokenNotFound        = "TOKEN_NOT_FOUND"
	TextCodeTokenRevoked         = "TOKEN_REVOKED_OR_EXPIRED"
	TextCodeTooManyLoginAttempts = "TOO_MANY_LOGIN_ATTEMPTS"

	// TextCodeTokenInvalid is shared by every codec failure. A caller probing
	// with forged tokens must not be able to tell a bad signature from a
	// malformed or expired one; the distinct error values below exist for
	// internal logging only.
	TextCodeTokenInvalid = "TOKEN_INVALID"
)

// ErrDuplicateUsername is returned when registration collides on username.
var ErrDuplicateUsername = goerrors.New("username already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUsername).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateEmail is returned when registration collides on email.
var ErrDuplicateEmail = goerrors.New("email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotFound is returned when no account matches the given identifier.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials covers both an unknown identifier and a password
// mismatch so that login responses never leak account existence.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotActive is returned when the account exists and the password
// matches but the lifecycle status forbids authentication.
var ErrAccountNotActive = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotActive).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidStatus is returned for lifecycle operations attempted from a
// status that does not allow them, activation of an already active account
// for example.
var ErrInvalidStatus = goerrors.New("invalid account status for this operation", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvalidStatus).
	WithCode(goerrors.CodeConflict)

// ErrInvalidOrExpiredProof is returned when an activation or reset proof is
// absent, expired, or already consumed. The three cases are deliberately
// indistinguishable.
var ErrInvalidOrExpiredProof = goerrors.New("invalid or expired proof", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidProof).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenNotFound is returned when a refresh token value has no stored record.
var ErrTokenNotFound = goerrors.New("refresh token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenRevokedOrExpired is returned when a stored refresh token exists but
// can no longer be used, either because it was rotated or revoked, or because
// it is past its expiry.
var ErrTokenRevokedOrExpired = goerrors.New("refresh token is revoked or expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when an account is inside its login
// cooldown window.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyLoginAttempts)

// ErrTokenExpired is the codec error for a token past its exp claim.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is the codec error for a token we could not parse.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignatureInvalid is the codec error for a signature that does not
// verify against the process signing key.
var ErrTokenSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the hasher-level mismatch error. The
// orchestrator translates it into ErrInvalidCredentials before it reaches a
// caller.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)
