package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService signs and verifies the two token profiles. Minting is a pure
// function of its inputs and the clock; revocability lives in the token
// store, not here.
type TokenService interface {
	MintAccessToken(account *Account, role *Role) (string, time.Time, error)
	MintRefreshToken(account *Account) (string, time.Time, error)
	ValidateAccess(token string) (*AccessClaims, error)
	ValidateRefresh(token string) (*RefreshClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, accessTTL, refreshTTL time.Duration, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source, useful for expiry tests.
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// MintAccessToken issues a signed access token carrying the role claims.
func (ts *TokenServiceImpl) MintAccessToken(account *Account, role *Role) (string, time.Time, error) {
	if account == nil {
		return "", time.Time{}, goerrors.New("account must not be nil", goerrors.CategoryBadInput)
	}
	if role == nil {
		return "", time.Time{}, goerrors.New("role must not be nil", goerrors.CategoryBadInput)
	}

	now := ts.now()
	expiresAt := now.Add(ts.accessTTL)

	claims := &AccessClaims{
		RegisteredClaims: ts.registeredClaims(account.Username, now, expiresAt),
		AccountID:        account.ID.String(),
		RoleID:           role.ID,
		RoleName:         role.Name,
	}

	signed, err := ts.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// MintRefreshToken issues a signed refresh token with the minimized claim
// surface. The jti claim guarantees a fresh token value on every mint even
// within the same clock tick.
func (ts *TokenServiceImpl) MintRefreshToken(account *Account) (string, time.Time, error) {
	if account == nil {
		return "", time.Time{}, goerrors.New("account must not be nil", goerrors.CategoryBadInput)
	}

	now := ts.now()
	expiresAt := now.Add(ts.refreshTTL)

	claims := &RefreshClaims{
		RegisteredClaims: ts.registeredClaims(account.Username, now, expiresAt),
		AccountID:        account.ID.String(),
	}

	signed, err := ts.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// ValidateAccess parses and verifies an access token. Signature verification
// happens before expiry and claim checks; claims from an unverified token
// are never returned.
func (ts *TokenServiceImpl) ValidateAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := ts.parseInto(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateRefresh parses and verifies a refresh token.
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := ts.parseInto(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (ts *TokenServiceImpl) registeredClaims(subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		Subject:   subject,
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	ensureTokenID(&claims)

	return claims
}

func (ts *TokenServiceImpl) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

func (ts *TokenServiceImpl) parseInto(tokenString string, claims jwt.Claims) error {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return ErrTokenSignatureInvalid
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return ErrTokenExpired
		default:
			return goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
		}
	}

	if !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return ErrTokenMalformed
	}

	return nil
}
