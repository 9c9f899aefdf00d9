package auth_test

import (
	"testing"
	"time"

	auth "github.com/unipath/go-auth"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *auth.TokenServiceImpl {
	cfg := newTestConfig()
	return auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetAccessTokenExpiration(),
		cfg.GetRefreshTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		nil,
	)
}

func testAccountAndRole() (*auth.Account, *auth.Role) {
	account := &auth.Account{
		ID:       uuid.New(),
		Username: "ana",
		Email:    "ana@example.com",
		Status:   auth.AccountStatusActive,
	}
	role := &auth.Role{ID: 2, Name: auth.RoleStaff}
	account.RoleID = role.ID
	return account, role
}

func TestMintAndValidateAccessToken(t *testing.T) {
	ts := newTestTokenService()
	account, role := testAccountAndRole()

	signed, expiresAt, err := ts.MintAccessToken(account, role)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := ts.ValidateAccess(signed)
	require.NoError(t, err)

	assert.Equal(t, account.Username, claims.Username())
	assert.Equal(t, account.ID.String(), claims.AccountID)
	assert.Equal(t, role.ID, claims.RoleID)
	assert.Equal(t, role.Name, claims.RoleName)
	assert.Equal(t, "unipath", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestMintAndValidateRefreshToken(t *testing.T) {
	ts := newTestTokenService()
	account, _ := testAccountAndRole()

	signed, expiresAt, err := ts.MintRefreshToken(account)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, 5*time.Second)

	claims, err := ts.ValidateRefresh(signed)
	require.NoError(t, err)

	assert.Equal(t, account.Username, claims.Username())
	assert.Equal(t, account.ID.String(), claims.AccountID)
}

func TestMintRefreshTokenValuesAreUnique(t *testing.T) {
	ts := newTestTokenService()
	account, _ := testAccountAndRole()

	first, _, err := ts.MintRefreshToken(account)
	require.NoError(t, err)
	second, _, err := ts.MintRefreshToken(account)
	require.NoError(t, err)

	// The jti claim makes every mint distinct even within one clock tick.
	assert.NotEqual(t, first, second)
}

func TestMintRejectsNilInputs(t *testing.T) {
	ts := newTestTokenService()
	account, role := testAccountAndRole()

	_, _, err := ts.MintAccessToken(nil, role)
	assert.Error(t, err)

	_, _, err = ts.MintAccessToken(account, nil)
	assert.Error(t, err)

	_, _, err = ts.MintRefreshToken(nil)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	ts := newTestTokenService()
	account, role := testAccountAndRole()

	signed, _, err := ts.MintAccessToken(account, role)
	require.NoError(t, err)

	ts.WithClock(func() time.Time {
		return time.Now().Add(16 * time.Minute)
	})

	_, err = ts.ValidateAccess(signed)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, auth.TextCodeTokenInvalid, richErr.TextCode)
	assert.Equal(t, goerrors.CategoryAuth, richErr.Category)
}

func TestValidateWrongSigningKey(t *testing.T) {
	cfg := newTestConfig()
	minting := newTestTokenService()
	verifying := auth.NewTokenService(
		[]byte("a-completely-different-signing-key"),
		cfg.GetAccessTokenExpiration(),
		cfg.GetRefreshTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		nil,
	)

	account, role := testAccountAndRole()
	signed, _, err := minting.MintAccessToken(account, role)
	require.NoError(t, err)

	_, err = verifying.ValidateAccess(signed)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, auth.TextCodeTokenInvalid, richErr.TextCode)
}

func TestValidateMalformedToken(t *testing.T) {
	ts := newTestTokenService()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := ts.ValidateAccess(token)
		require.Error(t, err)

		var richErr *goerrors.Error
		require.ErrorAs(t, err, &richErr)
		assert.Equal(t, auth.TextCodeTokenInvalid, richErr.TextCode)
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	cfg := newTestConfig()
	minting := auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetAccessTokenExpiration(),
		cfg.GetRefreshTokenExpiration(),
		"someone-else",
		cfg.GetAudience(),
		nil,
	)
	verifying := newTestTokenService()

	account, role := testAccountAndRole()
	signed, _, err := minting.MintAccessToken(account, role)
	require.NoError(t, err)

	_, err = verifying.ValidateAccess(signed)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, auth.TextCodeTokenInvalid, richErr.TextCode)
}
