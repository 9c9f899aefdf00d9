package auth_test

import (
	"context"
	"sync"
	"testing"

	auth "github.com/unipath/go-auth"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertTextCode(t *testing.T, err error, textCode string) {
	t.Helper()
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, textCode, richErr.TextCode)
}

func TestLoginSuccess(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	account := registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.False(t, pair.AccessExpiresAt.IsZero())

	claims, err := auther.TokenService().ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.Username())
	assert.Equal(t, account.ID.String(), claims.AccountID)
	assert.Equal(t, auth.RoleUser, claims.RoleName)
}

func TestLoginByEmailIdentifier(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	_, err := auther.Login(context.Background(), "Ana@Example.com", "s3cret-password")
	assert.NoError(t, err)
}

func TestLoginUnknownAndWrongPasswordAreIndistinguishable(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	_, errUnknown := auther.Login(context.Background(), "nobody", "s3cret-password")
	_, errWrongPass := auther.Login(context.Background(), "ana", "wrong-password")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPass)
	assert.Equal(t, errUnknown, errWrongPass)
	assertTextCode(t, errWrongPass, auth.TextCodeInvalidCreds)
}

func TestLoginPendingAccountIsRejected(t *testing.T) {
	auther, _, _ := setupAuthenticator(t)
	registerAccount(t, auther, "ana", "ana@example.com", "s3cret-password")

	_, err := auther.Login(context.Background(), "ana", "s3cret-password")
	assertTextCode(t, err, auth.TextCodeAccountNotActive)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, auth.AccountStatusPending, richErr.Metadata["status"])
	assert.Nil(t, auth.ErrAccountNotActive.Metadata)
}

func TestLoginRevokesPriorSessions(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	account := registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	first, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	second, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	// The earlier session no longer refreshes.
	_, err = auther.Refresh(context.Background(), first.RefreshToken)
	assertTextCode(t, err, auth.TextCodeTokenRevoked)

	// The new one does.
	_, err = auther.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)

	sessions, err := auther.ActiveSessions(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestLoginRecordsClientContext(t *testing.T) {
	auther, repo, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password",
		auth.WithUserAgent("cli/1.0"),
		auth.WithIPAddress("203.0.113.7"),
	)
	require.NoError(t, err)

	record, err := repo.RefreshTokens().GetByValue(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "cli/1.0", record.UserAgent)
	assert.Equal(t, "203.0.113.7", record.IPAddress)
}

func TestLoginCooldownAfterRepeatedFailures(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	for i := 0; i <= auth.MaxLoginAttempts; i++ {
		_, err := auther.Login(context.Background(), "ana", "wrong-password")
		assertTextCode(t, err, auth.TextCodeInvalidCreds)
	}

	// Even the right password is refused inside the cooldown window.
	_, err := auther.Login(context.Background(), "ana", "s3cret-password")
	assertTextCode(t, err, auth.TextCodeTooManyLoginAttempts)
}

func TestRefreshRotatesToken(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	rotated, err := auther.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.NotEmpty(t, rotated.AccessToken)

	// The presented token was consumed by the rotation.
	_, err = auther.Refresh(context.Background(), pair.RefreshToken)
	assertTextCode(t, err, auth.TextCodeTokenRevoked)

	// The rotated token works.
	_, err = auther.Refresh(context.Background(), rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshInheritsClientContext(t *testing.T) {
	auther, repo, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password",
		auth.WithUserAgent("cli/1.0"),
		auth.WithIPAddress("203.0.113.7"),
	)
	require.NoError(t, err)

	rotated, err := auther.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	record, err := repo.RefreshTokens().GetByValue(context.Background(), rotated.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "cli/1.0", record.UserAgent)
	assert.Equal(t, "203.0.113.7", record.IPAddress)
}

func TestRefreshUnknownToken(t *testing.T) {
	auther, _, _ := setupAuthenticator(t)

	_, err := auther.Refresh(context.Background(), "never-issued")
	assertTextCode(t, err, auth.TextCodeTokenNotFound)
}

func TestRefreshExpiredToken(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	expireRefreshToken(t, db, pair.RefreshToken)

	_, err = auther.Refresh(context.Background(), pair.RefreshToken)
	assertTextCode(t, err, auth.TextCodeTokenRevoked)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	const workers = 8

	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auther.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			assertTextCode(t, err, auth.TextCodeTokenRevoked)
		}
	}

	assert.Equal(t, 1, winners)
}

func TestLogoutRevokesSession(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	require.NoError(t, auther.Logout(context.Background(), pair.RefreshToken))

	_, err = auther.Refresh(context.Background(), pair.RefreshToken)
	assertTextCode(t, err, auth.TextCodeTokenRevoked)
}

func TestLogoutIsIdempotent(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	assert.NoError(t, auther.Logout(context.Background(), pair.RefreshToken))
	assert.NoError(t, auther.Logout(context.Background(), pair.RefreshToken))
	assert.NoError(t, auther.Logout(context.Background(), "never-issued"))
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	auther, _, _ := setupAuthenticator(t)

	assert.NoError(t, auther.RequestPasswordReset(context.Background(), "nobody@example.com"))
}

func TestRequestPasswordResetDispatchesEmail(t *testing.T) {
	repo, db := setupRepoManager(t)
	notifier := newRecordingNotifier()
	auther := auth.NewAuthenticator(repo, newTestConfig(), auth.WithNotifier(notifier))
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	// Drain the registration email first.
	notifier.waitForEmail(t)

	require.NoError(t, auther.RequestPasswordReset(context.Background(), "ana@example.com"))

	msg := notifier.waitForEmail(t)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Contains(t, msg.Subject, "Reset")
	assert.Contains(t, msg.Body, "https://app.example.com/reset-password?email=ana%40example.com&token=")
}

func TestResetPasswordFullFlow(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	account := registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	pair, err := auther.Login(context.Background(), "ana", "s3cret-password")
	require.NoError(t, err)

	require.NoError(t, auther.RequestPasswordReset(context.Background(), "ana@example.com"))
	secret := latestProofSecret(t, db, account.ID, auth.ProofKindPasswordReset)

	require.NoError(t, auther.ResetPassword(context.Background(), "ana@example.com", secret, "a-brand-new-password"))

	// The old password no longer works, the new one does.
	_, err = auther.Login(context.Background(), "ana", "s3cret-password")
	assertTextCode(t, err, auth.TextCodeInvalidCreds)

	_, err = auther.Login(context.Background(), "ana", "a-brand-new-password")
	require.NoError(t, err)

	// Every session open before the reset is dead.
	_, err = auther.Refresh(context.Background(), pair.RefreshToken)
	assertTextCode(t, err, auth.TextCodeTokenRevoked)
}

func TestResetPasswordProofIsSingleUse(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	account := registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	require.NoError(t, auther.RequestPasswordReset(context.Background(), "ana@example.com"))
	secret := latestProofSecret(t, db, account.ID, auth.ProofKindPasswordReset)

	require.NoError(t, auther.ResetPassword(context.Background(), "ana@example.com", secret, "a-brand-new-password"))

	err := auther.ResetPassword(context.Background(), "ana@example.com", secret, "yet-another-password")
	assertTextCode(t, err, auth.TextCodeInvalidProof)

	// The failed replay did not change the password.
	_, err = auther.Login(context.Background(), "ana", "a-brand-new-password")
	assert.NoError(t, err)
}

func TestResetPasswordRejectsWeakPassword(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	account := registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	require.NoError(t, auther.RequestPasswordReset(context.Background(), "ana@example.com"))
	secret := latestProofSecret(t, db, account.ID, auth.ProofKindPasswordReset)

	err := auther.ResetPassword(context.Background(), "ana@example.com", secret, "short")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
}

func TestResetPasswordUnknownEmail(t *testing.T) {
	auther, _, _ := setupAuthenticator(t)

	err := auther.ResetPassword(context.Background(), "nobody@example.com", "proof", "a-brand-new-password")
	assertTextCode(t, err, auth.TextCodeAccountNotFound)
}

func TestExistsHelpers(t *testing.T) {
	auther, _, db := setupAuthenticator(t)
	registerActiveAccount(t, auther, db, "ana", "ana@example.com", "s3cret-password")

	exists, err := auther.ExistsByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = auther.ExistsByEmail(context.Background(), "Ana@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = auther.ExistsByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}
