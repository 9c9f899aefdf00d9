package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// MaxLoginAttempts is the maximum number of failed attempts an account gets
// inside the cooldown window.
var MaxLoginAttempts = 5

// LoginCooldownPeriod is the window after which the attempt counter resets.
var LoginCooldownPeriod = 24 * time.Hour

// Auther orchestrates login, refresh rotation, logout, and password reset
// over the lifecycle manager, the token codec, and the token store.
type Auther struct {
	repo      RepositoryManager
	lifecycle *LifecycleManager
	tokens    TokenService
	mailer    *Mailer
	config    Config
	logger    Logger
	now       func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, config Config, opts ...AutherOption) *Auther {
	mailer := NewMailer(nil, config)

	tokenService := NewTokenService(
		[]byte(config.GetSigningKey()),
		config.GetAccessTokenExpiration(),
		config.GetRefreshTokenExpiration(),
		config.GetIssuer(),
		config.GetAudience(),
		defLogger{},
	)

	auther := &Auther{
		repo:      repo,
		lifecycle: NewLifecycleManager(repo, config, mailer),
		tokens:    tokenService,
		mailer:    mailer,
		config:    config,
		logger:    defLogger{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(auther)
		}
	}

	return auther
}

type AutherOption func(*Auther)

// WithAutherLogger overrides the orchestrator logger.
func WithAutherLogger(logger Logger) AutherOption {
	return func(a *Auther) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithNotifier replaces the default log-only notifier.
func WithNotifier(notifier Notifier) AutherOption {
	return func(a *Auther) {
		if notifier != nil {
			a.mailer = NewMailer(notifier, a.config).WithLogger(a.logger)
			a.lifecycle.mailer = a.mailer
		}
	}
}

// WithTokenService replaces the default HS256 token service.
func WithTokenService(tokens TokenService) AutherOption {
	return func(a *Auther) {
		if tokens != nil {
			a.tokens = tokens
		}
	}
}

// WithAutherClock overrides the time source, useful for expiry tests.
func WithAutherClock(clock func() time.Time) AutherOption {
	return func(a *Auther) {
		if clock != nil {
			a.now = clock
		}
	}
}

// Lifecycle exposes the account lifecycle manager for registration and
// activation flows.
func (s *Auther) Lifecycle() *LifecycleManager {
	return s.lifecycle
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login verifies credentials and returns a fresh token pair. An unknown
// identifier and a wrong password produce the identical error so responses
// never reveal whether an account exists. A successful login revokes every
// refresh token previously issued to the account: one login, one session.
func (s *Auther) Login(ctx context.Context, identifier, password string, opts ...SessionOption) (*TokenPair, error) {
	account, err := s.lifecycle.LookupForAuth(ctx, identifier)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			s.logger.Debug("login failed: unknown identifier", "identifier", identifier)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.checkLoginCooldown(account); err != nil {
		return nil, err
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			if err2 := s.repo.Accounts().TrackAttemptedLogin(ctx, account); err2 != nil {
				s.logger.Error("failed to track login attempt", "error", err2)
			}
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "password verification failed")
	}

	if !account.IsActive() {
		s.logger.Warn("login blocked due to account status", "status", account.Status)
		return nil, ErrAccountNotActive.Clone().WithMetadata(map[string]any{
			"status": account.Status,
		})
	}

	role, err := s.repo.Roles().GetByID(ctx, account.RoleID)
	if err != nil {
		return nil, err
	}

	sc := applySessionOptions(opts)

	pair, err := s.issueTokenPair(ctx, account, role, sc, true)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Accounts().TrackSuccessfulLogin(ctx, account); err != nil {
		s.logger.Error("failed to track successful login", "error", err)
	}

	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked with a
// compare-and-set, so when N callers race on the same value exactly one wins
// and every other call observes it as already revoked. A replayed stolen
// token therefore fails, and so does the legitimate holder's next refresh,
// which surfaces the compromise.
func (s *Auther) Refresh(ctx context.Context, refreshToken string, opts ...SessionOption) (*TokenPair, error) {
	stored, err := s.repo.RefreshTokens().GetByValue(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !stored.Usable(now) {
		return nil, ErrTokenRevokedOrExpired
	}

	account, err := s.repo.Accounts().GetByID(ctx, stored.AccountID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	role, err := s.repo.Roles().GetByID(ctx, account.RoleID)
	if err != nil {
		return nil, err
	}

	// Rotation keeps the original client context.
	sc := applySessionOptions(opts)
	if sc.userAgent == "" {
		sc.userAgent = stored.UserAgent
	}
	if sc.ipAddress == "" {
		sc.ipAddress = stored.IPAddress
	}

	var pair *TokenPair

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		won, err := s.repo.RefreshTokens().RevokeTx(ctx, tx, refreshToken)
		if err != nil {
			return err
		}
		if !won {
			return ErrTokenRevokedOrExpired
		}

		pair, err = s.mintAndStoreTx(ctx, tx, account, role, sc)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token refresh transaction failed")
	}

	return pair, nil
}

// Logout revokes the session behind the given refresh token. It is
// idempotent: an unknown token and an already revoked one both count as
// success, because the caller's intent, that the session must not work, is
// already satisfied.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.repo.RefreshTokens().GetByValue(ctx, refreshToken)
	if err != nil {
		if goerrors.Is(err, ErrTokenNotFound) {
			s.logger.Debug("logout for unknown refresh token treated as success")
			return nil
		}
		return err
	}

	if _, err := s.repo.RefreshTokens().Revoke(ctx, refreshToken); err != nil {
		return err
	}

	s.logger.Info("refresh token revoked on logout", "account_id", stored.AccountID.String())

	return nil
}

// RequestPasswordReset issues a reset proof and dispatches the reset email.
// An unknown email is absorbed into success so the response cannot be used
// to enumerate accounts.
func (s *Auther) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for password reset")
	}

	proof, err := s.repo.Proofs().Issue(ctx, account.ID, ProofKindPasswordReset, s.config.GetProofExpiration())
	if err != nil {
		return err
	}

	s.mailer.SendPasswordResetEmail(ctx, account.Email, proof.Secret)
	s.logger.Info("password reset link issued", "account_id", account.ID.String())

	return nil
}

// ResetPassword consumes a reset proof, re-hashes the password, and revokes
// every outstanding refresh token for the account: a password change ends
// all existing sessions.
func (s *Auther) ResetPassword(ctx context.Context, email, proof, newPassword string) error {
	if err := validation.Validate(newPassword, validation.Required, validation.Length(8, 100)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for password reset")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Proofs().ConsumeTx(ctx, tx, account.ID, ProofKindPasswordReset, proof); err != nil {
			return err
		}

		hash, err := HashPassword(newPassword)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := s.repo.Accounts().ResetPasswordTx(ctx, tx, account.ID, hash); err != nil {
			return err
		}

		if _, err := s.repo.RefreshTokens().RevokeAllForAccountTx(ctx, tx, account.ID, s.now()); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	s.logger.Info("password reset completed", "account_id", account.ID.String())

	return nil
}

// ExistsByUsername reports whether the username is taken.
func (s *Auther) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.repo.Accounts().ExistsByUsername(ctx, username)
}

// ExistsByEmail reports whether the email is registered.
func (s *Auther) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.Accounts().ExistsByEmail(ctx, email)
}

func (s *Auther) checkLoginCooldown(account *Account) error {
	attempts := account.LoginAttempts

	if account.LoginAttemptAt != nil && s.now().Sub(*account.LoginAttemptAt) > LoginCooldownPeriod {
		attempts = 0
	}

	if attempts > MaxLoginAttempts {
		return ErrTooManyLoginAttempts
	}

	return nil
}

// issueTokenPair mints and persists a fresh pair. When revokePrior is set it
// first bulk-revokes the account's live tokens with a cutoff taken before
// the new token is inserted, so the revoke can never eat the replacement.
func (s *Auther) issueTokenPair(ctx context.Context, account *Account, role *Role, sc sessionContext, revokePrior bool) (*TokenPair, error) {
	var pair *TokenPair

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if revokePrior {
			if _, err := s.repo.RefreshTokens().RevokeAllForAccountTx(ctx, tx, account.ID, s.now()); err != nil {
				return err
			}
		}

		var err error
		pair, err = s.mintAndStoreTx(ctx, tx, account, role, sc)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token issuance transaction failed")
	}

	return pair, nil
}

func (s *Auther) mintAndStoreTx(ctx context.Context, tx bun.IDB, account *Account, role *Role, sc sessionContext) (*TokenPair, error) {
	accessToken, accessExpiry, err := s.tokens.MintAccessToken(account, role)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExpiry, err := s.tokens.MintRefreshToken(account)
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &RefreshToken{
		AccountID:  account.ID,
		TokenValue: refreshToken,
		UserAgent:  sc.userAgent,
		IPAddress:  sc.ipAddress,
		ExpiresAt:  refreshExpiry,
		CreatedAt:  &now,
	}

	if _, err := s.repo.RefreshTokens().SaveTx(ctx, tx, record); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExpiry,
	}, nil
}
