package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// RegisterMessage carries a self-service registration request.
type RegisterMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	// UseHashid derives the account ID deterministically from the email
	// instead of generating a random one.
	UseHashid bool
}

func (m RegisterMessage) Type() string { return "account.register" }

func (m RegisterMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&m.Email, validation.Required, validation.Length(6, 255), is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&m.FullName, validation.Length(0, 255)),
		validation.Field(&m.Phone, validation.Length(10, 11), is.Digit),
	)
}

// LifecycleManager owns the account state machine: it creates accounts in
// pending_verification, activates them against a consumed proof, and resolves
// accounts for authentication. It never mints or revokes tokens.
type LifecycleManager struct {
	repo         RepositoryManager
	stateMachine AccountStateMachine
	mailer       *Mailer
	config       Config
	logger       Logger
}

type LifecycleOption func(*LifecycleManager)

// WithLifecycleLogger overrides the manager's logger.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(l *LifecycleManager) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLifecycleStateMachine replaces the default state machine.
func WithLifecycleStateMachine(sm AccountStateMachine) LifecycleOption {
	return func(l *LifecycleManager) {
		if sm != nil {
			l.stateMachine = sm
		}
	}
}

func NewLifecycleManager(repo RepositoryManager, config Config, mailer *Mailer, opts ...LifecycleOption) *LifecycleManager {
	manager := &LifecycleManager{
		repo:         repo,
		stateMachine: NewAccountStateMachine(repo.Accounts()),
		mailer:       mailer,
		config:       config,
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}

	return manager
}

// Register creates an account in pending_verification, issues an activation
// proof, and dispatches the activation email. Uniqueness is enforced by the
// store; a losing concurrent registration surfaces as ErrDuplicateUsername
// or ErrDuplicateEmail no matter how the race interleaves.
func (l *LifecycleManager) Register(ctx context.Context, msg RegisterMessage) (*Account, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}
	var proof *AccountProof

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		roleName := msg.Role
		if roleName == "" {
			roleName = DefaultRoleName
		}

		role, err := l.repo.Roles().GetByNameTx(ctx, tx, roleName)
		if err != nil {
			if goerrors.IsNotFound(err) && roleName == DefaultRoleName {
				return goerrors.New("default role is not seeded", goerrors.CategoryInternal)
			}
			return err
		}

		hash, err := HashPassword(msg.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		account.Username = msg.Username
		account.Email = msg.Email
		account.PasswordHash = hash
		account.FullName = msg.FullName
		account.Phone = msg.Phone
		account.RoleID = role.ID
		account.Status = AccountStatusPending

		if msg.UseHashid {
			if id, err := hashid.NewUUID(NormalizeEmail(msg.Email)); err == nil {
				account.ID = id
			}
		}

		if account, err = l.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return err
		}

		proof, err = l.repo.Proofs().IssueTx(ctx, tx, account.ID, ProofKindActivation, l.config.GetProofExpiration())
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	l.mailer.SendActivationEmail(ctx, account.Email, proof.Secret)
	l.logger.Info("registered account", "username", account.Username, "account_id", account.ID.String())

	return account, nil
}

// Activate consumes an activation proof and moves the account from
// pending_verification to active.
func (l *LifecycleManager) Activate(ctx context.Context, email, proof string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = l.repo.Accounts().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for activation")
		}

		if account.Status != AccountStatusPending {
			return ErrInvalidStatus.Clone().WithMetadata(map[string]any{
				"status": account.Status,
			})
		}

		if err := l.repo.Proofs().ConsumeTx(ctx, tx, account.ID, ProofKindActivation, proof); err != nil {
			return err
		}

		if account, err = l.stateMachine.Transition(ctx, tx, account, AccountStatusActive); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account activation transaction failed")
	}

	l.logger.Info("account activated", "username", account.Username)

	return account, nil
}

// LookupForAuth resolves an account by username or email for the
// authentication flow.
func (l *LifecycleManager) LookupForAuth(ctx context.Context, identifier string) (*Account, error) {
	account, err := l.repo.Accounts().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account")
	}

	return account, nil
}
