package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE (
	"acc"."id" = ?
) RETURNING *;`

var UpdateAccountStatusSQL = `UPDATE "accounts" AS "acc"
SET
	"status" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE (
	"acc"."id" = ?
) RETURNING *;`

// Accounts is the account store. Uniqueness of username and email is
// enforced by the database; Create translates constraint violations into the
// typed duplicate errors so a concurrent registration race cannot slip
// through an application-level existence check.
type Accounts interface {
	repository.Repository[*Account]

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus) (*Account, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus) (*Account, error)

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	options := resolveAccountIdentifier(identifier)
	if len(options) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"identifier": identifier,
			})
	}

	for _, opt := range options {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": NormalizeEmail(email),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return a.db.NewSelect().Model((*Account)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
}

func (a *accounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.db.NewSelect().Model((*Account)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Exists(ctx)
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		if dup := translateDuplicateAccount(err); dup != nil {
			return nil, dup
		}
		return nil, err
	}

	return created, nil
}

func (a *accounts) UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus) (*Account, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status)
}

func (a *accounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus) (*Account, error) {
	// Touches only the status column; a sparse model update would write
	// zero values over every other field.
	res, err := a.Repository.RawTx(ctx, tx, UpdateAccountStatusSQL, status, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetAccountPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	now := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"login_attempts" = "login_attempts" + 1,
			"login_attempt_at" = ?
		WHERE ("acc".id = ?);
	`, now, account.ID).Exec(ctx)

	return err
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	loggedInAt := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE ("acc".id = ?);
	`, loggedInAt, account.ID).Exec(ctx)

	return err
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.EnsureStatus()
	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// translateDuplicateAccount maps a store uniqueness violation onto the typed
// duplicate errors. Both sqlite ("UNIQUE constraint failed: accounts.email")
// and postgres ("duplicate key value violates unique constraint ...email...")
// spell the offending column in the driver message.
func translateDuplicateAccount(err error) error {
	if err == nil {
		return nil
	}

	if !isUniqueViolation(err) {
		return nil
	}

	msg := err.Error()
	if strings.Contains(msg, "username") {
		return ErrDuplicateUsername
	}
	if strings.Contains(msg, "email") {
		return ErrDuplicateEmail
	}

	return goerrors.Wrap(err, goerrors.CategoryConflict, "account violates a uniqueness constraint")
}

type identifierOption struct {
	column string
	value  string
}

// resolveAccountIdentifier decides which columns to probe for a login
// identifier. Email lookups are case-insensitive; usernames are not.
func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  NormalizeEmail(trimmed),
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}
