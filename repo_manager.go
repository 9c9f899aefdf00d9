package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Roles() Roles
	RefreshTokens() RefreshTokens
	Proofs() AccountProofs
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	roles    Roles
	tokens   RefreshTokens
	proofs   AccountProofs
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		roles:    NewRolesRepository(db),
		tokens:   NewRefreshTokensRepository(db),
		proofs:   NewAccountProofsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository refresh tokens should be initialized")
	}

	if m.proofs == nil {
		return errors.New("repository proofs should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) RefreshTokens() RefreshTokens {
	return m.tokens
}

func (m mngr) Proofs() AccountProofs {
	return m.proofs
}
