package auth

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Roles looks up role records. Role rows are seeded by the host application;
// a missing default role is a deployment defect and fails loudly. Tx variants
// exist so lookups inside a transaction never reach back to the pool.
type Roles interface {
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	GetDefault(ctx context.Context) (*Role, error)
	GetDefaultTx(ctx context.Context, tx bun.IDB) (*Role, error)
}

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (r *roles) GetByID(ctx context.Context, id int64) (*Role, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *roles) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerrors.New("role not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up role")
	}

	return record, nil
}

func (r *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerrors.New("role not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"name": name})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up role")
	}

	return record, nil
}

func (r *roles) GetDefault(ctx context.Context) (*Role, error) {
	return r.GetDefaultTx(ctx, r.db)
}

func (r *roles) GetDefaultTx(ctx context.Context, tx bun.IDB) (*Role, error) {
	role, err := r.GetByNameTx(ctx, tx, DefaultRoleName)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, goerrors.New("default role is not seeded", goerrors.CategoryInternal).
				WithMetadata(map[string]any{"name": DefaultRoleName})
		}
		return nil, err
	}
	return role, nil
}
