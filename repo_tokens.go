package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens is the system of record for refresh-token revocability. It
// is the only shared mutable state in this package, so every mutation is a
// single atomic statement: Revoke is a compare-and-set on the revoked flag
// and RevokeAllForAccount only touches rows created at or before its cutoff.
type RefreshTokens interface {
	Save(ctx context.Context, record *RefreshToken) (*RefreshToken, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *RefreshToken) (*RefreshToken, error)

	GetByValue(ctx context.Context, value string) (*RefreshToken, error)
	GetByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error)

	// Revoke flips revoked to true for the given token value. The returned
	// bool reports whether this call performed the flip: under N concurrent
	// calls on the same value exactly one sees true.
	Revoke(ctx context.Context, value string) (bool, error)
	RevokeTx(ctx context.Context, tx bun.IDB, value string) (bool, error)

	// RevokeAllForAccount bulk-revokes every live token for the account that
	// was created at or before cutoff. Tokens minted after the cutoff, by a
	// racing login or refresh, survive.
	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, cutoff time.Time) (int64, error)
	RevokeAllForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, cutoff time.Time) (int64, error)

	CountActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (int, error)
	ListActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]*RefreshToken, error)
}

type refreshTokens struct {
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	return &refreshTokens{db: db}
}

func (r *refreshTokens) Save(ctx context.Context, record *RefreshToken) (*RefreshToken, error) {
	return r.SaveTx(ctx, r.db, record)
}

func (r *refreshTokens) SaveTx(ctx context.Context, tx bun.IDB, record *RefreshToken) (*RefreshToken, error) {
	if record == nil {
		return nil, goerrors.New("refresh token record must not be nil", goerrors.CategoryBadInput)
	}
	if record.TokenValue == "" {
		return nil, goerrors.New("refresh token value must not be empty", goerrors.CategoryBadInput)
	}

	_, err := tx.NewInsert().Model(record).Exec(ctx)
	if err != nil {
		// Token values are unguessable, so a collision here means either a
		// generator defect or a replayed insert. Fail loudly, never
		// overwrite.
		if isUniqueViolation(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token value already exists").
				WithMetadata(map[string]any{
					"account_id": record.AccountID.String(),
				})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return record, nil
}

func (r *refreshTokens) GetByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return r.GetByValueTx(ctx, r.db, value)
}

func (r *refreshTokens) GetByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.token_value = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
	}

	return record, nil
}

func (r *refreshTokens) Revoke(ctx context.Context, value string) (bool, error) {
	return r.RevokeTx(ctx, r.db, value)
}

func (r *refreshTokens) RevokeTx(ctx context.Context, tx bun.IDB, value string) (bool, error) {
	res, err := tx.NewUpdate().Model((*RefreshToken)(nil)).
		Set("revoked = TRUE").
		Where("?TableAlias.token_value = ?", value).
		Where("?TableAlias.revoked = FALSE").
		Exec(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read revoke result")
	}

	return n > 0, nil
}

func (r *refreshTokens) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, cutoff time.Time) (int64, error) {
	return r.RevokeAllForAccountTx(ctx, r.db, accountID, cutoff)
}

func (r *refreshTokens) RevokeAllForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, cutoff time.Time) (int64, error) {
	res, err := tx.NewUpdate().Model((*RefreshToken)(nil)).
		Set("revoked = TRUE").
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.revoked = FALSE").
		Where("?TableAlias.created_at <= ?", cutoff).
		Exec(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to bulk revoke refresh tokens").
			WithMetadata(map[string]any{
				"account_id": accountID.String(),
			})
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read bulk revoke result")
	}

	return n, nil
}

func (r *refreshTokens) CountActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (int, error) {
	return r.db.NewSelect().Model((*RefreshToken)(nil)).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.revoked = FALSE").
		Where("?TableAlias.expires_at > ?", now).
		Count(ctx)
}

func (r *refreshTokens) ListActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]*RefreshToken, error) {
	var records []*RefreshToken
	err := r.db.NewSelect().Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.revoked = FALSE").
		Where("?TableAlias.expires_at > ?", now).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list refresh tokens")
	}

	return records, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "23505")
}
