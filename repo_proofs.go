package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountProofs stores activation and password-reset proofs. Issue
// invalidates any outstanding proof of the same kind before inserting the
// fresh one; Consume is a single-use compare-and-set, so a proof can
// authorize at most one state transition even under concurrent presentation.
type AccountProofs interface {
	Issue(ctx context.Context, accountID uuid.UUID, kind ProofKind, ttl time.Duration) (*AccountProof, error)
	IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, kind ProofKind, ttl time.Duration) (*AccountProof, error)

	Consume(ctx context.Context, accountID uuid.UUID, kind ProofKind, secret string) error
	ConsumeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, kind ProofKind, secret string) error
}

type accountProofs struct {
	db  *bun.DB
	now func() time.Time
}

var _ AccountProofs = (*accountProofs)(nil)

type AccountProofsOption func(*accountProofs)

// WithProofsClock injects a custom clock (useful for tests).
func WithProofsClock(clock func() time.Time) AccountProofsOption {
	return func(p *accountProofs) {
		if clock != nil {
			p.now = clock
		}
	}
}

func NewAccountProofsRepository(db *bun.DB, opts ...AccountProofsOption) AccountProofs {
	repo := &accountProofs{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (p *accountProofs) Issue(ctx context.Context, accountID uuid.UUID, kind ProofKind, ttl time.Duration) (*AccountProof, error) {
	return p.IssueTx(ctx, p.db, accountID, kind, ttl)
}

func (p *accountProofs) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, kind ProofKind, ttl time.Duration) (*AccountProof, error) {
	now := p.now()

	// A new proof supersedes anything still outstanding for the same flow.
	_, err := tx.NewUpdate().Model((*AccountProof)(nil)).
		Set("consumed = TRUE").
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.consumed = FALSE").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate outstanding proofs")
	}

	record := &AccountProof{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Secret:    uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist proof").
			WithMetadata(map[string]any{
				"account_id": accountID.String(),
				"kind":       kind,
			})
	}

	return record, nil
}

func (p *accountProofs) Consume(ctx context.Context, accountID uuid.UUID, kind ProofKind, secret string) error {
	return p.ConsumeTx(ctx, p.db, accountID, kind, secret)
}

func (p *accountProofs) ConsumeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, kind ProofKind, secret string) error {
	if secret == "" {
		return ErrInvalidOrExpiredProof
	}

	res, err := tx.NewUpdate().Model((*AccountProof)(nil)).
		Set("consumed = TRUE").
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.secret = ?", secret).
		Where("?TableAlias.consumed = FALSE").
		Where("?TableAlias.expires_at > ?", p.now()).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume proof")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read proof consumption result")
	}

	// Absent, expired, and already consumed are deliberately one error.
	if n == 0 {
		return ErrInvalidOrExpiredProof
	}

	return nil
}
