package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// AccountStateMachine centralizes the lifecycle transition graph:
// pending_verification moves to active through activation, and both
// pending_verification and active can be disabled. Disabled is terminal.
type AccountStateMachine interface {
	Transition(ctx context.Context, tx bun.IDB, account *Account, target AccountStatus) (*Account, error)
	CanTransition(from, to AccountStatus) bool
	CurrentStatus(account *Account) AccountStatus
}

type accountStateMachine struct {
	accounts    Accounts
	transitions map[AccountStatus]map[AccountStatus]struct{}
	logger      Logger
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accountStateMachine)

// WithStateMachineLogger overrides the logger used for transition logging.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *accountStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewAccountStateMachine returns the default implementation backed by the
// provided repository.
func NewAccountStateMachine(accounts Accounts, opts ...StateMachineOption) AccountStateMachine {
	sm := &accountStateMachine{
		accounts: accounts,
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			AccountStatusPending: {
				AccountStatusActive:   {},
				AccountStatusDisabled: {},
			},
			AccountStatusActive: {
				AccountStatusDisabled: {},
			},
		},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

func (sm *accountStateMachine) Transition(ctx context.Context, tx bun.IDB, account *Account, target AccountStatus) (*Account, error) {
	if account == nil {
		return nil, goerrors.New("account must not be nil", goerrors.CategoryBadInput)
	}

	from := sm.CurrentStatus(account)
	if from == target {
		return account, nil
	}

	if !sm.CanTransition(from, target) {
		return nil, ErrInvalidStatus.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	updated, err := sm.accounts.UpdateStatusTx(ctx, tx, account.ID, target)
	if err != nil {
		return nil, err
	}

	account.Status = target
	if updated != nil && updated.UpdatedAt != nil {
		account.UpdatedAt = updated.UpdatedAt
	}

	sm.logger.Info("account status changed", "account_id", account.ID.String(), "from", from, "to", target)

	return account, nil
}

func (sm *accountStateMachine) CanTransition(from, to AccountStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *accountStateMachine) CurrentStatus(account *Account) AccountStatus {
	if account == nil {
		return ""
	}
	account.EnsureStatus()
	return account.Status
}
