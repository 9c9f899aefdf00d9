package auth_test

import (
	"context"
	"testing"

	auth "github.com/unipath/go-auth"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineCanTransition(t *testing.T) {
	repo, _ := setupRepoManager(t)
	sm := auth.NewAccountStateMachine(repo.Accounts())

	assert.True(t, sm.CanTransition(auth.AccountStatusPending, auth.AccountStatusActive))
	assert.True(t, sm.CanTransition(auth.AccountStatusPending, auth.AccountStatusDisabled))
	assert.True(t, sm.CanTransition(auth.AccountStatusActive, auth.AccountStatusDisabled))

	assert.False(t, sm.CanTransition(auth.AccountStatusActive, auth.AccountStatusPending))
	assert.False(t, sm.CanTransition(auth.AccountStatusDisabled, auth.AccountStatusActive))
	assert.False(t, sm.CanTransition(auth.AccountStatusDisabled, auth.AccountStatusPending))
}

func TestStateMachineTransitionPersists(t *testing.T) {
	repo, db := setupRepoManager(t)
	sm := auth.NewAccountStateMachine(repo.Accounts())
	account := createTestAccount(t, repo, "ana", "ana@example.com")

	updated, err := sm.Transition(context.Background(), db, account, auth.AccountStatusActive)
	require.NoError(t, err)
	assert.Equal(t, auth.AccountStatusActive, updated.Status)

	reloaded, err := repo.Accounts().GetByID(context.Background(), account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, auth.AccountStatusActive, reloaded.Status)
}

func TestStateMachineRejectsInvalidTransition(t *testing.T) {
	repo, db := setupRepoManager(t)
	sm := auth.NewAccountStateMachine(repo.Accounts())
	account := createTestAccount(t, repo, "ana", "ana@example.com")

	_, err := sm.Transition(context.Background(), db, account, auth.AccountStatusActive)
	require.NoError(t, err)
	_, err = sm.Transition(context.Background(), db, account, auth.AccountStatusDisabled)
	require.NoError(t, err)

	// Disabled is terminal.
	_, err = sm.Transition(context.Background(), db, account, auth.AccountStatusActive)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, auth.TextCodeInvalidStatus, richErr.TextCode)
	assert.Equal(t, auth.AccountStatusDisabled, richErr.Metadata["from"])

	// The returned error owns its metadata; the shared value stays clean
	// for every other caller.
	assert.Nil(t, auth.ErrInvalidStatus.Metadata)
}

func TestStateMachineSameStatusIsNoop(t *testing.T) {
	repo, db := setupRepoManager(t)
	sm := auth.NewAccountStateMachine(repo.Accounts())
	account := createTestAccount(t, repo, "ana", "ana@example.com")

	updated, err := sm.Transition(context.Background(), db, account, auth.AccountStatusPending)
	require.NoError(t, err)
	assert.Equal(t, auth.AccountStatusPending, updated.Status)
}

func TestStateMachineNilAccount(t *testing.T) {
	repo, db := setupRepoManager(t)
	sm := auth.NewAccountStateMachine(repo.Accounts())

	_, err := sm.Transition(context.Background(), db, nil, auth.AccountStatusActive)
	assert.Error(t, err)
	assert.Equal(t, auth.AccountStatus(""), sm.CurrentStatus(nil))
}
