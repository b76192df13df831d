package app_test

import (
	"context"
	"strings"
	"testing"

	"cybercalc/internal/domain"
	"cybercalc/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesFreshUserAndSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.Equal(t, domain.User{ID: 1, Username: "alice", Points: 0, Lives: domain.MaxLives}, user)

	current, err := env.auth.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, user, current)

	ref, ok, err := env.store.Credential(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, "secret1", string(ref))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	_, err = env.auth.Register(ctx, "alice", "other-pass")
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)

	users, err := env.store.Users.All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestRegisterValidatesInput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.auth.Register(ctx, "al", "secret1")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Contains(t, err.Error(), "username must be at least 3 characters")

	_, err = env.auth.Register(ctx, "alice", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Contains(t, err.Error(), "password is required")
}

func TestLoginErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	env.auth.Logout(ctx)

	_, err = env.auth.Login(ctx, "bob", "secret1")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = env.auth.Login(ctx, "alice", "wrong-pass")
	require.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = env.auth.CurrentUser(ctx)
	require.ErrorIs(t, err, domain.ErrNotLoggedIn)

	user, err := env.auth.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	env.auth.Logout(ctx)
	env.auth.Logout(ctx)

	_, err = env.auth.CurrentUser(ctx)
	require.ErrorIs(t, err, domain.ErrNotLoggedIn)
	require.NotContains(t, env.backend.Keys(testNamespace), testNamespace+"current_user_id")
}

func TestScopedSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first := env.auth.ForScope("conn-1")
	second := env.auth.ForScope("conn-2")

	_, err := first.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	_, err = second.Register(ctx, "bob", "secret2")
	require.NoError(t, err)

	a, err := first.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", a.Username)
	b, err := second.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "bob", b.Username)

	_, err = env.auth.CurrentUser(ctx)
	require.ErrorIs(t, err, domain.ErrNotLoggedIn)
}

func TestDanglingSessionIsCleared(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.store.SetSession(ctx, "", 99))

	_, err := env.auth.CurrentUser(ctx)
	require.ErrorIs(t, err, domain.ErrNotLoggedIn)

	_, ok, err := env.store.SessionUserID(ctx, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdatePointsIsVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = env.auth.UpdatePoints(ctx, user.ID, 50)
	require.NoError(t, err)

	current, err := env.auth.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, 50, current.Points)
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = env.auth.UpdatePoints(ctx, user.ID, -1)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = env.auth.UpdateLives(ctx, user.ID, domain.MaxLives+1)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = env.auth.UpdatePoints(ctx, 404, 10)
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	updated, err := env.auth.UpdateLives(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 0, updated.Lives)
}

func TestAdjustLivesClamps(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	up, err := env.auth.AdjustLives(ctx, user.ID, 5)
	require.NoError(t, err)
	require.Equal(t, domain.MaxLives, up.Lives)

	down, err := env.auth.AdjustLives(ctx, user.ID, -10)
	require.NoError(t, err)
	require.Equal(t, 0, down.Lives)
}

func TestRegisterRejectsPasswordsOverBcryptLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// 40 runes but 80 bytes.
	_, err := env.auth.Register(ctx, "alice", strings.Repeat("é", 40))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Contains(t, err.Error(), "at most 72 bytes")

	users, err := env.store.Users.All(ctx)
	require.NoError(t, err)
	require.Empty(t, users)

	_, err = env.auth.Register(ctx, "alice", strings.Repeat("x", 72))
	require.NoError(t, err)
}

func TestRegisterRollsBackWhenCredentialWriteFails(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewBackend()
	backend := &faultyBackend{Backend: mem}
	env := newTestEnvOver(t, mem, backend)

	backend.failWrites("credential_")
	_, err := env.auth.Register(ctx, "alice", "secret1")
	require.ErrorIs(t, err, errBackendDown)

	users, err := env.store.Users.All(ctx)
	require.NoError(t, err)
	require.Empty(t, users)

	backend.failWrites("")
	user, err := env.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	env.auth.Logout(ctx)
	_, err = env.auth.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
}

func TestRegisterRollsBackWhenSessionWriteFails(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewBackend()
	backend := &faultyBackend{Backend: mem}
	env := newTestEnvOver(t, mem, backend)

	backend.failWrites("current_user_id")
	_, err := env.auth.Register(ctx, "alice", "secret1")
	require.ErrorIs(t, err, errBackendDown)

	users, err := env.store.Users.All(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
	require.Empty(t, mem.Keys(testNamespace+"credential_"))
}
