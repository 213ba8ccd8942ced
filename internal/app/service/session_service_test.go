package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_LoginPersistsAndRestores(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.signUp(t, "shopper@example.com")
	require.NoError(t, env.session.Logout(ctx))

	session, err := env.session.Login(ctx, "  Shopper@Example.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "shopper@example.com", session.Email)
	assert.Equal(t, "Test Shopper", session.DisplayName)
	assert.Equal(t, model.RoleUser, session.Role)
	assert.NotEmpty(t, env.session.BearerToken())

	// a second process restoring from the same store
	restarted := NewSessionService(env.gw.Auth, env.store, nil)
	assert.False(t, restarted.IsReady())
	restored, err := restarted.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, session.UserID, restored.UserID)
	assert.True(t, restarted.IsReady())
	assert.Equal(t, env.session.BearerToken(), restarted.BearerToken())
}

func TestSessionService_RestoreWithoutStoredSession(t *testing.T) {
	env := setupServices(t)

	restored, err := env.session.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, restored)
	assert.True(t, env.session.IsReady())

	select {
	case <-env.session.Ready():
	default:
		t.Fatal("ready channel should be closed")
	}
}

func TestSessionService_RestoreDiscardsExpiredToken(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	token, err := util.GenerateAccessToken("user-1", "old@example.com", "USER", "test-secret", -time.Minute)
	require.NoError(t, err)
	require.NoError(t, env.store.Save(ctx, &model.Session{UserID: "user-1", Email: "old@example.com", BearerToken: token}))

	restored, err := env.session.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)
	assert.Nil(t, env.session.Current())

	stored, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSessionService_LoginFailures(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.signUp(t, "shopper@example.com")
	require.NoError(t, env.session.Logout(ctx))

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.session.Login(ctx, "", "")
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.session.Login(ctx, "shopper@example.com", "wrong-password")
		require.Error(t, err)
		e, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindAuth, e.Kind)
		assert.Equal(t, apperrors.AuthInvalidCredentials, e.Code)
		assert.Nil(t, env.session.Current())
	})
}

func TestSessionService_LogoutClearsSessionAndCart(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	product := env.seedProduct(t, "tee", "10.00", "TEE-M")
	user := env.signUp(t, "shopper@example.com")

	_, err := env.cart.AddItem(ctx, product.ID, "TEE-M", 2)
	require.NoError(t, err)
	require.NotNil(t, env.cart.Current())

	require.NoError(t, env.session.Logout(ctx))

	assert.Nil(t, env.session.Current())
	assert.Empty(t, env.session.BearerToken())
	assert.Nil(t, env.cart.Current())

	cart, err := env.cart.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, cart)

	restarted := NewSessionService(env.gw.Auth, env.store, nil)
	restored, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)

	assert.Equal(t, 1, env.publisher.count(EventSessionEnded))
	assert.Equal(t, user.UserID, env.publisher.events[len(env.publisher.events)-1].userID)
}

func TestSessionService_HandleAuthFailure(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.signUp(t, "shopper@example.com")

	other := apperrors.NewTransientError("", nil)
	assert.Equal(t, error(other), env.session.HandleAuthFailure(ctx, other))
	assert.NotNil(t, env.session.Current())

	expired := apperrors.NewExpiredSessionError(nil)
	assert.Equal(t, error(expired), env.session.HandleAuthFailure(ctx, expired))
	assert.Nil(t, env.session.Current())
}

func TestSessionService_ResetHooksRunOnLogout(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.signUp(t, "shopper@example.com")

	calls := 0
	env.session.OnLogout(func(context.Context) { calls++ })
	require.NoError(t, env.session.Logout(ctx))
	assert.Equal(t, 1, calls)

	// nothing to tear down
	require.NoError(t, env.session.Logout(ctx))
	assert.Equal(t, 1, calls)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	session := &model.Session{UserID: "u1", Email: "a@example.com", Role: model.RoleAdmin, BearerToken: "token"}
	require.NoError(t, store.Save(ctx, session))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, loaded)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
