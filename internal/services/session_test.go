package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/estoque-backend/internal/models"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

func newTestSessionManager(now *time.Time) *SessionManager {
	sm := NewSessionManager(storage.NewMemoryStore(), time.Hour, nil)
	sm.now = func() time.Time { return *now }
	return sm
}

func TestSessionManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sm := newTestSessionManager(&now)

	got, err := sm.GetActive(ctx, testUser, phoneA)
	require.NoError(t, err)
	assert.Nil(t, got)

	ctxValues := map[string]string{models.ContextQuantity: "2"}
	session, err := sm.Start(ctx, testUser, phoneA, models.SessionStateAwaitingPrice, "item-1", ctxValues)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), session.ExpiresAt)

	ctxValues[models.ContextQuantity] = "changed"
	got, err = sm.GetActive(ctx, testUser, phoneA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.Context[models.ContextQuantity], "start copies the caller's map")

	require.NoError(t, sm.Advance(ctx, got, models.SessionStateAwaitingCategory, map[string]string{models.ContextPrice: "7.5"}))
	got, err = sm.GetActive(ctx, testUser, phoneA)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateAwaitingCategory, got.State)
	assert.Equal(t, "2", got.Context[models.ContextQuantity])
	assert.Equal(t, "7.5", got.Context[models.ContextPrice])
	assert.Equal(t, session.ExpiresAt, got.ExpiresAt, "advancing keeps the expiry")

	require.NoError(t, sm.End(ctx, got.ID))
	got, err = sm.GetActive(ctx, testUser, phoneA)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionManager_AtMostOnePerPair(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sm := newTestSessionManager(&now)

	for i := 0; i < 3; i++ {
		_, err := sm.Start(ctx, testUser, phoneA, models.SessionStateAwaitingPrice, "item", nil)
		require.NoError(t, err)
		now = now.Add(time.Minute)
	}
	_, err := sm.Start(ctx, testUser, phoneB, models.SessionStateAwaitingPrice, "item", nil)
	require.NoError(t, err)

	sessions, err := sm.ActiveForUser(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestSessionManager_ExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sm := newTestSessionManager(&now)

	_, err := sm.Start(ctx, testUser, phoneA, models.SessionStateAwaitingPrice, "item", nil)
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	got, err := sm.GetActive(ctx, testUser, phoneA)
	require.NoError(t, err)
	assert.NotNil(t, got)

	now = now.Add(time.Minute)
	got, err = sm.GetActive(ctx, testUser, phoneA)
	require.NoError(t, err)
	assert.Nil(t, got, "a session is gone at its expiry instant")

	n, err := sm.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSessionManager_DefaultTTL(t *testing.T) {
	sm := NewSessionManager(storage.NewMemoryStore(), 0, nil)
	assert.Equal(t, DefaultSessionTTL, sm.sessionTTL)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder of the same key did not wait")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-released
	unlockB()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

func TestKeyedMutex_LockAllOrdersKeys(t *testing.T) {
	k := newKeyedMutex()
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func(i int) {
			var unlock func()
			if i%2 == 0 {
				unlock = k.LockAll("a", "b", "a")
			} else {
				unlock = k.LockAll("b", "a")
			}
			unlock()
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 50; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("opposite lock orders deadlocked")
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
