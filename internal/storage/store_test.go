package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return NewDatabaseStore(db)
}

func newMemStore(t *testing.T) Store {
	t.Helper()
	return NewMemoryStore()
}

// forEachStore runs the same behaviour checks against both implementations
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, build := range map[string]func(*testing.T) Store{
		"memory": newMemStore,
		"sqlite": newSQLiteStore,
	} {
		t.Run(name, func(t *testing.T) {
			fn(t, build(t))
		})
	}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestMessages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		msg := &models.InboundMessage{ID: "SM1", UserID: "u1", Sender: "5511999990000", Content: "oi", ReceivedAt: t0}

		created, err := s.CreateMessage(ctx, msg)
		require.NoError(t, err)
		assert.True(t, created)

		dup := *msg
		dup.Content = "outra coisa"
		created, err = s.CreateMessage(ctx, &dup)
		require.NoError(t, err)
		assert.False(t, created, "duplicate ids are ignored")

		got, err := s.GetMessage(ctx, "SM1")
		require.NoError(t, err)
		assert.Equal(t, "oi", got.Content)
		assert.False(t, got.Processed)

		require.NoError(t, s.MarkMessageProcessed(ctx, "SM1", "resposta", t0.Add(time.Second)))
		assert.ErrorIs(t, s.MarkMessageProcessed(ctx, "SM1", "de novo", t0.Add(2*time.Second)), ErrAlreadyProcessed)

		got, err = s.GetMessage(ctx, "SM1")
		require.NoError(t, err)
		assert.True(t, got.Processed)
		assert.Equal(t, "resposta", got.ResponseText)

		require.NoError(t, s.RecordDelivery(ctx, "SM1", true, t0.Add(3*time.Second)))
		got, err = s.GetMessage(ctx, "SM1")
		require.NoError(t, err)
		assert.True(t, got.Delivered)
		require.NotNil(t, got.DeliveredAt)

		_, err = s.GetMessage(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGetUnprocessedMessages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, id := range []string{"a", "b", "c"} {
			_, err := s.CreateMessage(ctx, &models.InboundMessage{
				ID: id, UserID: "u1", Sender: "5511999990000", Content: "x",
				ReceivedAt: t0.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}
		require.NoError(t, s.MarkMessageProcessed(ctx, "a", "ok", t0))

		msgs, err := s.GetUnprocessedMessages(ctx, t0.Add(time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "b", msgs[0].ID)

		msgs, err = s.GetUnprocessedMessages(ctx, t0.Add(time.Hour), 1)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "b", msgs[0].ID)
	})
}

func TestReplaceSession_KeepsOnePerPair(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := &models.ChatSession{
			UserID: "u1", Sender: "5511999990000", State: models.SessionStateAwaitingPrice,
			CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
		}
		require.NoError(t, s.ReplaceSession(ctx, first, t0))

		other := &models.ChatSession{
			UserID: "u1", Sender: "5511888880000", State: models.SessionStateAwaitingPrice,
			CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
		}
		require.NoError(t, s.ReplaceSession(ctx, other, t0))

		second := &models.ChatSession{
			UserID: "u1", Sender: "5511999990000", State: models.SessionStateAwaitingCategory,
			Context:   map[string]string{models.ContextProduct: "feijao"},
			CreatedAt: t0.Add(time.Minute), ExpiresAt: t0.Add(time.Hour + time.Minute),
		}
		require.NoError(t, s.ReplaceSession(ctx, second, t0.Add(time.Minute)))

		sessions, err := s.GetActiveSessionsForUser(ctx, "u1", t0.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Len(t, sessions, 2)

		got, err := s.GetActiveSession(ctx, "u1", "5511999990000", t0.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
		assert.Equal(t, "feijao", got.Context[models.ContextProduct])
	})
}

func TestSessionExpiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		session := &models.ChatSession{
			UserID: "u1", Sender: "5511999990000", State: models.SessionStateAwaitingPrice,
			CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
		}
		require.NoError(t, s.ReplaceSession(ctx, session, t0))

		_, err := s.GetActiveSession(ctx, "u1", "5511999990000", t0.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNotFound, "expiry is exclusive")

		n, err := s.DeleteExpiredSessions(ctx, t0.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.DeleteExpiredSessions(ctx, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestUpdateSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		session := &models.ChatSession{
			UserID: "u1", Sender: "5511999990000", State: models.SessionStateAwaitingPrice,
			ItemID: "item-1", Context: map[string]string{models.ContextQuantity: "2"},
			CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
		}
		require.NoError(t, s.ReplaceSession(ctx, session, t0))

		session.State = models.SessionStateAwaitingCategory
		session.Context[models.ContextPrice] = "7.5"
		require.NoError(t, s.UpdateSession(ctx, session))

		got, err := s.GetActiveSession(ctx, "u1", "5511999990000", t0)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStateAwaitingCategory, got.State)
		assert.Equal(t, "7.5", got.Context[models.ContextPrice])
		assert.Equal(t, "2", got.Context[models.ContextQuantity])

		require.NoError(t, s.DeleteSession(ctx, session.ID))
		_, err = s.GetActiveSession(ctx, "u1", "5511999990000", t0)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdateSession(ctx, session), ErrNotFound)
	})
}

func TestStockItems(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		item := &models.StockItem{UserID: "u1", Name: "arroz branco", Quantity: dec("5"), Unit: "kg"}
		require.NoError(t, s.CreateStockItem(ctx, item))
		require.NoError(t, s.CreateStockItem(ctx, &models.StockItem{UserID: "u1", Name: "Feijao", Quantity: dec("1"), Unit: "KG"}))
		require.NoError(t, s.CreateStockItem(ctx, &models.StockItem{UserID: "u2", Name: "Cafe", Quantity: dec("1"), Unit: "KG"}))

		items, err := s.ListStockItems(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "ARROZ BRANCO", items[0].Name)
		assert.Equal(t, "KG", items[0].Unit)
		assert.Equal(t, "FEIJAO", items[1].Name)

		_, err = s.GetStockItem(ctx, "u2", item.ID)
		assert.ErrorIs(t, err, ErrNotFound, "items are scoped to their owner")

		require.NoError(t, s.SetStockPrice(ctx, item.ID, dec("7.50")))
		require.NoError(t, s.SetStockCategory(ctx, item.ID, "Mercearia"))

		got, err := s.GetStockItem(ctx, "u1", item.ID)
		require.NoError(t, err)
		assert.True(t, got.HasPrice())
		assert.True(t, got.LastUnitPrice.Decimal.Equal(dec("7.5")))
		assert.Equal(t, "Mercearia", got.CategoryLabel())
		assert.True(t, got.Quantity.Equal(dec("5")))
	})
}

func TestUpdateStockQuantity_CompareAndSwap(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateStockItem(ctx, &models.StockItem{UserID: "u1", Name: "arroz", Quantity: dec("5"), Unit: "KG"}))
		items, err := s.ListStockItems(ctx, "u1")
		require.NoError(t, err)

		a := items[0]
		b, err := s.GetStockItem(ctx, "u1", a.ID)
		require.NoError(t, err)

		require.NoError(t, s.UpdateStockQuantity(ctx, a, dec("4")))
		assert.True(t, a.Quantity.Equal(dec("4")))

		err = s.UpdateStockQuantity(ctx, b, dec("3"))
		assert.ErrorIs(t, err, ErrStaleItem, "second writer read an old version")

		assert.ErrorIs(t, s.DeleteStockItem(ctx, b), ErrStaleItem)
		require.NoError(t, s.DeleteStockItem(ctx, a))

		_, err = s.GetStockItem(ctx, "u1", a.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLinkPhone(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.GetUserByPhone(ctx, "5511999990000")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.LinkPhone(ctx, "5511999990000", "u1"))
		require.NoError(t, s.LinkPhone(ctx, "5511999990000", "u2"))

		userID, err := s.GetUserByPhone(ctx, "5511999990000")
		require.NoError(t, err)
		assert.Equal(t, "u2", userID)
	})
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.CreateMessage(ctx, &models.InboundMessage{ID: "SM1", UserID: "u1", Sender: "5511999990000", ReceivedAt: t0})
		require.NoError(t, err)

		err = s.Transaction(ctx, func(tx Store) error {
			if err := tx.CreateStockItem(ctx, &models.StockItem{UserID: "u1", Name: "arroz", Quantity: dec("1"), Unit: "KG"}); err != nil {
				return err
			}
			if err := tx.MarkMessageProcessed(ctx, "SM1", "ok", t0); err != nil {
				return err
			}
			return tx.MarkMessageProcessed(ctx, "SM1", "ok", t0)
		})
		assert.ErrorIs(t, err, ErrAlreadyProcessed)

		items, err := s.ListStockItems(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, items)

		msg, err := s.GetMessage(ctx, "SM1")
		require.NoError(t, err)
		assert.False(t, msg.Processed)
	})
}

func TestMemoryTransaction_RollbackKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rice := &models.StockItem{UserID: "u1", Name: "arroz", Quantity: dec("5"), Unit: "KG"}
	require.NoError(t, s.CreateStockItem(ctx, rice))
	_, err := s.CreateMessage(ctx, &models.InboundMessage{ID: "SM1", UserID: "u1", Sender: "5511999990000", ReceivedAt: t0})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = s.Transaction(ctx, func(tx Store) error {
		if err := tx.UpdateStockQuantity(ctx, rice, dec("4")); err != nil {
			return err
		}
		if err := tx.ReplaceSession(ctx, &models.ChatSession{UserID: "u1", Sender: "5511999990000", State: models.SessionStateAwaitingPrice, ExpiresAt: t0.Add(time.Hour)}, t0); err != nil {
			return err
		}
		if err := tx.MarkMessageProcessed(ctx, "SM1", "ok", t0); err != nil {
			return err
		}

		// another request stores its message while this one is still open
		done := make(chan error, 1)
		go func() {
			_, err := s.CreateMessage(ctx, &models.InboundMessage{ID: "webhook-1", UserID: "u2", Sender: "5511999990001", ReceivedAt: t0})
			if err == nil {
				err = s.LinkPhone(ctx, "5511999990001", "u2")
			}
			done <- err
		}()
		require.NoError(t, <-done)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	msg, err := s.GetMessage(ctx, "webhook-1")
	require.NoError(t, err, "a write made outside the transaction survives its rollback")
	assert.False(t, msg.Processed)
	userID, err := s.GetUserByPhone(ctx, "5511999990001")
	require.NoError(t, err)
	assert.Equal(t, "u2", userID)

	item, err := s.GetStockItem(ctx, "u1", rice.ID)
	require.NoError(t, err)
	assert.True(t, item.Quantity.Equal(dec("5")))

	processed, err := s.GetMessage(ctx, "SM1")
	require.NoError(t, err)
	assert.False(t, processed.Processed)

	_, err = s.GetActiveSession(ctx, "u1", "5511999990000", t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTransaction_RollbackRestoresReplacedSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := &models.ChatSession{UserID: "u1", Sender: "5511999990000", State: models.SessionStateAwaitingPrice, ItemID: "item-1", ExpiresAt: t0.Add(time.Hour)}
	require.NoError(t, s.ReplaceSession(ctx, first, t0))

	err := s.Transaction(ctx, func(tx Store) error {
		if err := tx.ReplaceSession(ctx, &models.ChatSession{UserID: "u1", Sender: "5511999990000", State: models.SessionStateAwaitingPrice, ItemID: "item-2", ExpiresAt: t0.Add(time.Hour)}, t0); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := s.GetActiveSession(ctx, "u1", "5511999990000", t0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "item-1", got.ItemID)
}
