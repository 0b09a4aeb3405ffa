package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

// DatabaseStore implements Store on top of gorm (postgres in production, sqlite locally)
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// AutoMigrate creates or updates the engine's tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.InboundMessage{},
		&models.ChatSession{},
		&models.StockItem{},
		&models.LinkedPhone{},
	)
}

func (s *DatabaseStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Message operations

func (s *DatabaseStore) CreateMessage(ctx context.Context, msg *models.InboundMessage) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(msg)
	if res.Error != nil {
		return false, fmt.Errorf("create message %s: %w", msg.ID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *DatabaseStore) GetMessage(ctx context.Context, id string) (*models.InboundMessage, error) {
	var msg models.InboundMessage
	if err := s.conn(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, notFound(err))
	}
	return &msg, nil
}

// MarkMessageProcessed flips the processed flag only if it is still false
func (s *DatabaseStore) MarkMessageProcessed(ctx context.Context, id, response string, at time.Time) error {
	res := s.conn(ctx).Model(&models.InboundMessage{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{
			"processed":     true,
			"processed_at":  at,
			"response_text": response,
		})
	if res.Error != nil {
		return fmt.Errorf("mark message %s processed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

func (s *DatabaseStore) RecordDelivery(ctx context.Context, id string, delivered bool, at time.Time) error {
	updates := map[string]any{"delivered": delivered}
	if delivered {
		updates["delivered_at"] = at
	}
	err := s.conn(ctx).Model(&models.InboundMessage{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("record delivery %s: %w", id, err)
	}
	return nil
}

func (s *DatabaseStore) GetUnprocessedMessages(ctx context.Context, receivedBefore time.Time, limit int) ([]*models.InboundMessage, error) {
	var msgs []*models.InboundMessage
	err := s.conn(ctx).
		Where("processed = ?", false).
		Where("received_at <= ?", receivedBefore).
		Order("received_at asc, id asc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("get unprocessed messages: %w", err)
	}
	return msgs, nil
}

// Session operations

// GetActiveSession returns the most recently created unexpired session for the pair
func (s *DatabaseStore) GetActiveSession(ctx context.Context, userID, sender string, now time.Time) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.conn(ctx).
		Where("user_id = ? AND sender = ? AND expires_at > ?", userID, sender, now).
		Order("created_at desc").
		First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *DatabaseStore) GetActiveSessionsForUser(ctx context.Context, userID string, now time.Time) ([]*models.ChatSession, error) {
	var sessions []*models.ChatSession
	err := s.conn(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at desc").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("get sessions for user: %w", err)
	}
	return sessions, nil
}

// ReplaceSession removes every session of the pair, plus the user's expired
// ones, and inserts the new session in the same transaction.
func (s *DatabaseStore) ReplaceSession(ctx context.Context, session *models.ChatSession, now time.Time) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("user_id = ? AND (sender = ? OR expires_at <= ?)", session.UserID, session.Sender, now).
			Delete(&models.ChatSession{}).Error
		if err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
}

func (s *DatabaseStore) UpdateSession(ctx context.Context, session *models.ChatSession) error {
	// struct updates go through the json serializer of Context
	res := s.conn(ctx).Model(session).
		Select("state", "item_id", "context").
		Updates(session)
	if res.Error != nil {
		return fmt.Errorf("update session %s: %w", session.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.conn(ctx).Delete(&models.ChatSession{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *DatabaseStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.conn(ctx).Where("expires_at <= ?", now).Delete(&models.ChatSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Stock operations

func (s *DatabaseStore) CreateStockItem(ctx context.Context, item *models.StockItem) error {
	if err := s.conn(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create stock item: %w", err)
	}
	return nil
}

func (s *DatabaseStore) GetStockItem(ctx context.Context, userID, id string) (*models.StockItem, error) {
	var item models.StockItem
	if err := s.conn(ctx).First(&item, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *DatabaseStore) ListStockItems(ctx context.Context, userID string) ([]*models.StockItem, error) {
	var items []*models.StockItem
	if err := s.conn(ctx).Where("user_id = ?", userID).Order("name asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list stock items: %w", err)
	}
	return items, nil
}

// UpdateStockQuantity writes the new quantity only if the row still carries
// the version the caller read. On success item reflects the stored row.
func (s *DatabaseStore) UpdateStockQuantity(ctx context.Context, item *models.StockItem, quantity decimal.Decimal) error {
	res := s.conn(ctx).Model(&models.StockItem{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(map[string]any{
			"quantity": quantity,
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("update stock quantity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleItem
	}
	item.Quantity = quantity
	item.Version++
	return nil
}

func (s *DatabaseStore) DeleteStockItem(ctx context.Context, item *models.StockItem) error {
	res := s.conn(ctx).Where("id = ? AND version = ?", item.ID, item.Version).Delete(&models.StockItem{})
	if res.Error != nil {
		return fmt.Errorf("delete stock item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleItem
	}
	return nil
}

func (s *DatabaseStore) SetStockPrice(ctx context.Context, itemID string, price decimal.Decimal) error {
	return s.updateItem(ctx, itemID, "last_unit_price", decimal.NewNullDecimal(price))
}

func (s *DatabaseStore) SetStockCategory(ctx context.Context, itemID, category string) error {
	return s.updateItem(ctx, itemID, "category", category)
}

func (s *DatabaseStore) updateItem(ctx context.Context, itemID, column string, value any) error {
	res := s.conn(ctx).Model(&models.StockItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			column:    value,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("update stock %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Phone links

func (s *DatabaseStore) LinkPhone(ctx context.Context, phone, userID string) error {
	link := models.LinkedPhone{Phone: phone, UserID: userID}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id"}),
	}).Create(&link).Error
	if err != nil {
		return fmt.Errorf("link phone: %w", err)
	}
	return nil
}

func (s *DatabaseStore) GetUserByPhone(ctx context.Context, phone string) (string, error) {
	var link models.LinkedPhone
	if err := s.conn(ctx).First(&link, "phone = ?", phone).Error; err != nil {
		return "", notFound(err)
	}
	return link.UserID, nil
}

func (s *DatabaseStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DatabaseStore{db: tx})
	})
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
