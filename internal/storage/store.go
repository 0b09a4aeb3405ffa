package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("storage: not found")
	// ErrStaleItem is returned when a stock row changed since it was read
	ErrStaleItem = errors.New("storage: stock item modified concurrently")
	// ErrAlreadyProcessed is returned when a message was already marked processed
	ErrAlreadyProcessed = errors.New("storage: message already processed")
)

// Store defines the interface for storage operations
type Store interface {
	// Message operations
	CreateMessage(ctx context.Context, msg *models.InboundMessage) (bool, error)
	GetMessage(ctx context.Context, id string) (*models.InboundMessage, error)
	MarkMessageProcessed(ctx context.Context, id, response string, at time.Time) error
	RecordDelivery(ctx context.Context, id string, delivered bool, at time.Time) error
	GetUnprocessedMessages(ctx context.Context, receivedBefore time.Time, limit int) ([]*models.InboundMessage, error)

	// Session operations
	GetActiveSession(ctx context.Context, userID, sender string, now time.Time) (*models.ChatSession, error)
	GetActiveSessionsForUser(ctx context.Context, userID string, now time.Time) ([]*models.ChatSession, error)
	ReplaceSession(ctx context.Context, session *models.ChatSession, now time.Time) error
	UpdateSession(ctx context.Context, session *models.ChatSession) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Stock operations
	CreateStockItem(ctx context.Context, item *models.StockItem) error
	GetStockItem(ctx context.Context, userID, id string) (*models.StockItem, error)
	ListStockItems(ctx context.Context, userID string) ([]*models.StockItem, error)
	UpdateStockQuantity(ctx context.Context, item *models.StockItem, quantity decimal.Decimal) error
	DeleteStockItem(ctx context.Context, item *models.StockItem) error
	SetStockPrice(ctx context.Context, itemID string, price decimal.Decimal) error
	SetStockCategory(ctx context.Context, itemID, category string) error

	// Phone links
	LinkPhone(ctx context.Context, phone, userID string) error
	GetUserByPhone(ctx context.Context, phone string) (string, error)

	// Transaction runs fn against a store whose writes commit together or not at all
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
