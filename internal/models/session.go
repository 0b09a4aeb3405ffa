package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session states of the product registration dialogue
const (
	SessionStateAwaitingPrice    = "awaiting_price"
	SessionStateAwaitingCategory = "awaiting_category"
)

// Keys used in ChatSession.Context
const (
	ContextQuantity = "quantity"
	ContextUnit     = "unit"
	ContextProduct  = "product"
	ContextPrice    = "price"
)

// ChatSession stores a pending multi-turn dialogue for one (user, sender) pair.
// It is resumed by the next message from the same sender until ExpiresAt.
type ChatSession struct {
	ID        string            `json:"id" gorm:"primaryKey;size:36"`
	UserID    string            `json:"user_id" gorm:"size:64;not null;index:idx_sessions_owner,priority:1"`
	Sender    string            `json:"sender" gorm:"size:32;not null;index:idx_sessions_owner,priority:2"`
	State     string            `json:"state" gorm:"size:32;not null"`
	ItemID    string            `json:"item_id" gorm:"size:36"`
	Context   map[string]string `json:"context" gorm:"serializer:json"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at" gorm:"index;not null"`
}

// TableName keeps the conceptual table name
func (ChatSession) TableName() string { return "sessions" }

// BeforeCreate assigns an ID when the caller did not
func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Context == nil {
		s.Context = map[string]string{}
	}
	return nil
}

// ActiveAt reports whether the session is still valid at the given instant
func (s *ChatSession) ActiveAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
