package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockItem is one product a user currently holds. Quantity is kept in the
// canonical unit with three decimals; rows that reach zero are deleted.
type StockItem struct {
	ID            string              `json:"id" gorm:"primaryKey;size:36"`
	UserID        string              `json:"user_id" gorm:"size:64;not null;index"`
	Name          string              `json:"name" gorm:"size:200;not null"`
	Category      *string             `json:"category" gorm:"size:64"`
	Quantity      decimal.Decimal     `json:"quantity" gorm:"type:numeric(14,3);not null"`
	Unit          string              `json:"unit" gorm:"size:8;not null"`
	LastUnitPrice decimal.NullDecimal `json:"last_unit_price" gorm:"type:numeric(12,2)"`
	Version       int                 `json:"-" gorm:"not null;default:0"` // optimistic lock
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// BeforeCreate assigns an ID and stores the name in the ledger's upper-case form
func (s *StockItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Name = strings.ToUpper(strings.TrimSpace(s.Name))
	s.Unit = strings.ToUpper(strings.TrimSpace(s.Unit))
	return nil
}

// CategoryLabel returns the stored category or an empty string
func (s *StockItem) CategoryLabel() string {
	if s.Category == nil {
		return ""
	}
	return *s.Category
}

// HasPrice reports whether a non-zero unit price is known
func (s *StockItem) HasPrice() bool {
	return s.LastUnitPrice.Valid && !s.LastUnitPrice.Decimal.IsZero()
}
