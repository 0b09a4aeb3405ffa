package models

import "time"

// InboundMessage is one text received from WhatsApp. The transport boundary
// creates it; the engine marks it processed exactly once and records the
// reply it produced.
type InboundMessage struct {
	ID           string     `json:"id" gorm:"primaryKey;size:64"` // provider message id
	UserID       string     `json:"user_id" gorm:"size:64;not null;index"`
	Sender       string     `json:"sender" gorm:"size:32;not null;index"`
	Content      string     `json:"content" gorm:"type:text"`
	ReceivedAt   time.Time  `json:"received_at" gorm:"not null;index"`
	Processed    bool       `json:"processed" gorm:"not null;default:false;index"`
	ProcessedAt  *time.Time `json:"processed_at"`
	ResponseText string     `json:"response_text" gorm:"type:text"`
	Delivered    bool       `json:"delivered" gorm:"not null;default:false"`
	DeliveredAt  *time.Time `json:"delivered_at"`
}

// TableName keeps the conceptual table name
func (InboundMessage) TableName() string { return "messages" }
