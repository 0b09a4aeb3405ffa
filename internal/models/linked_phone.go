package models

import "time"

// LinkedPhone ties a WhatsApp number to the user whose stock it manages
type LinkedPhone struct {
	Phone     string    `json:"phone" gorm:"primaryKey;size:32"`
	UserID    string    `json:"user_id" gorm:"size:64;not null;index"`
	CreatedAt time.Time `json:"created_at"`
}
