package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ContactMessage struct {
	bun.BaseModel `bun:"table:contact_messages"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     string    `bun:"phone,notnull" json:"phone"`
	Email     string    `bun:"email,notnull" json:"email"`
	Message   string    `bun:"message,notnull" json:"message"`
	IsRead    bool      `bun:"is_read" json:"isRead"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type ContactRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Message string `json:"message"`
}
