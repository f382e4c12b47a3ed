package models

import (
	"time"

	"github.com/google/uuid"
)

// User — участник площадки: продавец и/или покупатель.
type User struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	Username         string    `db:"username" json:"username"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Role             string    `db:"role" json:"role"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Location — адрес пользователя. Валюта берётся из страны адреса и
// используется при создании платёжных интентов.
type Location struct {
	ID       uuid.UUID `db:"id" json:"id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	Address  string    `db:"address" json:"address"`
	Country  string    `db:"country" json:"country"`
	Currency string    `db:"currency" json:"currency"`
	IsMain   bool      `db:"is_main" json:"is_main"`
}
