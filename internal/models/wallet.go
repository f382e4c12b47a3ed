package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletTransaction — запись кошелька, сцепленная по балансу: поле Balance
// равно балансу предыдущей записи владельца плюс/минус Amount. Журнал только
// дополняется.
// Счёт платформы хранится с нулевым UserID и типом PLATFORM.
type WalletTransaction struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AccountType     string     `db:"account_type" json:"account_type"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	Status          string     `db:"status" json:"status"`
	TransactionType string     `db:"transaction_type" json:"transaction_type"`
	Amount          float64    `db:"amount" json:"amount"`
	Balance         float64    `db:"balance" json:"balance"`
	AuctionID       *uuid.UUID `db:"auction_id" json:"auction_id,omitempty"`
	Description     string     `db:"description" json:"description"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// SignedAmount возвращает сумму со знаком по направлению операции.
func (t *WalletTransaction) SignedAmount() float64 {
	if t.Status == WalletStatusWithdraw {
		return -t.Amount
	}
	return t.Amount
}

// WalletAccount — строка текущего баланса владельца. Служит точкой
// сериализации: перед дополнением журнала строка блокируется FOR UPDATE.
type WalletAccount struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AccountType string    `db:"account_type" json:"account_type"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Balance     float64   `db:"balance" json:"balance"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// WalletEntryInput — данные новой записи кошелька; баланс вычисляется
// в момент вставки под блокировкой счёта.
type WalletEntryInput struct {
	Status          string
	TransactionType string
	Amount          float64
	AuctionID       *uuid.UUID
	Description     string
}
