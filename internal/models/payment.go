package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment — платёж через платёжный шлюз: залог продавца, залог участника
// либо финальная оплата покупки. На пару (пользователь, аукцион, тип)
// одновременно существует не больше одного незавершённого платежа.
type Payment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	AuctionID       uuid.UUID `db:"auction_id" json:"auction_id"`
	Type            string    `db:"type" json:"type"`
	Status          string    `db:"status" json:"status"`
	PaymentIntentID string    `db:"payment_intent_id" json:"payment_intent_id"`
	Amount          float64   `db:"amount" json:"amount"`
	// BidAmount заполняется только для залога участника: ставка, которая
	// будет записана в журнал после подтверждения залога шлюзом.
	BidAmount *float64  `db:"bid_amount" json:"bid_amount,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsNonTerminal сообщает, ожидает ли платёж решения шлюза.
func (p *Payment) IsNonTerminal() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusHold
}

// PaymentIntentResult — клиентский дескриптор платежа, возвращаемый фронту.
type PaymentIntentResult struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}
