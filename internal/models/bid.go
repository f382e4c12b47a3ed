package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid — запись в журнале ставок. Журнал только дополняется: ставки никогда
// не изменяются и не удаляются, суммы по одному аукциону строго растут.
type Bid struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AuctionID uuid.UUID `db:"auction_id" json:"auction_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Amount    float64   `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BidderSummary — сводка по одному участнику аукциона.
type BidderSummary struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	TotalBids int       `db:"total_bids" json:"total_bids"`
	MaxAmount float64   `db:"max_amount" json:"max_amount"`
	LastBidAt time.Time `db:"last_bid_at" json:"last_bid_at"`
}
