package models

import (
	"time"

	"github.com/google/uuid"
)

// Auction описывает торги по одному товару.
//
// Длительность хранится как пара (duration_unit, duration_value) и
// разворачивается в интервал методом Length: дни и часы не дублируются
// в отдельных колонках.
type Auction struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	ProductID       uuid.UUID  `db:"product_id" json:"product_id"`
	Type            string     `db:"type" json:"type"`
	DurationUnit    string     `db:"duration_unit" json:"duration_unit"`
	DurationValue   int        `db:"duration_value" json:"duration_value"`
	StartBidAmount  float64    `db:"start_bid_amount" json:"start_bid_amount"`
	IsBuyNowAllowed bool       `db:"is_buy_now_allowed" json:"is_buy_now_allowed"`
	AcceptedAmount  *float64   `db:"accepted_amount" json:"accepted_amount,omitempty"`
	StartDate       *time.Time `db:"start_date" json:"start_date,omitempty"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	EndDate         *time.Time `db:"end_date" json:"end_date,omitempty"`
	Status          string     `db:"status" json:"status"`

	IsDeliveryAvailable   bool `db:"is_delivery_available" json:"is_delivery_available"`
	IsReturnable          bool `db:"is_returnable" json:"is_returnable"`
	HasWarranty           bool `db:"has_warranty" json:"has_warranty"`
	IsItemSentForDelivery bool `db:"is_item_sent_for_delivery" json:"is_item_sent_for_delivery"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// Length возвращает длительность аукциона как интервал.
func (a *Auction) Length() time.Duration {
	switch a.DurationUnit {
	case DurationUnitHours:
		return time.Duration(a.DurationValue) * time.Hour
	default:
		return time.Duration(a.DurationValue) * 24 * time.Hour
	}
}

// Product описывает товар, выставленный на аукцион.
type Product struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	UserID     uuid.UUID      `db:"user_id" json:"user_id"`
	CategoryID uuid.UUID      `db:"category_id" json:"category_id"`
	Title      string         `db:"title" json:"title"`
	Model      *string        `db:"model" json:"model,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	Images     []ProductImage `db:"-" json:"images,omitempty"`
}

// ProductImage описывает изображение товара.
type ProductImage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProductID uuid.UUID `db:"product_id" json:"product_id"`
	ImagePath string    `db:"image_path" json:"image_path"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Category хранит фиксированные суммы залогов для аукционов категории.
type Category struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	SellerDepositAmount float64   `db:"seller_deposit_amount" json:"seller_deposit_amount"`
	BidderDepositAmount float64   `db:"bidder_deposit_amount" json:"bidder_deposit_amount"`
}

// JoinedAuction — участие конкретного пользователя в аукционе. Создаётся
// после подтверждения залога участника.
type JoinedAuction struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	AuctionID uuid.UUID `db:"auction_id" json:"auction_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// JoinedAuctionStatusCount — агрегат количества участий по статусам.
type JoinedAuctionStatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}
