package ws

import (
	"github.com/google/uuid"
)

// События, уходящие клиентам.
const (
	EventBidPlaced  = "BID_PLACED"
	EventAuctionWon = "AUCTION_WON"
)

// NotifierAdapter подключает хаб к сервисам как realtime-оповещатель.
type NotifierAdapter struct {
	hub *Hub
}

// NewNotifierAdapter создаёт новый адаптер.
func NewNotifierAdapter(hub *Hub) *NotifierAdapter {
	return &NotifierAdapter{hub: hub}
}

// BroadcastBid рассылает новую ставку подписчикам комнаты аукциона.
func (a *NotifierAdapter) BroadcastBid(auctionID uuid.UUID, amount float64, totalBids int) {
	_ = a.hub.BroadcastToAuction(auctionID, EventBidPlaced, map[string]any{
		"auction_id": auctionID,
		"amount":     amount,
		"total_bids": totalBids,
	})
}

// NotifyWinner сообщает победителю о закрытии торгов в его пользу.
func (a *NotifierAdapter) NotifyWinner(userID, auctionID uuid.UUID) {
	_ = a.hub.SendToUser(userID, EventAuctionWon, map[string]any{
		"auction_id": auctionID,
	})
}
