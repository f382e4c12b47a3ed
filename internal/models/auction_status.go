package models

// AuctionAction — действие пользователя над аукционом, законность которого
// зависит от текущего статуса.
type AuctionAction string

const (
	ActionUpdate          AuctionAction = "UPDATE"
	ActionDelete          AuctionAction = "DELETE"
	ActionSellerDeposit   AuctionAction = "SELLER_DEPOSIT"
	ActionBidderDeposit   AuctionAction = "BIDDER_DEPOSIT"
	ActionSubmitBid       AuctionAction = "SUBMIT_BID"
	ActionBidderPurchase  AuctionAction = "BIDDER_PURCHASE"
	ActionBuyNow          AuctionAction = "BUY_NOW"
	ActionCancel          AuctionAction = "CANCEL"
	ActionConfirmDelivery AuctionAction = "CONFIRM_DELIVERY"
)

// auctionActionStatuses описывает, в каких статусах аукциона каждое действие
// разрешено. Любая пара вне таблицы — нелегальный переход.
var auctionActionStatuses = map[AuctionAction]map[string]struct{}{
	ActionUpdate: {
		AuctionStatusDrafted:             {},
		AuctionStatusPendingOwnerDeposit: {},
	},
	ActionDelete: {
		AuctionStatusDrafted: {},
	},
	ActionSellerDeposit: {
		AuctionStatusPendingOwnerDeposit: {},
	},
	ActionBidderDeposit: {
		AuctionStatusActive: {},
	},
	ActionSubmitBid: {
		AuctionStatusActive: {},
	},
	ActionBidderPurchase: {
		AuctionStatusWaitingForPayment: {},
	},
	ActionBuyNow: {
		AuctionStatusActive: {},
	},
	ActionCancel: {
		AuctionStatusActive:            {},
		AuctionStatusWaitingForPayment: {},
	},
	ActionConfirmDelivery: {
		AuctionStatusSold: {},
	},
}

// IsActionValidForAuction проверяет, допустимо ли действие в текущем статусе.
func IsActionValidForAuction(status string, action AuctionAction) bool {
	statuses, ok := auctionActionStatuses[action]
	if !ok {
		return false
	}
	_, ok = statuses[status]
	return ok
}

// IsStatusValidForAuction проверяет точное совпадение статуса.
func IsStatusValidForAuction(a *Auction, expected string) bool {
	return a != nil && a.Status == expected
}

// IsTerminalAuctionStatus сообщает, является ли статус конечным.
func IsTerminalAuctionStatus(status string) bool {
	switch status {
	case AuctionStatusSold, AuctionStatusExpired,
		AuctionStatusCancelledBeforeExp, AuctionStatusCancelledAfterExp:
		return true
	}
	return false
}
