package models

// Статусы аукциона
const (
	AuctionStatusDrafted             = "DRAFTED"
	AuctionStatusPendingOwnerDeposit = "PENDING_OWNER_DEPOSIT"
	AuctionStatusInScheduled         = "IN_SCHEDULED"
	AuctionStatusActive              = "ACTIVE"
	AuctionStatusWaitingForPayment   = "WAITING_FOR_PAYMENT"
	AuctionStatusSold                = "SOLD"
	AuctionStatusExpired             = "EXPIRED"
	AuctionStatusCancelledBeforeExp  = "CANCELLED_BEFORE_EXP_DATE"
	AuctionStatusCancelledAfterExp   = "CANCELLED_AFTER_EXP_DATE"
)

// Типы аукциона
const (
	AuctionTypeOnTime    = "ON_TIME"
	AuctionTypeScheduled = "SCHEDULED"
)

// Единицы длительности аукциона
const (
	DurationUnitDays  = "DAYS"
	DurationUnitHours = "HOURS"
)

// Статусы участия в аукционе
const (
	JoinedStatusPendingPayment     = "PENDING_PAYMENT"
	JoinedStatusWaitingForDelivery = "WAITING_FOR_DELIVERY"
	JoinedStatusCompleted          = "COMPLETED"
	JoinedStatusLost               = "LOST"
	JoinedStatusCancelledBeforeExp = "CANCELLED_BEFORE_EXP_DATE"
	JoinedStatusCancelledAfterExp  = "CANCELLED_AFTER_EXP_DATE"
	JoinedStatusPaymentExpired     = "PAYMENT_EXPIRED"
)

// Типы платежей
const (
	PaymentTypeSellerDeposit   = "SELLER_DEPOSIT"
	PaymentTypeBidderDeposit   = "BIDDER_DEPOSIT"
	PaymentTypeAuctionPurchase = "AUCTION_PURCHASE"
	PaymentTypeBuyNowPurchase  = "BUY_NOW_PURCHASE"
)

// Статусы платежей
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusHold      = "HOLD"
	PaymentStatusSuccess   = "SUCCESS"
	PaymentStatusCancelled = "CANCELLED"
	PaymentStatusFailed    = "FAILED"
)

// Направления движения средств в кошельке
const (
	WalletStatusDeposit  = "DEPOSIT"
	WalletStatusWithdraw = "WITHDRAW"
)

// Типы транзакций кошелька
const (
	WalletTransactionByAuction  = "BY_AUCTION"
	WalletTransactionByWithdraw = "BY_WITHDRAWAL"
)

// Типы счетов кошелька: пользователь или счёт самой платформы
const (
	WalletAccountUser     = "USER"
	WalletAccountPlatform = "PLATFORM"
)

// ValidAuctionStatuses список валидных статусов аукциона
var ValidAuctionStatuses = map[string]struct{}{
	AuctionStatusDrafted:             {},
	AuctionStatusPendingOwnerDeposit: {},
	AuctionStatusInScheduled:         {},
	AuctionStatusActive:              {},
	AuctionStatusWaitingForPayment:   {},
	AuctionStatusSold:                {},
	AuctionStatusExpired:             {},
	AuctionStatusCancelledBeforeExp:  {},
	AuctionStatusCancelledAfterExp:   {},
}

// ValidJoinedStatuses список валидных статусов участия
var ValidJoinedStatuses = map[string]struct{}{
	JoinedStatusPendingPayment:     {},
	JoinedStatusWaitingForDelivery: {},
	JoinedStatusCompleted:          {},
	JoinedStatusLost:               {},
	JoinedStatusCancelledBeforeExp: {},
	JoinedStatusCancelledAfterExp:  {},
	JoinedStatusPaymentExpired:     {},
}

// ValidPaymentStatuses список валидных статусов платежа
var ValidPaymentStatuses = map[string]struct{}{
	PaymentStatusPending:   {},
	PaymentStatusHold:      {},
	PaymentStatusSuccess:   {},
	PaymentStatusCancelled: {},
	PaymentStatusFailed:    {},
}
