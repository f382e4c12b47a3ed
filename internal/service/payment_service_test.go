package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/auction-backend/internal/repository"
	"github.com/ignatzorin/auction-backend/internal/stripe"
)

func newPaymentServiceForTest() (*PaymentService, *mockPaymentStore, *mockAuctionStore, *mockUserStore, *mockBidStore, *mockJoinedStore, *mockGateway) {
	payments := new(mockPaymentStore)
	auctions := new(mockAuctionStore)
	users := new(mockUserStore)
	bids := new(mockBidStore)
	joined := new(mockJoinedStore)
	gateway := new(mockGateway)

	svc := NewPaymentService(payments, auctions, users, bids, joined, gateway, &stubNotifier{}, stubMailer{})
	return svc, payments, auctions, users, bids, joined, gateway
}

func TestPaymentService_PayDepositBySeller_NotOwner(t *testing.T) {
	svc, _, auctions, _, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusPendingOwnerDeposit,
	}, nil)

	_, err := svc.PayDepositBySeller(ctx, uuid.New(), auctionID)
	assert.ErrorIs(t, err, apperror.ErrCannotComplete)
}

func TestPaymentService_PayDepositBySeller_CreatesIntent(t *testing.T) {
	svc, payments, auctions, users, _, _, gateway := newPaymentServiceForTest()
	ctx := context.Background()
	sellerID := uuid.New()
	auctionID := uuid.New()
	customerID := "cus_1"

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: sellerID, Type: models.AuctionTypeOnTime,
		Status: models.AuctionStatusPendingOwnerDeposit,
	}, nil)
	users.On("GetMainLocation", ctx, sellerID).Return(&models.Location{IsMain: true}, nil)
	auctions.On("GetCategory", ctx, auctionID).Return(&models.Category{SellerDepositAmount: 1000}, nil)
	payments.On("GetNonTerminal", ctx, sellerID, auctionID, models.PaymentTypeSellerDeposit).Return(nil, nil)
	users.On("GetByID", ctx, sellerID).Return(&models.User{ID: sellerID, Email: "s@x.ae", StripeCustomerID: &customerID}, nil)
	gateway.On("CreateDepositIntent", ctx, customerID, float64(1000), auctionID, models.PaymentTypeSellerDeposit, (*float64)(nil)).
		Return(stripeIntent("pi_dep"), nil)
	payments.On("Create", ctx, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Type == models.PaymentTypeSellerDeposit && p.Amount == 1000 && p.PaymentIntentID == "pi_dep"
	})).Return(nil)

	result, err := svc.PayDepositBySeller(ctx, sellerID, auctionID)
	assert.NoError(t, err)
	assert.Equal(t, "pi_dep", result.PaymentIntentID)
	payments.AssertExpectations(t)
}

func TestPaymentService_PayDepositBySeller_NoMainLocation(t *testing.T) {
	svc, _, auctions, users, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	sellerID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: sellerID, Type: models.AuctionTypeOnTime,
		Status: models.AuctionStatusPendingOwnerDeposit,
	}, nil)
	users.On("GetMainLocation", ctx, sellerID).Return(nil, repository.ErrLocationNotFound)

	_, err := svc.PayDepositBySeller(ctx, sellerID, auctionID)
	assert.ErrorIs(t, err, apperror.ErrNoMainLocation)
}

func TestPaymentService_PayDepositByBidder_BidTooLow(t *testing.T) {
	svc, _, auctions, _, bids, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusActive, StartBidAmount: 100,
	}, nil)
	bids.On("GetLatest", ctx, auctionID).Return(&models.Bid{Amount: 250}, nil)

	_, err := svc.PayDepositByBidder(ctx, uuid.New(), auctionID, 250)
	assert.ErrorIs(t, err, apperror.ErrBidTooLow)
}

func TestPaymentService_PayDepositByBidder_OwnAuction(t *testing.T) {
	svc, _, auctions, _, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	sellerID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: sellerID, Status: models.AuctionStatusActive,
	}, nil)

	_, err := svc.PayDepositByBidder(ctx, sellerID, auctionID, 200)
	assert.ErrorIs(t, err, apperror.ErrOwnAuction)
}

func TestPaymentService_Deposit_ReusesNonTerminal(t *testing.T) {
	svc, payments, auctions, users, bids, _, gateway := newPaymentServiceForTest()
	ctx := context.Background()
	bidderID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusActive, StartBidAmount: 100,
	}, nil)
	bids.On("GetLatest", ctx, auctionID).Return(nil, nil)
	users.On("GetMainLocation", ctx, bidderID).Return(&models.Location{IsMain: true}, nil)
	auctions.On("GetCategory", ctx, auctionID).Return(&models.Category{BidderDepositAmount: 200}, nil)
	payments.On("GetNonTerminal", ctx, bidderID, auctionID, models.PaymentTypeBidderDeposit).Return(&models.Payment{
		PaymentIntentID: "pi_old", Status: models.PaymentStatusPending,
	}, nil)
	gateway.On("RetrieveIntent", ctx, "pi_old").Return(stripeIntent("pi_old"), nil)

	result, err := svc.PayDepositByBidder(ctx, bidderID, auctionID, 150)
	assert.NoError(t, err)
	assert.Equal(t, "pi_old", result.PaymentIntentID)
	// Новый интент не создаётся.
	gateway.AssertNotCalled(t, "CreateDepositIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_Deposit_AlreadyPaid(t *testing.T) {
	svc, payments, auctions, users, bids, _, gateway := newPaymentServiceForTest()
	ctx := context.Background()
	bidderID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusActive, StartBidAmount: 100,
	}, nil)
	bids.On("GetLatest", ctx, auctionID).Return(nil, nil)
	users.On("GetMainLocation", ctx, bidderID).Return(&models.Location{IsMain: true}, nil)
	auctions.On("GetCategory", ctx, auctionID).Return(&models.Category{BidderDepositAmount: 200}, nil)
	payments.On("GetNonTerminal", ctx, bidderID, auctionID, models.PaymentTypeBidderDeposit).Return(&models.Payment{
		PaymentIntentID: "pi_done", Status: models.PaymentStatusPending,
	}, nil)
	// Шлюз уже завершил интент, вебхук ещё не дошёл.
	gateway.On("RetrieveIntent", ctx, "pi_done").Return(&stripe.Intent{
		ID: "pi_done", Status: stripe.IntentStatusSucceeded,
	}, nil)

	_, err := svc.PayDepositByBidder(ctx, bidderID, auctionID, 150)
	assert.ErrorIs(t, err, apperror.ErrAlreadyPaid)
}

func TestPaymentService_PayAuctionByBidder_OnlyWinner(t *testing.T) {
	svc, _, auctions, _, _, joined, _ := newPaymentServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusWaitingForPayment,
	}, nil)
	joined.On("GetByStatus", ctx, auctionID, models.JoinedStatusPendingPayment).Return(&models.JoinedAuction{
		UserID: uuid.New(),
	}, nil)

	_, err := svc.PayAuctionByBidder(ctx, uuid.New(), auctionID)
	assert.ErrorIs(t, err, apperror.ErrCannotPurchase)
}

func TestPaymentService_BuyNow_NotAllowed(t *testing.T) {
	svc, _, auctions, _, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusActive, IsBuyNowAllowed: false,
	}, nil)

	_, err := svc.BuyNow(ctx, uuid.New(), auctionID)
	assert.ErrorIs(t, err, apperror.ErrBuyNowNotAllowed)
}

func TestPaymentService_HandleWebhook_UnknownIntent(t *testing.T) {
	svc, payments, _, _, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()

	payments.On("GetByIntentID", ctx, "pi_foreign").Return(nil, repository.ErrPaymentNotFound)

	err := svc.HandleWebhook(ctx, &stripe.WebhookEvent{
		IntentID: "pi_foreign", PaymentStatus: models.PaymentStatusSuccess,
	})
	assert.NoError(t, err)
}

func TestPaymentService_HandleWebhook_BidderDepositHold(t *testing.T) {
	svc, payments, _, _, bids, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()
	bidAmount := 150.0

	payments.On("GetByIntentID", ctx, "pi_dep").Return(&models.Payment{
		PaymentIntentID: "pi_dep", Type: models.PaymentTypeBidderDeposit, AuctionID: auctionID,
	}, nil)
	payments.On("HoldBidderDeposit", ctx, "pi_dep").Return(&models.Payment{
		PaymentIntentID: "pi_dep", AuctionID: auctionID, BidAmount: &bidAmount,
	}, true, nil)
	bids.On("CountByAuction", ctx, auctionID).Return(1, nil)

	err := svc.HandleWebhook(ctx, &stripe.WebhookEvent{
		IntentID: "pi_dep", PaymentStatus: models.PaymentStatusHold,
	})
	assert.NoError(t, err)
	payments.AssertExpectations(t)
}

func TestPaymentService_HandleWebhook_StaleBidderDeposit(t *testing.T) {
	svc, payments, _, _, bids, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()
	bidAmount := 150.0

	payments.On("GetByIntentID", ctx, "pi_dep").Return(&models.Payment{
		PaymentIntentID: "pi_dep", Type: models.PaymentTypeBidderDeposit, AuctionID: auctionID,
	}, nil)
	// Пока шёл вебхук, журнал успел принять более высокую ставку: залог
	// удержан, но ставка в журнал не попала.
	payments.On("HoldBidderDeposit", ctx, "pi_dep").Return(&models.Payment{
		PaymentIntentID: "pi_dep", AuctionID: auctionID, BidAmount: &bidAmount,
	}, false, nil)

	err := svc.HandleWebhook(ctx, &stripe.WebhookEvent{
		IntentID: "pi_dep", PaymentStatus: models.PaymentStatusHold,
	})
	assert.NoError(t, err)
	bids.AssertNotCalled(t, "CountByAuction", ctx, auctionID)
}

func TestPaymentService_HandleWebhook_RedeliveryIsNoop(t *testing.T) {
	svc, payments, _, _, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()

	payments.On("GetByIntentID", ctx, "pi_dep").Return(&models.Payment{
		PaymentIntentID: "pi_dep", Type: models.PaymentTypeBidderDeposit, Status: models.PaymentStatusHold,
	}, nil)
	// Повторная доставка: переход PENDING->HOLD уже выполнен, хранилище
	// возвращает nil без ошибки.
	payments.On("HoldBidderDeposit", ctx, "pi_dep").Return(nil, false, nil)

	err := svc.HandleWebhook(ctx, &stripe.WebhookEvent{
		IntentID: "pi_dep", PaymentStatus: models.PaymentStatusHold,
	})
	assert.NoError(t, err)
}

func TestPaymentService_HandleWebhook_SellerDepositPublishes(t *testing.T) {
	svc, payments, _, _, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()
	sellerID := uuid.New()
	auctionID := uuid.New()

	payments.On("GetByIntentID", ctx, "pi_seller").Return(&models.Payment{
		PaymentIntentID: "pi_seller", Type: models.PaymentTypeSellerDeposit,
	}, nil)
	payments.On("HoldSellerDepositAndPublish", ctx, "pi_seller", mock.AnythingOfType("time.Time")).Return(&models.Payment{
		PaymentIntentID: "pi_seller", UserID: sellerID, AuctionID: auctionID,
	}, nil)

	err := svc.HandleWebhook(ctx, &stripe.WebhookEvent{
		IntentID: "pi_seller", PaymentStatus: models.PaymentStatusHold,
	})
	assert.NoError(t, err)
	payments.AssertExpectations(t)
}

func TestPaymentService_HandleWebhook_DepositCaptureMarksStatusOnly(t *testing.T) {
	svc, payments, _, _, _, _, _ := newPaymentServiceForTest()
	ctx := context.Background()

	// SUCCESS по залогу приходит после капчера при отмене аукциона: платёж
	// только меняет статус, расчёты уже проведены сервисом аукционов.
	payments.On("GetByIntentID", ctx, "pi_seller").Return(&models.Payment{
		PaymentIntentID: "pi_seller", Type: models.PaymentTypeSellerDeposit, Status: models.PaymentStatusHold,
	}, nil)
	payments.On("MarkStatusByIntent", ctx, "pi_seller", models.PaymentStatusSuccess).Return(nil)

	err := svc.HandleWebhook(ctx, &stripe.WebhookEvent{
		IntentID: "pi_seller", PaymentStatus: models.PaymentStatusSuccess,
	})
	assert.NoError(t, err)
	payments.AssertExpectations(t)
}

func TestPaymentService_EnsureCustomer_CreatesOnce(t *testing.T) {
	svc, _, _, users, _, _, gateway := newPaymentServiceForTest()
	ctx := context.Background()
	userID := uuid.New()

	user := &models.User{ID: userID, Email: "u@x.ae", Username: "u"}
	gateway.On("CreateCustomer", ctx, "u@x.ae", "u").Return(&stripe.Customer{ID: "cus_new"}, nil)
	// first-write-wins: хранилище возвращает сохранённый идентификатор.
	users.On("SetStripeCustomerID", ctx, userID, "cus_new").Return("cus_existing", nil)

	got, err := svc.ensureCustomer(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, "cus_existing", got)
}
