package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/auction-backend/internal/repository"
)

func newAuctionServiceForTest() (*AuctionService, *mockAuctionStore, *mockPaymentStore, *mockWalletStore, *mockBidStore, *mockJoinedStore, *mockUserStore, *mockGateway) {
	auctions := new(mockAuctionStore)
	payments := new(mockPaymentStore)
	wallet := new(mockWalletStore)
	bids := new(mockBidStore)
	joined := new(mockJoinedStore)
	users := new(mockUserStore)
	gateway := new(mockGateway)

	svc := NewAuctionService(auctions, payments, wallet, bids, joined, users, gateway, &stubNotifier{}, stubMailer{})
	return svc, auctions, payments, wallet, bids, joined, users, gateway
}

func TestAuctionService_Create_Draft(t *testing.T) {
	svc, auctions, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	ownerID := uuid.New()

	auctions.On("CreateWithProduct", ctx, mock.Anything, mock.Anything).Return(nil)

	auction, err := svc.Create(ctx, ownerID, CreateAuctionInput{
		Type:           models.AuctionTypeOnTime,
		DurationUnit:   models.DurationUnitDays,
		DurationValue:  3,
		StartBidAmount: 100,
		SaveAsDraft:    true,
		Product:        ProductInput{CategoryID: uuid.New(), Title: "Old camera"},
	})

	assert.NoError(t, err)
	assert.Equal(t, models.AuctionStatusDrafted, auction.Status)
	assert.Nil(t, auction.StartDate)
}

func TestAuctionService_Create_ScheduledRequiresFutureStart(t *testing.T) {
	svc, _, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, err := svc.Create(ctx, uuid.New(), CreateAuctionInput{
		Type:           models.AuctionTypeScheduled,
		DurationUnit:   models.DurationUnitHours,
		DurationValue:  6,
		StartBidAmount: 100,
		StartDate:      &past,
		Product:        ProductInput{CategoryID: uuid.New(), Title: "Watch"},
	})

	assert.ErrorIs(t, err, apperror.ErrStartDateNotValid)
}

func TestAuctionService_Create_BuyNowMustExceedStartBid(t *testing.T) {
	svc, _, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()

	accepted := 90.0
	_, err := svc.Create(ctx, uuid.New(), CreateAuctionInput{
		Type:            models.AuctionTypeOnTime,
		DurationUnit:    models.DurationUnitDays,
		DurationValue:   1,
		StartBidAmount:  100,
		IsBuyNowAllowed: true,
		AcceptedAmount:  &accepted,
		Product:         ProductInput{CategoryID: uuid.New(), Title: "Phone"},
	})

	assert.Error(t, err)
}

func TestAuctionService_Cancel_ActiveWithBidders(t *testing.T) {
	svc, auctions, payments, wallet, bids, _, _, gateway := newAuctionServiceForTest()
	ctx := context.Background()
	ownerID := uuid.New()
	winnerID := uuid.New()
	otherID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: ownerID, Status: models.AuctionStatusActive,
	}, nil)
	payments.On("GetSellerDeposit", ctx, auctionID).Return(&models.Payment{
		UserID: ownerID, Status: models.PaymentStatusHold, Amount: 1000, PaymentIntentID: "pi_seller",
	}, nil)
	bids.On("GetHighest", ctx, auctionID).Return(&models.Bid{UserID: winnerID, Amount: 700}, nil)
	payments.On("ListBidderDeposits", ctx, auctionID).Return([]models.Payment{
		{UserID: winnerID, Amount: 200, PaymentIntentID: "pi_winner", Status: models.PaymentStatusHold},
		{UserID: otherID, Amount: 200, PaymentIntentID: "pi_other", Status: models.PaymentStatusHold},
	}, nil)

	// Залог продавца списывается, холды участников отпускаются.
	gateway.On("CaptureIntent", ctx, "pi_seller").Return(stripeIntent("pi_seller"), nil)
	gateway.On("CancelIntent", ctx, "pi_winner").Return(stripeIntent("pi_winner"), nil)
	gateway.On("CancelIntent", ctx, "pi_other").Return(stripeIntent("pi_other"), nil)

	wallet.On("ApplyCancellationSettlement", ctx, mock.MatchedBy(func(s repository.CancellationSettlement) bool {
		if s.FromStatus != models.AuctionStatusActive || s.ToStatus != models.AuctionStatusCancelledBeforeExp {
			return false
		}
		if len(s.Credits) != 2 {
			return false
		}
		// 15% от залога 1000 лучшему участнику, остаток платформе.
		return s.Credits[0].UserID == winnerID && s.Credits[0].Amount == 150 &&
			s.Credits[1].AccountType == models.WalletAccountPlatform && s.Credits[1].Amount == 850
	}), mock.Anything).Return(nil)

	err := svc.Cancel(ctx, ownerID, auctionID)
	assert.NoError(t, err)
	wallet.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestAuctionService_Cancel_WaitingForPayment(t *testing.T) {
	svc, auctions, payments, wallet, bids, _, _, gateway := newAuctionServiceForTest()
	ctx := context.Background()
	ownerID := uuid.New()
	winnerID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: ownerID, Status: models.AuctionStatusWaitingForPayment,
	}, nil)
	payments.On("GetSellerDeposit", ctx, auctionID).Return(&models.Payment{
		UserID: ownerID, Status: models.PaymentStatusHold, Amount: 1000, PaymentIntentID: "pi_seller",
	}, nil)
	bids.On("GetHighest", ctx, auctionID).Return(&models.Bid{UserID: winnerID, Amount: 700}, nil)
	payments.On("ListBidderDeposits", ctx, auctionID).Return([]models.Payment{
		{UserID: winnerID, Amount: 200, PaymentIntentID: "pi_winner", Status: models.PaymentStatusHold},
	}, nil)

	// После истечения срока залог победителя тоже списывается и возвращается
	// ему через кошелёк.
	gateway.On("CaptureIntent", ctx, "pi_seller").Return(stripeIntent("pi_seller"), nil)
	gateway.On("CaptureIntent", ctx, "pi_winner").Return(stripeIntent("pi_winner"), nil)

	wallet.On("ApplyCancellationSettlement", ctx, mock.MatchedBy(func(s repository.CancellationSettlement) bool {
		if s.ToStatus != models.AuctionStatusCancelledAfterExp {
			return false
		}
		// 20% компенсации + возврат собственного залога 200 = 400; платформе 600.
		return len(s.Credits) == 2 &&
			s.Credits[0].UserID == winnerID && s.Credits[0].Amount == 400 &&
			s.Credits[1].Amount == 600
	}), mock.Anything).Return(nil)

	err := svc.Cancel(ctx, ownerID, auctionID)
	assert.NoError(t, err)
	wallet.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestAuctionService_Cancel_NoBidders(t *testing.T) {
	svc, auctions, payments, wallet, bids, _, _, gateway := newAuctionServiceForTest()
	ctx := context.Background()
	ownerID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: ownerID, Status: models.AuctionStatusActive,
	}, nil)
	payments.On("GetSellerDeposit", ctx, auctionID).Return(&models.Payment{
		UserID: ownerID, Status: models.PaymentStatusHold, Amount: 1000, PaymentIntentID: "pi_seller",
	}, nil)
	bids.On("GetHighest", ctx, auctionID).Return(nil, nil)

	gateway.On("CancelIntent", ctx, "pi_seller").Return(stripeIntent("pi_seller"), nil)
	wallet.On("ApplyCancellationSettlement", ctx, mock.MatchedBy(func(s repository.CancellationSettlement) bool {
		return len(s.Credits) == 0 && s.ToStatus == models.AuctionStatusCancelledBeforeExp
	}), mock.Anything).Return(nil)

	err := svc.Cancel(ctx, ownerID, auctionID)
	assert.NoError(t, err)
	wallet.AssertExpectations(t)
}

func TestAuctionService_Cancel_NotOwner(t *testing.T) {
	svc, auctions, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusActive,
	}, nil)

	err := svc.Cancel(ctx, uuid.New(), auctionID)
	assert.ErrorIs(t, err, apperror.ErrCannotCancel)
}

func TestAuctionService_Cancel_SettlementConflict(t *testing.T) {
	svc, auctions, payments, wallet, bids, _, _, gateway := newAuctionServiceForTest()
	ctx := context.Background()
	ownerID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: ownerID, Status: models.AuctionStatusActive,
	}, nil)
	payments.On("GetSellerDeposit", ctx, auctionID).Return(&models.Payment{
		Status: models.PaymentStatusHold, Amount: 1000, PaymentIntentID: "pi_seller",
	}, nil)
	bids.On("GetHighest", ctx, auctionID).Return(nil, nil)
	gateway.On("CancelIntent", ctx, "pi_seller").Return(stripeIntent("pi_seller"), nil)
	wallet.On("ApplyCancellationSettlement", ctx, mock.Anything, mock.Anything).
		Return(repository.ErrSettlementConflict)

	err := svc.Cancel(ctx, ownerID, auctionID)
	assert.ErrorIs(t, err, apperror.ErrCannotCancel)
}

func TestAuctionService_ConfirmDelivery(t *testing.T) {
	svc, auctions, payments, wallet, bids, joined, _, gateway := newAuctionServiceForTest()
	ctx := context.Background()
	sellerID := uuid.New()
	winnerID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: sellerID, Status: models.AuctionStatusSold,
	}, nil)
	joined.On("GetByStatus", ctx, auctionID, models.JoinedStatusWaitingForDelivery).Return(&models.JoinedAuction{
		AuctionID: auctionID, UserID: winnerID, Status: models.JoinedStatusWaitingForDelivery,
	}, nil)
	bids.On("GetHighest", ctx, auctionID).Return(&models.Bid{UserID: winnerID, Amount: 1000}, nil)
	payments.On("GetSellerDeposit", ctx, auctionID).Return(&models.Payment{
		UserID: sellerID, Status: models.PaymentStatusHold, PaymentIntentID: "pi_seller",
	}, nil)
	gateway.On("CancelIntent", ctx, "pi_seller").Return(stripeIntent("pi_seller"), nil)

	wallet.On("ApplyDeliverySettlement", ctx, mock.MatchedBy(func(s repository.DeliverySettlement) bool {
		// Продавцу цена продажи минус 5% комиссии.
		return s.WinnerID == winnerID && len(s.Credits) == 2 &&
			s.Credits[0].UserID == sellerID && s.Credits[0].Amount == 950 &&
			s.Credits[1].AccountType == models.WalletAccountPlatform && s.Credits[1].Amount == 50
	})).Return(nil)

	err := svc.ConfirmDelivery(ctx, winnerID, auctionID)
	assert.NoError(t, err)
	wallet.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestAuctionService_ConfirmDelivery_OnlyWinner(t *testing.T) {
	svc, auctions, _, _, _, joined, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: uuid.New(), Status: models.AuctionStatusSold,
	}, nil)
	joined.On("GetByStatus", ctx, auctionID, models.JoinedStatusWaitingForDelivery).Return(&models.JoinedAuction{
		UserID: uuid.New(),
	}, nil)

	err := svc.ConfirmDelivery(ctx, uuid.New(), auctionID)
	assert.ErrorIs(t, err, apperror.ErrCannotComplete)
}

func TestAuctionService_ExpireDueAuctions(t *testing.T) {
	svc, auctions, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	now := time.Now()

	withBids := uuid.New()
	withoutBids := uuid.New()
	winnerID := uuid.New()

	auctions.On("ListExpiredCandidates", ctx, now).Return([]uuid.UUID{withBids, withoutBids}, nil)
	auctions.On("ExpireOne", ctx, withBids, now).Return(&repository.ExpiryOutcome{
		AuctionID: withBids, Status: models.AuctionStatusWaitingForPayment, WinnerID: winnerID, Changed: true,
	}, nil)
	auctions.On("ExpireOne", ctx, withoutBids, now).Return(&repository.ExpiryOutcome{
		AuctionID: withoutBids, Status: models.AuctionStatusExpired, Changed: true,
	}, nil)

	changed, err := svc.ExpireDueAuctions(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 2, changed)
}

func TestAuctionService_ExpireDueAuctions_SkipsUnchanged(t *testing.T) {
	svc, auctions, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	now := time.Now()
	id := uuid.New()

	// Повторный проход по уже обработанному аукциону ничего не меняет.
	auctions.On("ListExpiredCandidates", ctx, now).Return([]uuid.UUID{id}, nil)
	auctions.On("ExpireOne", ctx, id, now).Return(&repository.ExpiryOutcome{AuctionID: id, Changed: false}, nil)

	changed, err := svc.ExpireDueAuctions(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func TestAuctionService_ActivateScheduledAuctions(t *testing.T) {
	svc, auctions, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	now := time.Now()

	first := uuid.New()
	second := uuid.New()

	auctions.On("ListScheduledToActivate", ctx, now).Return([]uuid.UUID{first, second}, nil)
	auctions.On("ActivateScheduled", ctx, first, now).Return(nil)
	auctions.On("ActivateScheduled", ctx, second, now).Return(nil)

	activated, err := svc.ActivateScheduledAuctions(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 2, activated)
}

func TestAuctionService_ExpireWinnerPayments(t *testing.T) {
	svc, _, _, _, _, joined, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	now := time.Now()

	joined.On("ExpireOverduePayments", ctx, now.Add(-winnerPaymentWindow)).Return(3, nil)

	expired, err := svc.ExpireWinnerPayments(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 3, expired)
}

func TestAuctionService_MarkItemSent_RequiresSold(t *testing.T) {
	svc, auctions, _, _, _, _, _, _ := newAuctionServiceForTest()
	ctx := context.Background()
	ownerID := uuid.New()
	auctionID := uuid.New()

	auctions.On("GetByID", ctx, auctionID).Return(&models.Auction{
		ID: auctionID, UserID: ownerID, Status: models.AuctionStatusActive,
	}, nil)

	err := svc.MarkItemSent(ctx, ownerID, auctionID)
	assert.ErrorIs(t, err, apperror.ErrActionNotAllowed)
}
