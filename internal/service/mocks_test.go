package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/auction-backend/internal/email"
	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/repository"
	"github.com/ignatzorin/auction-backend/internal/stripe"
)

type mockAuctionStore struct {
	mock.Mock
}

func (m *mockAuctionStore) CreateWithProduct(ctx context.Context, auction *models.Auction, product *models.Product) error {
	args := m.Called(ctx, auction, product)
	return args.Error(0)
}

func (m *mockAuctionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Auction), args.Error(1)
}

func (m *mockAuctionStore) GetWithProduct(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Auction), args.Error(1)
}

func (m *mockAuctionStore) GetCategory(ctx context.Context, auctionID uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *mockAuctionStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Auction, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	return args.Get(0).([]models.Auction), args.Error(1)
}

func (m *mockAuctionStore) UpdateDetails(ctx context.Context, auction *models.Auction) error {
	args := m.Called(ctx, auction)
	return args.Error(0)
}

func (m *mockAuctionStore) DeleteDrafted(ctx context.Context, auctionID, ownerID uuid.UUID) error {
	args := m.Called(ctx, auctionID, ownerID)
	return args.Error(0)
}

func (m *mockAuctionStore) MarkItemSent(ctx context.Context, auctionID, ownerID uuid.UUID) error {
	args := m.Called(ctx, auctionID, ownerID)
	return args.Error(0)
}

func (m *mockAuctionStore) ListExpiredCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockAuctionStore) ListScheduledToActivate(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockAuctionStore) ActivateScheduled(ctx context.Context, auctionID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, auctionID, now)
	return args.Error(0)
}

func (m *mockAuctionStore) ExpireOne(ctx context.Context, auctionID uuid.UUID, now time.Time) (*repository.ExpiryOutcome, error) {
	args := m.Called(ctx, auctionID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ExpiryOutcome), args.Error(1)
}

type mockPaymentStore struct {
	mock.Mock
}

func (m *mockPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockPaymentStore) GetNonTerminal(ctx context.Context, userID, auctionID uuid.UUID, paymentType string) (*models.Payment, error) {
	args := m.Called(ctx, userID, auctionID, paymentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) MarkStatusByIntent(ctx context.Context, intentID, status string) error {
	args := m.Called(ctx, intentID, status)
	return args.Error(0)
}

func (m *mockPaymentStore) HoldBidderDeposit(ctx context.Context, intentID string) (*models.Payment, bool, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Payment), args.Bool(1), args.Error(2)
}

func (m *mockPaymentStore) HoldSellerDepositAndPublish(ctx context.Context, intentID string, now time.Time) (*models.Payment, error) {
	args := m.Called(ctx, intentID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) SucceedAuctionPurchase(ctx context.Context, intentID string) (*models.Payment, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) SucceedBuyNow(ctx context.Context, intentID string, now time.Time) (*models.Payment, error) {
	args := m.Called(ctx, intentID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) GetSellerDeposit(ctx context.Context, auctionID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) ListBidderDeposits(ctx context.Context, auctionID uuid.UUID) ([]models.Payment, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).([]models.Payment), args.Error(1)
}

type mockBidStore struct {
	mock.Mock
}

func (m *mockBidStore) Append(ctx context.Context, auctionID, bidderID uuid.UUID, amount float64) (*models.Bid, int, error) {
	args := m.Called(ctx, auctionID, bidderID, amount)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(*models.Bid), args.Int(1), args.Error(2)
}

func (m *mockBidStore) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	args := m.Called(ctx, auctionID, limit, offset)
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *mockBidStore) SummaryPerBidder(ctx context.Context, auctionID uuid.UUID) ([]models.BidderSummary, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).([]models.BidderSummary), args.Error(1)
}

func (m *mockBidStore) GetLatest(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidStore) GetHighest(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidStore) CountByAuction(ctx context.Context, auctionID uuid.UUID) (int, error) {
	args := m.Called(ctx, auctionID)
	return args.Int(0), args.Error(1)
}

type mockJoinedStore struct {
	mock.Mock
}

func (m *mockJoinedStore) GetByStatus(ctx context.Context, auctionID uuid.UUID, status string) (*models.JoinedAuction, error) {
	args := m.Called(ctx, auctionID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JoinedAuction), args.Error(1)
}

func (m *mockJoinedStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.JoinedAuction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.JoinedAuction), args.Error(1)
}

func (m *mockJoinedStore) CountByStatus(ctx context.Context, userID uuid.UUID) ([]models.JoinedAuctionStatusCount, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.JoinedAuctionStatusCount), args.Error(1)
}

func (m *mockJoinedStore) ExpireOverduePayments(ctx context.Context, deadline time.Time) (int, error) {
	args := m.Called(ctx, deadline)
	return args.Int(0), args.Error(1)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserStore) GetMainLocation(ctx context.Context, userID uuid.UUID) (*models.Location, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}

func (m *mockUserStore) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error) {
	args := m.Called(ctx, userID, customerID)
	return args.String(0), args.Error(1)
}

type mockWalletStore struct {
	mock.Mock
}

func (m *mockWalletStore) Append(ctx context.Context, accountType string, userID uuid.UUID, input models.WalletEntryInput) (*models.WalletTransaction, error) {
	args := m.Called(ctx, accountType, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockWalletStore) ListByOwner(ctx context.Context, accountType string, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	args := m.Called(ctx, accountType, userID, limit, offset)
	return args.Get(0).([]models.WalletTransaction), args.Error(1)
}

func (m *mockWalletStore) LastBalance(ctx context.Context, accountType string, userID uuid.UUID) (float64, error) {
	args := m.Called(ctx, accountType, userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockWalletStore) ApplyCancellationSettlement(ctx context.Context, settlement repository.CancellationSettlement, now time.Time) error {
	args := m.Called(ctx, settlement, now)
	return args.Error(0)
}

func (m *mockWalletStore) ApplyDeliverySettlement(ctx context.Context, settlement repository.DeliverySettlement) error {
	args := m.Called(ctx, settlement)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, email, name string) (*stripe.Customer, error) {
	args := m.Called(ctx, email, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Customer), args.Error(1)
}

func (m *mockGateway) CreateDepositIntent(ctx context.Context, customerID string, amount float64, auctionID uuid.UUID, paymentType string, bidAmount *float64) (*stripe.Intent, error) {
	args := m.Called(ctx, customerID, amount, auctionID, paymentType, bidAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Intent), args.Error(1)
}

func (m *mockGateway) CreatePurchaseIntent(ctx context.Context, customerID string, amount float64, auctionID uuid.UUID, paymentType string) (*stripe.Intent, error) {
	args := m.Called(ctx, customerID, amount, auctionID, paymentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Intent), args.Error(1)
}

func (m *mockGateway) RetrieveIntent(ctx context.Context, intentID string) (*stripe.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Intent), args.Error(1)
}

func (m *mockGateway) CaptureIntent(ctx context.Context, intentID string) (*stripe.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Intent), args.Error(1)
}

func (m *mockGateway) CancelIntent(ctx context.Context, intentID string) (*stripe.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Intent), args.Error(1)
}

// stubNotifier копит вызовы, не требуя ожиданий: рассылки уходят из
// горутин и не детерминированы по времени.
type stubNotifier struct {
	mu       sync.Mutex
	bids     []uuid.UUID
	winners  []uuid.UUID
	auctions []uuid.UUID
}

func (n *stubNotifier) BroadcastBid(auctionID uuid.UUID, amount float64, totalBids int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bids = append(n.bids, auctionID)
}

func (n *stubNotifier) NotifyWinner(userID, auctionID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.winners = append(n.winners, userID)
	n.auctions = append(n.auctions, auctionID)
}

func stripeIntent(id string) *stripe.Intent {
	return &stripe.Intent{ID: id, ClientSecret: id + "_secret", Status: stripe.IntentStatusRequiresPayment}
}

type stubMailer struct{}

func (stubMailer) Send(ctx context.Context, address, category string, body email.Body) error {
	return nil
}
