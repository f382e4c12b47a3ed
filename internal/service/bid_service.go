package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/auction-backend/internal/goroutine"
	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/auction-backend/internal/repository"
)

// BidStore описывает зависимости BidService от журнала ставок.
type BidStore interface {
	Append(ctx context.Context, auctionID, bidderID uuid.UUID, amount float64) (*models.Bid, int, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]models.Bid, error)
	SummaryPerBidder(ctx context.Context, auctionID uuid.UUID) ([]models.BidderSummary, error)
}

// BidAuctionStore описывает зависимости от таблицы аукционов.
type BidAuctionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
}

// BidService принимает ставки уже допущенных участников: залог внесён,
// участие создано, каждая следующая ставка обязана перебить текущую.
type BidService struct {
	bids     BidStore
	auctions BidAuctionStore
	notifier Notifier
}

// NewBidService создаёт сервис ставок.
func NewBidService(bids BidStore, auctions BidAuctionStore, notifier Notifier) *BidService {
	return &BidService{bids: bids, auctions: auctions, notifier: notifier}
}

// SubmitBid регистрирует новую ставку. Сумма должна строго превышать
// текущий максимум (или стартовую цену, если ставок ещё нет).
func (s *BidService) SubmitBid(ctx context.Context, bidderID, auctionID uuid.UUID, amount float64) (*models.Bid, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}

	if auction.UserID == bidderID {
		return nil, apperror.ErrOwnAuction
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionSubmitBid) {
		return nil, apperror.ErrActionNotAllowed
	}

	bid, total, err := s.bids.Append(ctx, auctionID, bidderID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBidTooLow):
			return nil, apperror.ErrBidTooLow
		case errors.Is(err, repository.ErrAuctionNotActive):
			// Обход по сроку закрыл аукцион между проверкой и записью.
			return nil, apperror.ErrAuctionExpired
		case errors.Is(err, repository.ErrAuctionNotFound):
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}

	goroutine.SafeGo(func() {
		s.notifier.BroadcastBid(auctionID, bid.Amount, total)
	})

	return bid, nil
}

// ListBids возвращает историю ставок аукциона.
func (s *BidService) ListBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.bids.ListByAuction(ctx, auctionID, limit, offset)
}

// BidderSummaries возвращает сводку по участникам аукциона.
func (s *BidService) BidderSummaries(ctx context.Context, auctionID uuid.UUID) ([]models.BidderSummary, error) {
	return s.bids.SummaryPerBidder(ctx, auctionID)
}
