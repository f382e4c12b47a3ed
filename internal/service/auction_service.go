package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/auction-backend/internal/email"
	"github.com/ignatzorin/auction-backend/internal/goroutine"
	"github.com/ignatzorin/auction-backend/internal/logger"
	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/auction-backend/internal/repository"
)

// Комиссии площадки в процентах.
const (
	cancelCompensationActivePct  = 15
	cancelCompensationWaitingPct = 20
	deliveryPlatformFeePct       = 5

	// Окно, в течение которого победитель обязан оплатить выигрыш.
	winnerPaymentWindow = 72 * time.Hour
)

// AuctionStore описывает зависимости AuctionService от таблиц аукционов.
type AuctionStore interface {
	CreateWithProduct(ctx context.Context, auction *models.Auction, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetWithProduct(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Auction, error)
	UpdateDetails(ctx context.Context, auction *models.Auction) error
	DeleteDrafted(ctx context.Context, auctionID, ownerID uuid.UUID) error
	MarkItemSent(ctx context.Context, auctionID, ownerID uuid.UUID) error
	ListExpiredCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListScheduledToActivate(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ActivateScheduled(ctx context.Context, auctionID uuid.UUID, now time.Time) error
	ExpireOne(ctx context.Context, auctionID uuid.UUID, now time.Time) (*repository.ExpiryOutcome, error)
}

// AuctionPaymentStore описывает зависимости от таблицы платежей.
type AuctionPaymentStore interface {
	GetSellerDeposit(ctx context.Context, auctionID uuid.UUID) (*models.Payment, error)
	ListBidderDeposits(ctx context.Context, auctionID uuid.UUID) ([]models.Payment, error)
}

// AuctionWalletStore описывает зависимости от журнала кошельков.
type AuctionWalletStore interface {
	ApplyCancellationSettlement(ctx context.Context, settlement repository.CancellationSettlement, now time.Time) error
	ApplyDeliverySettlement(ctx context.Context, settlement repository.DeliverySettlement) error
}

// AuctionBidStore описывает зависимости от журнала ставок. Победитель
// определяется максимальной суммой, а не временем записи.
type AuctionBidStore interface {
	GetHighest(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
}

// AuctionJoinedStore описывает зависимости от таблицы участий.
type AuctionJoinedStore interface {
	GetByStatus(ctx context.Context, auctionID uuid.UUID, status string) (*models.JoinedAuction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.JoinedAuction, error)
	CountByStatus(ctx context.Context, userID uuid.UUID) ([]models.JoinedAuctionStatusCount, error)
	ExpireOverduePayments(ctx context.Context, deadline time.Time) (int, error)
}

// AuctionUserStore описывает зависимости от таблицы пользователей.
type AuctionUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProductInput — товар нового аукциона.
type ProductInput struct {
	CategoryID uuid.UUID
	Title      string
	Model      *string
	ImagePaths []string
}

// CreateAuctionInput — параметры нового аукциона. Длительность задаётся
// парой (единица, значение) и одинаково обрабатывается для немедленных и
// запланированных торгов.
type CreateAuctionInput struct {
	Type            string
	DurationUnit    string
	DurationValue   int
	StartBidAmount  float64
	IsBuyNowAllowed bool
	AcceptedAmount  *float64
	StartDate       *time.Time

	IsDeliveryAvailable bool
	IsReturnable        bool
	HasWarranty         bool

	SaveAsDraft bool
	Product     ProductInput
}

// AuctionService ведёт жизненный цикл аукциона: создание и правку до
// публикации, отмену с расчётом компенсаций, подтверждение доставки с
// выплатой продавцу и периодическую коррекцию статусов по сроку.
type AuctionService struct {
	auctions AuctionStore
	payments AuctionPaymentStore
	wallet   AuctionWalletStore
	bids     AuctionBidStore
	joined   AuctionJoinedStore
	users    AuctionUserStore
	gateway  PaymentGateway
	notifier Notifier
	mailer   Mailer
}

// NewAuctionService создаёт сервис аукционов.
func NewAuctionService(
	auctions AuctionStore,
	payments AuctionPaymentStore,
	wallet AuctionWalletStore,
	bids AuctionBidStore,
	joined AuctionJoinedStore,
	users AuctionUserStore,
	gateway PaymentGateway,
	notifier Notifier,
	mailer Mailer,
) *AuctionService {
	return &AuctionService{
		auctions: auctions,
		payments: payments,
		wallet:   wallet,
		bids:     bids,
		joined:   joined,
		users:    users,
		gateway:  gateway,
		notifier: notifier,
		mailer:   mailer,
	}
}

// validateInput проверяет параметры создания или правки аукциона.
func validateInput(in CreateAuctionInput, now time.Time) error {
	if in.Type != models.AuctionTypeOnTime && in.Type != models.AuctionTypeScheduled {
		return fmt.Errorf("auction service: unknown auction type %q", in.Type)
	}
	if in.DurationUnit != models.DurationUnitDays && in.DurationUnit != models.DurationUnitHours {
		return fmt.Errorf("auction service: unknown duration unit %q", in.DurationUnit)
	}
	if in.DurationValue <= 0 {
		return fmt.Errorf("auction service: duration must be positive")
	}
	if in.StartBidAmount <= 0 {
		return fmt.Errorf("auction service: start bid must be positive")
	}
	if in.Type == models.AuctionTypeScheduled &&
		(in.StartDate == nil || !in.StartDate.After(now)) {
		return apperror.ErrStartDateNotValid
	}
	if in.IsBuyNowAllowed {
		if in.AcceptedAmount == nil || *in.AcceptedAmount <= in.StartBidAmount {
			return fmt.Errorf("auction service: buy-now price must exceed start bid")
		}
	}
	if in.Product.Title == "" {
		return fmt.Errorf("auction service: product title is required")
	}
	return nil
}

// Create создаёт аукцион с товаром. Черновик остаётся DRAFTED, готовый к
// публикации аукцион ждёт залог продавца в PENDING_OWNER_DEPOSIT.
func (s *AuctionService) Create(ctx context.Context, ownerID uuid.UUID, in CreateAuctionInput) (*models.Auction, error) {
	if err := validateInput(in, time.Now()); err != nil {
		return nil, err
	}

	status := models.AuctionStatusPendingOwnerDeposit
	if in.SaveAsDraft {
		status = models.AuctionStatusDrafted
	}

	startDate := in.StartDate
	if in.Type == models.AuctionTypeOnTime {
		startDate = nil
	}
	acceptedAmount := in.AcceptedAmount
	if !in.IsBuyNowAllowed {
		acceptedAmount = nil
	}

	product := &models.Product{
		UserID:     ownerID,
		CategoryID: in.Product.CategoryID,
		Title:      in.Product.Title,
		Model:      in.Product.Model,
	}
	for _, path := range in.Product.ImagePaths {
		product.Images = append(product.Images, models.ProductImage{ImagePath: path})
	}

	auction := &models.Auction{
		UserID:              ownerID,
		Type:                in.Type,
		DurationUnit:        in.DurationUnit,
		DurationValue:       in.DurationValue,
		StartBidAmount:      in.StartBidAmount,
		IsBuyNowAllowed:     in.IsBuyNowAllowed,
		AcceptedAmount:      acceptedAmount,
		StartDate:           startDate,
		Status:              status,
		IsDeliveryAvailable: in.IsDeliveryAvailable,
		IsReturnable:        in.IsReturnable,
		HasWarranty:         in.HasWarranty,
	}

	if err := s.auctions.CreateWithProduct(ctx, auction, product); err != nil {
		return nil, maskInternal(err)
	}
	auction.Product = product
	return auction, nil
}

// Update правит ещё не опубликованный аукцион. Правка черновика может сразу
// выставить его на публикацию.
func (s *AuctionService) Update(ctx context.Context, ownerID, auctionID uuid.UUID, in CreateAuctionInput) (*models.Auction, error) {
	auction, err := s.getOwned(ctx, ownerID, auctionID)
	if err != nil {
		return nil, err
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionUpdate) {
		return nil, apperror.ErrActionNotAllowed
	}
	if err := validateInput(in, time.Now()); err != nil {
		return nil, err
	}

	auction.Type = in.Type
	auction.DurationUnit = in.DurationUnit
	auction.DurationValue = in.DurationValue
	auction.StartBidAmount = in.StartBidAmount
	auction.IsBuyNowAllowed = in.IsBuyNowAllowed
	auction.AcceptedAmount = in.AcceptedAmount
	if !in.IsBuyNowAllowed {
		auction.AcceptedAmount = nil
	}
	auction.StartDate = in.StartDate
	if in.Type == models.AuctionTypeOnTime {
		auction.StartDate = nil
	}
	auction.IsDeliveryAvailable = in.IsDeliveryAvailable
	auction.IsReturnable = in.IsReturnable
	auction.HasWarranty = in.HasWarranty
	if !in.SaveAsDraft {
		auction.Status = models.AuctionStatusPendingOwnerDeposit
	}

	if err := s.auctions.UpdateDetails(ctx, auction); err != nil {
		return nil, maskInternal(err)
	}
	return auction, nil
}

// Delete удаляет черновик аукциона.
func (s *AuctionService) Delete(ctx context.Context, ownerID, auctionID uuid.UUID) error {
	auction, err := s.getOwned(ctx, ownerID, auctionID)
	if err != nil {
		return err
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionDelete) {
		return apperror.ErrActionNotAllowed
	}
	if err := s.auctions.DeleteDrafted(ctx, auctionID, ownerID); err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return apperror.ErrAuctionNotFound
		}
		return maskInternal(err)
	}
	return nil
}

// Get возвращает аукцион с товаром и изображениями.
func (s *AuctionService) Get(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	auction, err := s.auctions.GetWithProduct(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}
	return auction, nil
}

// ListMine возвращает аукционы продавца.
func (s *AuctionService) ListMine(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Auction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.auctions.ListByOwner(ctx, ownerID, limit, offset)
}

// ListParticipations возвращает участия пользователя в чужих аукционах.
func (s *AuctionService) ListParticipations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.JoinedAuction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.joined.ListByUser(ctx, userID, limit, offset)
}

// ParticipationStats возвращает распределение участий пользователя по статусам.
func (s *AuctionService) ParticipationStats(ctx context.Context, userID uuid.UUID) ([]models.JoinedAuctionStatusCount, error) {
	return s.joined.CountByStatus(ctx, userID)
}

// MarkItemSent отмечает, что продавец передал проданный товар в доставку.
func (s *AuctionService) MarkItemSent(ctx context.Context, ownerID, auctionID uuid.UUID) error {
	auction, err := s.getOwned(ctx, ownerID, auctionID)
	if err != nil {
		return err
	}
	if auction.Status != models.AuctionStatusSold {
		return apperror.ErrActionNotAllowed
	}
	if err := s.auctions.MarkItemSent(ctx, auctionID, ownerID); err != nil {
		return maskInternal(err)
	}
	return nil
}

// Cancel отменяет аукцион по инициативе продавца. Без участников залог
// продавца просто освобождается. С участниками залог списывается: лучший
// участник получает компенсацию (15% до истечения срока, 20% после, после
// истечения — плюс возврат собственного залога), остаток уходит платформе.
func (s *AuctionService) Cancel(ctx context.Context, ownerID, auctionID uuid.UUID) error {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return apperror.ErrAuctionNotFound
		}
		return maskInternal(err)
	}
	if auction.UserID != ownerID {
		return apperror.ErrCannotCancel
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionCancel) {
		return apperror.ErrCannotCancel
	}

	sellerDeposit, err := s.payments.GetSellerDeposit(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return apperror.ErrCannotCancel
		}
		return maskInternal(err)
	}
	if sellerDeposit.Status != models.PaymentStatusHold {
		return apperror.ErrCannotCancel
	}

	toStatus := models.AuctionStatusCancelledBeforeExp
	afterExpiry := auction.Status == models.AuctionStatusWaitingForPayment
	if afterExpiry {
		toStatus = models.AuctionStatusCancelledAfterExp
	}
	now := time.Now()

	highest, err := s.bids.GetHighest(ctx, auctionID)
	if err != nil {
		return maskInternal(err)
	}

	if highest == nil {
		// Участников нет: освобождаем залог продавца без движения средств.
		if _, err := s.gateway.CancelIntent(ctx, sellerDeposit.PaymentIntentID); err != nil {
			return maskInternal(err)
		}
		return s.applyCancellation(ctx, repository.CancellationSettlement{
			AuctionID:  auctionID,
			FromStatus: auction.Status,
			ToStatus:   toStatus,
		}, now)
	}

	deposits, err := s.payments.ListBidderDeposits(ctx, auctionID)
	if err != nil {
		return maskInternal(err)
	}
	var winnerDeposit *models.Payment
	var otherDeposits []models.Payment
	for i := range deposits {
		if deposits[i].UserID == highest.UserID {
			winnerDeposit = &deposits[i]
		} else {
			otherDeposits = append(otherDeposits, deposits[i])
		}
	}

	pct := float64(cancelCompensationActivePct)
	if afterExpiry {
		pct = float64(cancelCompensationWaitingPct)
	}
	compensation := sellerDeposit.Amount * pct / 100
	payout := compensation
	if afterExpiry && winnerDeposit != nil {
		payout += winnerDeposit.Amount
	}
	platformAmount := sellerDeposit.Amount - payout

	// Сначала движение средств в шлюзе, затем запись в журнал: зачисление
	// не фиксируется, пока деньги реально не переместились.
	if _, err := s.gateway.CaptureIntent(ctx, sellerDeposit.PaymentIntentID); err != nil {
		return maskInternal(err)
	}
	if winnerDeposit != nil {
		if afterExpiry {
			if _, err := s.gateway.CaptureIntent(ctx, winnerDeposit.PaymentIntentID); err != nil {
				return maskInternal(err)
			}
		} else {
			if _, err := s.gateway.CancelIntent(ctx, winnerDeposit.PaymentIntentID); err != nil {
				return maskInternal(err)
			}
		}
	}
	for i := range otherDeposits {
		if _, err := s.gateway.CancelIntent(ctx, otherDeposits[i].PaymentIntentID); err != nil {
			return maskInternal(err)
		}
	}

	err = s.applyCancellation(ctx, repository.CancellationSettlement{
		AuctionID:  auctionID,
		FromStatus: auction.Status,
		ToStatus:   toStatus,
		Credits: []repository.WalletCredit{
			{
				AccountType: models.WalletAccountUser,
				UserID:      highest.UserID,
				Amount:      payout,
				Description: "Compensation for auction cancelled by the seller",
			},
			{
				AccountType: models.WalletAccountPlatform,
				UserID:      uuid.Nil,
				Amount:      platformAmount,
				Description: "Seller deposit remainder after cancellation compensation",
			},
		},
	}, now)
	if err != nil {
		return err
	}

	logger.WithAuction(auctionID).WithFields(logrus.Fields{
		"payout":   payout,
		"platform": platformAmount,
	}).Info("аукцион отменён, компенсация зачислена")

	s.sendAuctionEmail(highest.UserID, auctionID,
		"Auction cancelled",
		"The seller cancelled the auction. Your compensation has been credited to your wallet.",
		"Open wallet")
	return nil
}

func (s *AuctionService) applyCancellation(ctx context.Context, settlement repository.CancellationSettlement, now time.Time) error {
	if err := s.wallet.ApplyCancellationSettlement(ctx, settlement, now); err != nil {
		if errors.Is(err, repository.ErrSettlementConflict) {
			return apperror.ErrCannotCancel
		}
		return maskInternal(err)
	}
	return nil
}

// ConfirmDelivery подтверждает получение товара победителем: залог продавца
// освобождается, продавцу зачисляется цена продажи за вычетом комиссии
// площадки, участие победителя закрывается.
func (s *AuctionService) ConfirmDelivery(ctx context.Context, userID, auctionID uuid.UUID) error {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return apperror.ErrAuctionNotFound
		}
		return maskInternal(err)
	}
	if auction.UserID == userID {
		return apperror.ErrCannotComplete
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionConfirmDelivery) {
		return apperror.ErrCannotComplete
	}

	joined, err := s.joined.GetByStatus(ctx, auctionID, models.JoinedStatusWaitingForDelivery)
	if err != nil {
		return maskInternal(err)
	}
	if joined == nil || joined.UserID != userID {
		return apperror.ErrCannotComplete
	}

	highest, err := s.bids.GetHighest(ctx, auctionID)
	if err != nil {
		return maskInternal(err)
	}
	if highest == nil {
		return apperror.ErrCannotComplete
	}

	platformFee := highest.Amount * deliveryPlatformFeePct / 100
	sellerPayout := highest.Amount - platformFee

	sellerDeposit, err := s.payments.GetSellerDeposit(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return apperror.ErrCannotComplete
		}
		return maskInternal(err)
	}
	if sellerDeposit.Status == models.PaymentStatusHold {
		if _, err := s.gateway.CancelIntent(ctx, sellerDeposit.PaymentIntentID); err != nil {
			return maskInternal(err)
		}
	}

	err = s.wallet.ApplyDeliverySettlement(ctx, repository.DeliverySettlement{
		AuctionID: auctionID,
		WinnerID:  userID,
		Credits: []repository.WalletCredit{
			{
				AccountType: models.WalletAccountUser,
				UserID:      auction.UserID,
				Amount:      sellerPayout,
				Description: "Sale payout after delivery confirmation",
			},
			{
				AccountType: models.WalletAccountPlatform,
				UserID:      uuid.Nil,
				Amount:      platformFee,
				Description: "Platform fee for completed sale",
			},
		},
	})
	if err != nil {
		if errors.Is(err, repository.ErrSettlementConflict) {
			return apperror.ErrCannotComplete
		}
		return maskInternal(err)
	}

	logger.WithAuction(auctionID).WithFields(logrus.Fields{
		"seller_payout": sellerPayout,
		"platform_fee":  platformFee,
	}).Info("доставка подтверждена, выплата зачислена")

	s.sendAuctionEmail(auction.UserID, auctionID,
		"Delivery confirmed",
		"The buyer confirmed delivery. Your payout has been credited to your wallet.",
		"Open wallet")
	return nil
}

// ExpireDueAuctions обрабатывает просроченные аукционы. Каждый аукцион —
// независимая транзакция: сбой одного не блокирует остальные. Возвращает
// число изменённых аукционов и первую встреченную ошибку.
func (s *AuctionService) ExpireDueAuctions(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.auctions.ListExpiredCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	var changed int
	var firstErr error
	for _, id := range ids {
		outcome, err := s.auctions.ExpireOne(ctx, id, now)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !outcome.Changed {
			continue
		}
		changed++

		if outcome.Status == models.AuctionStatusWaitingForPayment {
			winnerID := outcome.WinnerID
			auctionID := outcome.AuctionID
			goroutine.SafeGo(func() {
				s.notifier.NotifyWinner(winnerID, auctionID)
			})
			s.sendAuctionEmail(winnerID, auctionID,
				"You won the auction",
				"Congratulations! Complete the payment to receive the item.",
				"Pay now")
		}
	}
	return changed, firstErr
}

// ExpireWinnerPayments помечает участия победителей, не оплативших выигрыш
// в течение платёжного окна, как PAYMENT_EXPIRED. Поздняя оплата после
// этого невозможна.
func (s *AuctionService) ExpireWinnerPayments(ctx context.Context, now time.Time) (int, error) {
	return s.joined.ExpireOverduePayments(ctx, now.Add(-winnerPaymentWindow))
}

// ActivateScheduledAuctions переводит запланированные аукционы в ACTIVE по
// наступлении даты старта.
func (s *AuctionService) ActivateScheduledAuctions(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.auctions.ListScheduledToActivate(ctx, now)
	if err != nil {
		return 0, err
	}

	var activated int
	var firstErr error
	for _, id := range ids {
		if err := s.auctions.ActivateScheduled(ctx, id, now); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		activated++
	}
	return activated, firstErr
}

// getOwned возвращает аукцион, если он принадлежит пользователю.
func (s *AuctionService) getOwned(ctx context.Context, ownerID, auctionID uuid.UUID) (*models.Auction, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}
	if auction.UserID != ownerID {
		return nil, apperror.ErrAuctionNotFound
	}
	return auction, nil
}

// sendAuctionEmail отправляет письмо по событию аукциона fire-and-forget.
func (s *AuctionService) sendAuctionEmail(userID, auctionID uuid.UUID, subject, message, button string) {
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return
		}
		productName := ""
		if auction, err := s.auctions.GetWithProduct(ctx, auctionID); err == nil && auction.Product != nil {
			productName = auction.Product.Title
		}

		_ = s.mailer.Send(ctx, user.Email, email.CategoryAuction, email.Body{
			Subject:     subject,
			Title:       subject,
			ProductName: productName,
			Message:     message,
			ButtonText:  button,
			ButtonURL:   fmt.Sprintf("/auctions/%s", auctionID),
		})
	})
}
