package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/auction-backend/internal/email"
	"github.com/ignatzorin/auction-backend/internal/goroutine"
	"github.com/ignatzorin/auction-backend/internal/logger"
	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/auction-backend/internal/repository"
	"github.com/ignatzorin/auction-backend/internal/stripe"
)

// PaymentGateway — контракт платёжного шлюза со стороны движка: создание
// клиентов и интентов, удержание и освобождение средств.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, email, name string) (*stripe.Customer, error)
	CreateDepositIntent(ctx context.Context, customerID string, amount float64, auctionID uuid.UUID, paymentType string, bidAmount *float64) (*stripe.Intent, error)
	CreatePurchaseIntent(ctx context.Context, customerID string, amount float64, auctionID uuid.UUID, paymentType string) (*stripe.Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*stripe.Intent, error)
	CaptureIntent(ctx context.Context, intentID string) (*stripe.Intent, error)
	CancelIntent(ctx context.Context, intentID string) (*stripe.Intent, error)
}

// PaymentStore описывает зависимости PaymentService от таблицы платежей.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetNonTerminal(ctx context.Context, userID, auctionID uuid.UUID, paymentType string) (*models.Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	MarkStatusByIntent(ctx context.Context, intentID, status string) error
	HoldBidderDeposit(ctx context.Context, intentID string) (*models.Payment, bool, error)
	HoldSellerDepositAndPublish(ctx context.Context, intentID string, now time.Time) (*models.Payment, error)
	SucceedAuctionPurchase(ctx context.Context, intentID string) (*models.Payment, error)
	SucceedBuyNow(ctx context.Context, intentID string, now time.Time) (*models.Payment, error)
}

// PaymentAuctionStore описывает зависимости от таблицы аукционов.
type PaymentAuctionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetWithProduct(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetCategory(ctx context.Context, auctionID uuid.UUID) (*models.Category, error)
}

// PaymentUserStore описывает зависимости от таблицы пользователей.
type PaymentUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetMainLocation(ctx context.Context, userID uuid.UUID) (*models.Location, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error)
}

// PaymentBidStore описывает зависимости от журнала ставок.
type PaymentBidStore interface {
	GetLatest(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
	CountByAuction(ctx context.Context, auctionID uuid.UUID) (int, error)
}

// PaymentJoinedStore описывает зависимости от таблицы участий.
type PaymentJoinedStore interface {
	GetByStatus(ctx context.Context, auctionID uuid.UUID, status string) (*models.JoinedAuction, error)
}

// PaymentService ведёт платёжные потоки: залог продавца перед публикацией,
// залог участника при входе в торги, финальную оплату победителем и прямую
// покупку. Подтверждения приходят асинхронно вебхуками шлюза.
type PaymentService struct {
	payments PaymentStore
	auctions PaymentAuctionStore
	users    PaymentUserStore
	bids     PaymentBidStore
	joined   PaymentJoinedStore
	gateway  PaymentGateway
	notifier Notifier
	mailer   Mailer
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(
	payments PaymentStore,
	auctions PaymentAuctionStore,
	users PaymentUserStore,
	bids PaymentBidStore,
	joined PaymentJoinedStore,
	gateway PaymentGateway,
	notifier Notifier,
	mailer Mailer,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		auctions: auctions,
		users:    users,
		bids:     bids,
		joined:   joined,
		gateway:  gateway,
		notifier: notifier,
		mailer:   mailer,
	}
}

// ensureCustomer возвращает идентификатор клиента шлюза, создавая его при
// первом платеже. Привязка first-write-wins: при гонке двух запросов обоим
// вернётся один и тот же сохранённый идентификатор.
func (s *PaymentService) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customer, err := s.gateway.CreateCustomer(ctx, user.Email, user.Username)
	if err != nil {
		return "", maskInternal(err)
	}

	stored, err := s.users.SetStripeCustomerID(ctx, user.ID, customer.ID)
	if err != nil {
		return "", maskInternal(err)
	}
	return stored, nil
}

// reuseNonTerminal возвращает клиентский дескриптор существующего
// незавершённого платежа. Если интент уже завершён на стороне шлюза, а
// вебхук ещё не дошёл — «уже оплачено».
func (s *PaymentService) reuseNonTerminal(ctx context.Context, payment *models.Payment) (*models.PaymentIntentResult, error) {
	intent, err := s.gateway.RetrieveIntent(ctx, payment.PaymentIntentID)
	if err != nil {
		return nil, maskInternal(err)
	}
	if intent.IsSettled() {
		return nil, apperror.ErrAlreadyPaid
	}
	return &models.PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// requireMainLocation проверяет, что у пользователя задан основной адрес.
func (s *PaymentService) requireMainLocation(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.users.GetMainLocation(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return apperror.ErrNoMainLocation
		}
		return maskInternal(err)
	}
	return nil
}

// PayDepositBySeller запускает оплату залога продавца. Подтверждение залога
// вебхуком публикует аукцион.
func (s *PaymentService) PayDepositBySeller(ctx context.Context, userID, auctionID uuid.UUID) (*models.PaymentIntentResult, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}

	if auction.UserID != userID {
		return nil, apperror.ErrCannotComplete
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionSellerDeposit) {
		return nil, apperror.ErrActionNotAllowed
	}
	// Запланированный аукцион нельзя публиковать, если дата старта уже прошла:
	// оплата могла затянуться.
	if auction.Type == models.AuctionTypeScheduled &&
		(auction.StartDate == nil || !auction.StartDate.After(time.Now())) {
		return nil, apperror.ErrStartDateNotValid
	}
	if err := s.requireMainLocation(ctx, userID); err != nil {
		return nil, err
	}

	category, err := s.auctions.GetCategory(ctx, auctionID)
	if err != nil {
		return nil, maskInternal(err)
	}

	return s.createDeposit(ctx, userID, auction, models.PaymentTypeSellerDeposit, category.SellerDepositAmount, nil)
}

// PayDepositByBidder запускает оплату залога участника вместе с его первой
// ставкой. Сама ставка попадёт в журнал только после подтверждения залога.
func (s *PaymentService) PayDepositByBidder(ctx context.Context, userID, auctionID uuid.UUID, bidAmount float64) (*models.PaymentIntentResult, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}

	if auction.UserID == userID {
		return nil, apperror.ErrOwnAuction
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionBidderDeposit) {
		return nil, apperror.ErrActionNotAllowed
	}

	baseline := auction.StartBidAmount
	latest, err := s.bids.GetLatest(ctx, auctionID)
	if err != nil {
		return nil, maskInternal(err)
	}
	if latest != nil {
		baseline = latest.Amount
	}
	if bidAmount <= baseline {
		return nil, apperror.ErrBidTooLow
	}

	if err := s.requireMainLocation(ctx, userID); err != nil {
		return nil, err
	}

	category, err := s.auctions.GetCategory(ctx, auctionID)
	if err != nil {
		return nil, maskInternal(err)
	}

	return s.createDeposit(ctx, userID, auction, models.PaymentTypeBidderDeposit, category.BidderDepositAmount, &bidAmount)
}

// PayAuctionByBidder запускает финальную оплату победителем после закрытия
// торгов.
func (s *PaymentService) PayAuctionByBidder(ctx context.Context, userID, auctionID uuid.UUID) (*models.PaymentIntentResult, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}

	if !models.IsActionValidForAuction(auction.Status, models.ActionBidderPurchase) {
		return nil, apperror.ErrActionNotAllowed
	}

	winner, err := s.joined.GetByStatus(ctx, auctionID, models.JoinedStatusPendingPayment)
	if err != nil {
		return nil, maskInternal(err)
	}
	if winner == nil || winner.UserID != userID {
		return nil, apperror.ErrCannotPurchase
	}

	latest, err := s.bids.GetLatest(ctx, auctionID)
	if err != nil {
		return nil, maskInternal(err)
	}
	if latest == nil {
		return nil, apperror.ErrCannotPurchase
	}

	return s.createPurchase(ctx, userID, auction, models.PaymentTypeAuctionPurchase, latest.Amount)
}

// BuyNow запускает прямую покупку по фиксированной цене.
func (s *PaymentService) BuyNow(ctx context.Context, userID, auctionID uuid.UUID) (*models.PaymentIntentResult, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, maskInternal(err)
	}

	if auction.UserID == userID {
		return nil, apperror.ErrOwnAuction
	}
	if !models.IsActionValidForAuction(auction.Status, models.ActionBuyNow) {
		return nil, apperror.ErrActionNotAllowed
	}
	if !auction.IsBuyNowAllowed || auction.AcceptedAmount == nil {
		return nil, apperror.ErrBuyNowNotAllowed
	}

	return s.createPurchase(ctx, userID, auction, models.PaymentTypeBuyNowPurchase, *auction.AcceptedAmount)
}

// createDeposit создаёт интент с ручным капчером и платёж PENDING либо
// возвращает дескриптор уже существующего незавершённого платежа.
func (s *PaymentService) createDeposit(ctx context.Context, userID uuid.UUID, auction *models.Auction, paymentType string, amount float64, bidAmount *float64) (*models.PaymentIntentResult, error) {
	existing, err := s.payments.GetNonTerminal(ctx, userID, auction.ID, paymentType)
	if err != nil {
		return nil, maskInternal(err)
	}
	if existing != nil {
		return s.reuseNonTerminal(ctx, existing)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, maskInternal(err)
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateDepositIntent(ctx, customerID, amount, auction.ID, paymentType, bidAmount)
	if err != nil {
		return nil, maskInternal(err)
	}

	payment := &models.Payment{
		UserID:          userID,
		AuctionID:       auction.ID,
		Type:            paymentType,
		PaymentIntentID: intent.ID,
		Amount:          amount,
		BidAmount:       bidAmount,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, maskInternal(err)
	}

	return &models.PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// createPurchase создаёт интент с немедленным списанием и платёж PENDING.
func (s *PaymentService) createPurchase(ctx context.Context, userID uuid.UUID, auction *models.Auction, paymentType string, amount float64) (*models.PaymentIntentResult, error) {
	existing, err := s.payments.GetNonTerminal(ctx, userID, auction.ID, paymentType)
	if err != nil {
		return nil, maskInternal(err)
	}
	if existing != nil {
		return s.reuseNonTerminal(ctx, existing)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, maskInternal(err)
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePurchaseIntent(ctx, customerID, amount, auction.ID, paymentType)
	if err != nil {
		return nil, maskInternal(err)
	}

	payment := &models.Payment{
		UserID:          userID,
		AuctionID:       auction.ID,
		Type:            paymentType,
		PaymentIntentID: intent.ID,
		Amount:          amount,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, maskInternal(err)
	}

	return &models.PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// HandleWebhook диспетчеризует подтверждение шлюза по паре
// (статус события, тип платежа). Каждая ветка атомарна на стороне
// хранилища; повторная доставка события — no-op.
func (s *PaymentService) HandleWebhook(ctx context.Context, event *stripe.WebhookEvent) error {
	payment, err := s.payments.GetByIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			// Интент не из этой системы, подтверждаем и забываем.
			return nil
		}
		return err
	}

	switch {
	case event.PaymentStatus == models.PaymentStatusHold && payment.Type == models.PaymentTypeBidderDeposit:
		applied, bidPlaced, err := s.payments.HoldBidderDeposit(ctx, event.IntentID)
		if err != nil {
			return err
		}
		// Устаревшая ставка не попадает в журнал и не анонсируется,
		// залог при этом остаётся удержанным.
		if bidPlaced && applied.BidAmount != nil {
			s.broadcastBid(ctx, applied.AuctionID, *applied.BidAmount)
		} else if applied != nil {
			logger.WithIntent(event.IntentID).Info("залог удержан, ставка устарела и не записана")
		}
		return nil

	case event.PaymentStatus == models.PaymentStatusHold && payment.Type == models.PaymentTypeSellerDeposit:
		applied, err := s.payments.HoldSellerDepositAndPublish(ctx, event.IntentID, time.Now())
		if err != nil {
			return err
		}
		if applied != nil {
			s.sendAuctionEmail(applied.UserID, applied.AuctionID,
				"Your auction is live",
				"Deposit confirmed, the auction has been published.",
				"View auction")
		}
		return nil

	case event.PaymentStatus == models.PaymentStatusSuccess && payment.Type == models.PaymentTypeAuctionPurchase:
		applied, err := s.payments.SucceedAuctionPurchase(ctx, event.IntentID)
		if err != nil {
			return err
		}
		if applied != nil {
			s.sendAuctionEmail(applied.UserID, applied.AuctionID,
				"Payment received",
				"Your payment is confirmed. The seller will ship the item.",
				"Track delivery")
		}
		return nil

	case event.PaymentStatus == models.PaymentStatusSuccess && payment.Type == models.PaymentTypeBuyNowPurchase:
		_, err := s.payments.SucceedBuyNow(ctx, event.IntentID, time.Now())
		return err

	default:
		// CANCELLED/FAILED по любому типу и SUCCESS по залогам (результат
		// капчера при отмене): достаточно зафиксировать статус платежа.
		return s.payments.MarkStatusByIntent(ctx, event.IntentID, event.PaymentStatus)
	}
}

// broadcastBid рассылает новую ставку подписчикам аукциона.
func (s *PaymentService) broadcastBid(ctx context.Context, auctionID uuid.UUID, amount float64) {
	total, err := s.bids.CountByAuction(ctx, auctionID)
	if err != nil {
		total = 0
	}
	goroutine.SafeGo(func() {
		s.notifier.BroadcastBid(auctionID, amount, total)
	})
}

// sendAuctionEmail отправляет письмо по событию аукциона fire-and-forget.
func (s *PaymentService) sendAuctionEmail(userID, auctionID uuid.UUID, subject, message, button string) {
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
