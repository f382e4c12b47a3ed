package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/repository/common"
)

// ErrPaymentNotFound возвращается, когда платёж не найден.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepository отвечает за таблицу payments и за атомарные ветки
// обработки вебхуков шлюза: каждая ветка — одна транзакция, затрагивающая
// платёж, аукцион и участия вместе.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository создаёт экземпляр репозитория.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create сохраняет новый платёж со статусом PENDING.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, auction_id, type, status, payment_intent_id, amount, bid_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		payment.UserID, payment.AuctionID, payment.Type, models.PaymentStatusPending,
		payment.PaymentIntentID, payment.Amount, payment.BidAmount,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return fmt.Errorf("payment repository: create %w", err)
	}
	payment.Status = models.PaymentStatusPending
	return nil
}

// GetNonTerminal возвращает незавершённый (PENDING или HOLD) платёж по паре
// (пользователь, аукцион) и типу, nil если такого нет. Завершённые
// CANCELLED/FAILED платежи не мешают создать новый.
func (r *PaymentRepository) GetNonTerminal(ctx context.Context, userID, auctionID uuid.UUID, paymentType string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		SELECT * FROM payments
		WHERE user_id = $1 AND auction_id = $2 AND type = $3 AND status IN ($4, $5)
		ORDER BY created_at DESC LIMIT 1
	`, userID, auctionID, paymentType, models.PaymentStatusPending, models.PaymentStatusHold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("payment repository: get non-terminal %w", err)
	}
	return &payment, nil
}

// GetByIntentID возвращает платёж по идентификатору интента шлюза.
func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	return common.GetByField[models.Payment](ctx, r.db, "payments", "payment_intent_id", intentID, ErrPaymentNotFound)
}

// GetSellerDeposit возвращает залог продавца по аукциону.
func (r *PaymentRepository) GetSellerDeposit(ctx context.Context, auctionID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		SELECT * FROM payments
		WHERE auction_id = $1 AND type = $2
		ORDER BY created_at DESC LIMIT 1
	`, auctionID, models.PaymentTypeSellerDeposit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get seller deposit %w", err)
	}
	return &payment, nil
}

// ListBidderDeposits возвращает удержанные залоги участников аукциона.
func (r *PaymentRepository) ListBidderDeposits(ctx context.Context, auctionID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE auction_id = $1 AND type = $2 AND status = $3
	`, auctionID, models.PaymentTypeBidderDeposit, models.PaymentStatusHold)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list bidder deposits %w", err)
	}
	return payments, nil
}

// MarkStatusByIntent переводит платёж в терминальный статус CANCELLED/FAILED.
func (r *PaymentRepository) MarkStatusByIntent(ctx context.Context, intentID, status string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = NOW()
		WHERE payment_intent_id = $1
	`, intentID, status); err != nil {
		return fmt.Errorf("payment repository: mark status %w", err)
	}
	return nil
}

// markPaymentTx переводит платёж из from в to внутри транзакции.
// Возвращает nil, nil если платёж уже обработан: повторная доставка
// вебхука превращается в no-op.
func markPaymentTx(ctx context.Context, tx *sqlx.Tx, intentID, from, to string) (*models.Payment, error) {
	var payment models.Payment
	err := tx.GetContext(ctx, &payment, `
		UPDATE payments SET status = $3, updated_at = NOW()
		WHERE payment_intent_id = $1 AND status = $2
		RETURNING *
	`, intentID, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("payment repository: mark payment %w", err)
	}
	return &payment, nil
}

// HoldBidderDeposit атомарно фиксирует удержание залога участника: платёж
// переходит в HOLD, создаётся участие в аукционе и ставка из залога.
// Ставка пишется под эксклюзивной блокировкой строки аукциона и только
// после перепроверки текущего максимума: вебхуки приходят в произвольном
// порядке, и залог, чья ставка успела устареть, остаётся удержанным без
// записи в журнал. Второй результат сообщает, попала ли ставка в журнал.
func (r *PaymentRepository) HoldBidderDeposit(ctx context.Context, intentID string) (*models.Payment, bool, error) {
	var payment *models.Payment
	var bidPlaced bool
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		payment, err = markPaymentTx(ctx, tx, intentID, models.PaymentStatusPending, models.PaymentStatusHold)
		if err != nil || payment == nil {
			return err
		}

		auction, err := lockAuction(ctx, tx, payment.AuctionID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO joined_auctions (user_id, auction_id, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (auction_id, user_id) DO NOTHING
		`, payment.UserID, payment.AuctionID, models.JoinedStatusPendingPayment); err != nil {
			return fmt.Errorf("payment repository: join auction %w", err)
		}

		if payment.BidAmount == nil {
			return fmt.Errorf("payment repository: bidder deposit %s has no bid amount", intentID)
		}

		// Перепроверка под блокировкой: пока шёл вебхук, аукцион мог
		// закрыться или принять более высокую ставку.
		if auction.Status != models.AuctionStatusActive {
			return nil
		}
		baseline := auction.StartBidAmount
		latest, err := latestBidTx(ctx, tx, payment.AuctionID)
		if err != nil {
			return err
		}
		if latest != nil {
			baseline = latest.Amount
		}
		if *payment.BidAmount <= baseline {
			return nil
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO bids (auction_id, user_id, amount)
			VALUES ($1, $2, $3)
			ON CONFLICT (auction_id, amount) DO NOTHING
		`, payment.AuctionID, payment.UserID, *payment.BidAmount)
		if err != nil {
			return fmt.Errorf("payment repository: create bid %w", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			bidPlaced = true
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payment, bidPlaced, nil
}

// HoldSellerDepositAndPublish атомарно фиксирует удержание залога продавца
// и публикует аукцион.
func (r *PaymentRepository) HoldSellerDepositAndPublish(ctx context.Context, intentID string, now time.Time) (*models.Payment, error) {
	var payment *models.Payment
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		payment, err = markPaymentTx(ctx, tx, intentID, models.PaymentStatusPending, models.PaymentStatusHold)
		if err != nil || payment == nil {
			return err
		}
		return publishAuctionTx(ctx, tx, payment.AuctionID, now)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// SucceedAuctionPurchase атомарно фиксирует полную оплату победителем:
// платёж — SUCCESS, участие победителя — WAITING_FOR_DELIVERY, аукцион — SOLD.
func (r *PaymentRepository) SucceedAuctionPurchase(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment *models.Payment
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		payment, err = markPaymentTx(ctx, tx, intentID, models.PaymentStatusPending, models.PaymentStatusSuccess)
		if err != nil || payment == nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE joined_auctions SET status = $3, updated_at = NOW()
			WHERE auction_id = $1 AND user_id = $2 AND status = $4
		`, payment.AuctionID, payment.UserID,
			models.JoinedStatusWaitingForDelivery, models.JoinedStatusPendingPayment)
		if err != nil {
			return fmt.Errorf("payment repository: update joined auction %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("payment repository: no pending winner for auction %s", payment.AuctionID)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, updated_at = NOW() WHERE id = $1
		`, payment.AuctionID, models.AuctionStatusSold); err != nil {
			return fmt.Errorf("payment repository: mark auction sold %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// SucceedBuyNow атомарно фиксирует прямую покупку: платёж — SUCCESS,
// аукцион — SOLD.
func (r *PaymentRepository) SucceedBuyNow(ctx context.Context, intentID string, now time.Time) (*models.Payment, error) {
	var payment *models.Payment
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		payment, err = markPaymentTx(ctx, tx, intentID, models.PaymentStatusPending, models.PaymentStatusSuccess)
		if err != nil || payment == nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, end_date = $3, updated_at = NOW()
			WHERE id = $1
		`, payment.AuctionID, models.AuctionStatusSold, now); err != nil {
			return fmt.Errorf("payment repository: mark auction sold %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}
