package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/auction-backend/internal/models"
	"github.com/ignatzorin/auction-backend/internal/repository/common"
)

var (
	// ErrBidTooLow возвращается, когда ставка не превышает текущую.
	ErrBidTooLow = errors.New("bid amount must be greater than current amount")
	// ErrAuctionNotActive возвращается, когда аукцион уже не принимает ставки.
	ErrAuctionNotActive = errors.New("auction is not active")
)

// BidRepository отвечает за журнал ставок. Журнал только дополняется.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository создаёт экземпляр репозитория.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Append добавляет ставку под эксклюзивной блокировкой строки аукциона.
// Последовательность «прочитать текущий максимум, сравнить, дописать»
// выполняется атомарно: две конкурентные ставки против одной базы не могут
// пройти обе. Возвращает ставку и итоговое число ставок аукциона.
func (r *BidRepository) Append(ctx context.Context, auctionID, bidderID uuid.UUID, amount float64) (*models.Bid, int, error) {
	var bid models.Bid
	var total int

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		auction, err := lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		// Статус перепроверяется под блокировкой: обход по сроку мог успеть
		// закрыть аукцион после проверки на уровне сервиса.
		if auction.Status != models.AuctionStatusActive {
			return ErrAuctionNotActive
		}

		baseline := auction.StartBidAmount
		latest, err := latestBidTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if latest != nil {
			baseline = latest.Amount
		}
		if amount <= baseline {
			return ErrBidTooLow
		}

		if err := tx.GetContext(ctx, &bid, `
			INSERT INTO bids (auction_id, user_id, amount)
			VALUES ($1, $2, $3)
			RETURNING *
		`, auctionID, bidderID, amount); err != nil {
			// Уникальный индекс (auction_id, amount) — страховка от равных
			// сумм, если блокировка обойдена.
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrBidTooLow
			}
			return fmt.Errorf("bid repository: append %w", err)
		}

		if err := tx.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM bids WHERE auction_id = $1`, auctionID); err != nil {
			return fmt.Errorf("bid repository: count %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &bid, total, nil
}

// GetLatest возвращает последнюю ставку аукциона, nil если ставок нет.
func (r *BidRepository) GetLatest(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.GetContext(ctx, &bid, `
		SELECT * FROM bids WHERE auction_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("bid repository: get latest %w", err)
	}
	return &bid, nil
}

// GetHighest возвращает ставку с максимальной суммой, nil если ставок нет.
func (r *BidRepository) GetHighest(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.GetContext(ctx, &bid, `
		SELECT * FROM bids WHERE auction_id = $1
		ORDER BY amount DESC LIMIT 1
	`, auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("bid repository: get highest %w", err)
	}
	return &bid, nil
}

// ListByAuction возвращает историю ставок аукциона.
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `
		SELECT * FROM bids WHERE auction_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, auctionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list by auction %w", err)
	}
	return bids, nil
}

// CountByAuction возвращает число ставок аукциона.
func (r *BidRepository) CountByAuction(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1`, auctionID); err != nil {
		return 0, fmt.Errorf("bid repository: count by auction %w", err)
	}
	return total, nil
}

// SummaryPerBidder возвращает сводку по каждому участнику аукциона одним
// агрегирующим запросом.
func (r *BidRepository) SummaryPerBidder(ctx context.Context, auctionID uuid.UUID) ([]models.BidderSummary, error) {
	var summaries []models.BidderSummary
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT user_id,
		       COUNT(*)        AS total_bids,
		       MAX(amount)     AS max_amount,
		       MAX(created_at) AS last_bid_at
		FROM bids
		WHERE auction_id = $1
		GROUP BY user_id
		ORDER BY max_amount DESC
	`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bid repository: summary per bidder %w", err)
	}
	return summaries, nil
}
