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
)

// ErrJoinedAuctionNotFound возвращается, когда участие не найдено.
var ErrJoinedAuctionNotFound = errors.New("joined auction not found")

// JoinedAuctionRepository отвечает за таблицу joined_auctions — связи
// «участник — аукцион», создаваемые при подтверждении залога.
type JoinedAuctionRepository struct {
	db *sqlx.DB
}

// NewJoinedAuctionRepository создаёт экземпляр репозитория.
func NewJoinedAuctionRepository(db *sqlx.DB) *JoinedAuctionRepository {
	return &JoinedAuctionRepository{db: db}
}

// Get возвращает участие по паре (аукцион, пользователь).
func (r *JoinedAuctionRepository) Get(ctx context.Context, auctionID, userID uuid.UUID) (*models.JoinedAuction, error) {
	var joined models.JoinedAuction
	err := r.db.GetContext(ctx, &joined, `
		SELECT * FROM joined_auctions WHERE auction_id = $1 AND user_id = $2
	`, auctionID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJoinedAuctionNotFound
		}
		return nil, fmt.Errorf("joined auction repository: get %w", err)
	}
	return &joined, nil
}

// GetByStatus возвращает участие аукциона в заданном статусе, nil если его
// нет. В статусах PENDING_PAYMENT и WAITING_FOR_DELIVERY такое участие
// не более одного — победитель.
func (r *JoinedAuctionRepository) GetByStatus(ctx context.Context, auctionID uuid.UUID, status string) (*models.JoinedAuction, error) {
	var joined models.JoinedAuction
	err := r.db.GetContext(ctx, &joined, `
		SELECT * FROM joined_auctions WHERE auction_id = $1 AND status = $2 LIMIT 1
	`, auctionID, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("joined auction repository: get by status %w", err)
	}
	return &joined, nil
}

// ListByUser возвращает участия пользователя от новых к старым.
func (r *JoinedAuctionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.JoinedAuction, error) {
	var joined []models.JoinedAuction
	err := r.db.SelectContext(ctx, &joined, `
		SELECT * FROM joined_auctions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("joined auction repository: list by user %w", err)
	}
	return joined, nil
}

// CountByStatus возвращает распределение участий пользователя по статусам
// одним агрегирующим запросом.
func (r *JoinedAuctionRepository) CountByStatus(ctx context.Context, userID uuid.UUID) ([]models.JoinedAuctionStatusCount, error) {
	var counts []models.JoinedAuctionStatusCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT status, COUNT(*) AS count
		FROM joined_auctions
		WHERE user_id = $1
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("joined auction repository: count by status %w", err)
	}
	return counts, nil
}

// ExpireOverduePayments переводит участия победителей, не оплативших
// выигрыш до дедлайна, в PAYMENT_EXPIRED. Аукцион остаётся в
// WAITING_FOR_PAYMENT: продавец может отменить его на условиях после
// истечения срока. Возвращает число изменённых участий.
func (r *JoinedAuctionRepository) ExpireOverduePayments(ctx context.Context, deadline time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE joined_auctions SET status = $1, updated_at = NOW()
		WHERE status = $2
		  AND auction_id IN (
			SELECT id FROM auctions WHERE status = $3 AND end_date < $4
		  )
	`, models.JoinedStatusPaymentExpired, models.JoinedStatusPendingPayment,
		models.AuctionStatusWaitingForPayment, deadline)
	if err != nil {
		return 0, fmt.Errorf("joined auction repository: expire overdue payments %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// UpdateStatus переводит участие в новый статус.
func (r *JoinedAuctionRepository) UpdateStatus(ctx context.Context, auctionID, userID uuid.UUID, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE joined_auctions SET status = $3, updated_at = NOW()
		WHERE auction_id = $1 AND user_id = $2
	`, auctionID, userID, status)
	if err != nil {
		return fmt.Errorf("joined auction repository: update status %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrJoinedAuctionNotFound
	}
	return nil
}
