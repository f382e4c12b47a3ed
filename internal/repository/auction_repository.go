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

var (
	// ErrAuctionNotFound возвращается, когда аукцион не найден.
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrCategoryNotFound возвращается, когда категория товара не найдена.
	ErrCategoryNotFound = errors.New("category not found")
)

// ExpiryOutcome — результат обработки одного просроченного аукциона.
type ExpiryOutcome struct {
	AuctionID uuid.UUID
	Status    string
	WinnerID  uuid.UUID
	Changed   bool
}

// AuctionRepository отвечает за таблицы auctions, products, product_images
// и categories.
type AuctionRepository struct {
	db *sqlx.DB
}

// NewAuctionRepository создаёт экземпляр репозитория.
func NewAuctionRepository(db *sqlx.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

// CreateWithProduct создаёт товар, его изображения и аукцион одной транзакцией.
func (r *AuctionRepository) CreateWithProduct(ctx context.Context, auction *models.Auction, product *models.Product) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO products (user_id, category_id, title, model)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, product.UserID, product.CategoryID, product.Title, product.Model,
		).Scan(&product.ID, &product.CreatedAt); err != nil {
			return fmt.Errorf("auction repository: create product %w", err)
		}

		for i := range product.Images {
			img := &product.Images[i]
			img.ProductID = product.ID
			if err := tx.QueryRowxContext(ctx, `
				INSERT INTO product_images (product_id, image_path)
				VALUES ($1, $2)
				RETURNING id, created_at
			`, img.ProductID, img.ImagePath).Scan(&img.ID, &img.CreatedAt); err != nil {
				return fmt.Errorf("auction repository: create product image %w", err)
			}
		}

		auction.ProductID = product.ID
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO auctions (
				user_id, product_id, type, duration_unit, duration_value,
				start_bid_amount, is_buy_now_allowed, accepted_amount, start_date,
				status, is_delivery_available, is_returnable, has_warranty
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created_at, updated_at
		`, auction.UserID, auction.ProductID, auction.Type, auction.DurationUnit,
			auction.DurationValue, auction.StartBidAmount, auction.IsBuyNowAllowed,
			auction.AcceptedAmount, auction.StartDate, auction.Status,
			auction.IsDeliveryAvailable, auction.IsReturnable, auction.HasWarranty,
		).Scan(&auction.ID, &auction.CreatedAt, &auction.UpdatedAt); err != nil {
			return fmt.Errorf("auction repository: create auction %w", err)
		}

		return nil
	})
}

// GetByID возвращает аукцион по идентификатору.
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	return common.GetByID[models.Auction](ctx, r.db, "auctions", id, ErrAuctionNotFound)
}

// GetWithProduct возвращает аукцион вместе с товаром и изображениями.
func (r *AuctionRepository) GetWithProduct(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := r.db.GetContext(ctx, &product,
		`SELECT * FROM products WHERE id = $1`, auction.ProductID); err != nil {
		return nil, fmt.Errorf("auction repository: get product %w", err)
	}

	if err := r.db.SelectContext(ctx, &product.Images,
		`SELECT * FROM product_images WHERE product_id = $1 ORDER BY created_at`, product.ID); err != nil {
		return nil, fmt.Errorf("auction repository: get product images %w", err)
	}

	auction.Product = &product
	return auction, nil
}

// GetCategory возвращает категорию товара аукциона с фиксированными суммами залогов.
func (r *AuctionRepository) GetCategory(ctx context.Context, auctionID uuid.UUID) (*models.Category, error) {
	var category models.Category
	query := `
		SELECT c.*
		FROM categories c
		JOIN products p ON p.category_id = c.id
		JOIN auctions a ON a.product_id = p.id
		WHERE a.id = $1
	`
	if err := r.db.GetContext(ctx, &category, query, auctionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("auction repository: get category %w", err)
	}
	return &category, nil
}

// ListByOwner возвращает аукционы продавца.
func (r *AuctionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.db.SelectContext(ctx, &auctions, `
		SELECT * FROM auctions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auction repository: list by owner %w", err)
	}
	return auctions, nil
}

// UpdateDetails обновляет параметры ещё не опубликованного аукциона.
func (r *AuctionRepository) UpdateDetails(ctx context.Context, auction *models.Auction) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE auctions
		SET type = $2, duration_unit = $3, duration_value = $4,
		    start_bid_amount = $5, is_buy_now_allowed = $6, accepted_amount = $7,
		    start_date = $8, status = $9,
		    is_delivery_available = $10, is_returnable = $11, has_warranty = $12,
		    updated_at = NOW()
		WHERE id = $1
	`, auction.ID, auction.Type, auction.DurationUnit, auction.DurationValue,
		auction.StartBidAmount, auction.IsBuyNowAllowed, auction.AcceptedAmount,
		auction.StartDate, auction.Status,
		auction.IsDeliveryAvailable, auction.IsReturnable, auction.HasWarranty)
	if err != nil {
		return fmt.Errorf("auction repository: update details %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

// DeleteDrafted удаляет черновик аукциона.
func (r *AuctionRepository) DeleteDrafted(ctx context.Context, auctionID, ownerID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM auctions
		WHERE id = $1 AND user_id = $2 AND status = $3
	`, auctionID, ownerID, models.AuctionStatusDrafted)
	if err != nil {
		return fmt.Errorf("auction repository: delete drafted %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

// MarkItemSent отмечает, что продавец передал товар в доставку.
func (r *AuctionRepository) MarkItemSent(ctx context.Context, auctionID, ownerID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE auctions SET is_item_sent_for_delivery = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, auctionID, ownerID)
	if err != nil {
		return fmt.Errorf("auction repository: mark item sent %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

// ListExpiredCandidates возвращает идентификаторы аукционов, чей срок истёк,
// но статус ещё не скорректирован обходом.
func (r *AuctionRepository) ListExpiredCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM auctions
		WHERE expiry_date <= $1 AND status IN ($2, $3)
	`, now, models.AuctionStatusActive, models.AuctionStatusInScheduled)
	if err != nil {
		return nil, fmt.Errorf("auction repository: list expired %w", err)
	}
	return ids, nil
}

// ListScheduledToActivate возвращает запланированные аукционы, чья дата старта
// уже наступила.
func (r *AuctionRepository) ListScheduledToActivate(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM auctions
		WHERE status = $1 AND start_date <= $2 AND expiry_date > $2
	`, models.AuctionStatusInScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("auction repository: list scheduled %w", err)
	}
	return ids, nil
}

// ActivateScheduled переводит запланированный аукцион в ACTIVE, когда наступила
// дата старта. Строка блокируется, статус перепроверяется под блокировкой.
func (r *AuctionRepository) ActivateScheduled(ctx context.Context, auctionID uuid.UUID, now time.Time) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		auction, err := lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if auction.Status != models.AuctionStatusInScheduled ||
			auction.StartDate == nil || auction.StartDate.After(now) {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, updated_at = NOW() WHERE id = $1
		`, auctionID, models.AuctionStatusActive)
		if err != nil {
			return fmt.Errorf("auction repository: activate scheduled %w", err)
		}
		return nil
	})
}

// ExpireOne обрабатывает один просроченный аукцион независимой транзакцией.
// Аукцион с участниками переходит в WAITING_FOR_PAYMENT: победитель остаётся в
// PENDING_PAYMENT, остальные участия помечаются LOST. Без участников аукцион
// просто закрывается как EXPIRED. Повторный запуск ничего не меняет: статус
// перепроверяется под блокировкой строки.
func (r *AuctionRepository) ExpireOne(ctx context.Context, auctionID uuid.UUID, now time.Time) (*ExpiryOutcome, error) {
	outcome := &ExpiryOutcome{AuctionID: auctionID}

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		auction, err := lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		// Гонка с параллельным обходом или действием пользователя: статус
		// уже изменился, делать нечего.
		if auction.Status != models.AuctionStatusActive &&
			auction.Status != models.AuctionStatusInScheduled {
			outcome.Status = auction.Status
			return nil
		}
		if auction.ExpiryDate == nil || auction.ExpiryDate.After(now) {
			outcome.Status = auction.Status
			return nil
		}

		latest, err := latestBidTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		newStatus := models.AuctionStatusExpired
		if latest != nil && auction.Status == models.AuctionStatusActive {
			newStatus = models.AuctionStatusWaitingForPayment
			outcome.WinnerID = latest.UserID

			// Участия проигравших закрываются, победитель продолжает ждать оплату.
			if _, err := tx.ExecContext(ctx, `
				UPDATE joined_auctions SET status = $3, updated_at = NOW()
				WHERE auction_id = $1 AND user_id <> $2 AND status = $4
			`, auctionID, latest.UserID, models.JoinedStatusLost,
				models.JoinedStatusPendingPayment); err != nil {
				return fmt.Errorf("auction repository: mark lost %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, end_date = $3, updated_at = NOW()
			WHERE id = $1
		`, auctionID, newStatus, now); err != nil {
			return fmt.Errorf("auction repository: expire %w", err)
		}

		outcome.Status = newStatus
		outcome.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// lockAuction читает строку аукциона с эксклюзивной блокировкой. Через эту
// точку сериализуются ставки, обход по сроку и вебхуки по одному аукциону.
func lockAuction(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := tx.GetContext(ctx, &auction,
		`SELECT * FROM auctions WHERE id = $1 FOR UPDATE`, auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("auction repository: lock auction %w", err)
	}
	return &auction, nil
}

// publishAuctionTx публикует аукцион внутри уже открытой транзакции: ON_TIME
// сразу становится ACTIVE со сроком от текущего момента, SCHEDULED встаёт в
// ожидание даты старта со сроком от неё.
func publishAuctionTx(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID, now time.Time) error {
	auction, err := lockAuction(ctx, tx, auctionID)
	if err != nil {
		return err
	}

	switch auction.Type {
	case models.AuctionTypeScheduled:
		if auction.StartDate == nil {
			return fmt.Errorf("auction repository: scheduled auction %s has no start date", auctionID)
		}
		expiry := auction.StartDate.Add(auction.Length())
		_, err = tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, expiry_date = $3, updated_at = NOW()
			WHERE id = $1
		`, auctionID, models.AuctionStatusInScheduled, expiry)
	default:
		expiry := now.Add(auction.Length())
		_, err = tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, start_date = $3, expiry_date = $4, updated_at = NOW()
			WHERE id = $1
		`, auctionID, models.AuctionStatusActive, now, expiry)
	}
	if err != nil {
		return fmt.Errorf("auction repository: publish %w", err)
	}
	return nil
}

// latestBidTx возвращает последнюю ставку аукциона внутри транзакции.
func latestBidTx(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := tx.GetContext(ctx, &bid, `
		SELECT * FROM bids WHERE auction_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("bid repository: latest bid %w", err)
	}
	return &bid, nil
}
