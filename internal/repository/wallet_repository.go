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

// ErrSettlementConflict возвращается, когда аукцион к моменту расчёта уже не
// в ожидаемом статусе (например, продавец отменил дважды).
var ErrSettlementConflict = errors.New("auction status changed before settlement")

// WalletCredit — одно зачисление в рамках расчёта.
type WalletCredit struct {
	AccountType string
	UserID      uuid.UUID
	Amount      float64
	Description string
}

// CancellationSettlement — атомарный расчёт при отмене аукциона продавцом:
// зачисления в кошельки, перевод аукциона и всех участий в отменённый статус.
type CancellationSettlement struct {
	AuctionID  uuid.UUID
	FromStatus string
	ToStatus   string
	Credits    []WalletCredit
}

// DeliverySettlement — атомарный расчёт при подтверждении доставки:
// выплата продавцу, комиссия платформы, участие победителя — COMPLETED.
type DeliverySettlement struct {
	AuctionID uuid.UUID
	WinnerID  uuid.UUID
	Credits   []WalletCredit
}

// WalletRepository отвечает за журнал кошельков. Журнал сцеплен по балансу
// и только дополняется; запись идёт под блокировкой строки счёта.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository создаёт экземпляр репозитория.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// appendEntryTx дописывает запись кошелька внутри транзакции. Строка счёта
// создаётся при первой записи и блокируется FOR UPDATE: последовательность
// «прочитать баланс, вычислить новый, дописать» атомарна, две конкурентные
// записи одного счёта не могут сцепиться на один и тот же баланс.
func appendEntryTx(ctx context.Context, tx *sqlx.Tx, accountType string, userID uuid.UUID, input models.WalletEntryInput) (*models.WalletTransaction, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_accounts (account_type, user_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (account_type, user_id) DO NOTHING
	`, accountType, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: ensure account %w", err)
	}

	var account models.WalletAccount
	if err := tx.GetContext(ctx, &account, `
		SELECT * FROM wallet_accounts
		WHERE account_type = $1 AND user_id = $2
		FOR UPDATE
	`, accountType, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: lock account %w", err)
	}

	entry := models.WalletTransaction{
		AccountType:     accountType,
		UserID:          userID,
		Status:          input.Status,
		TransactionType: input.TransactionType,
		Amount:          input.Amount,
		AuctionID:       input.AuctionID,
		Description:     input.Description,
	}
	entry.Balance = account.Balance + entry.SignedAmount()
	if entry.Balance < 0 {
		return nil, fmt.Errorf("wallet repository: balance below zero for account %s/%s", accountType, userID)
	}

	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO wallet_transactions
			(account_type, user_id, status, transaction_type, amount, balance, auction_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, entry.AccountType, entry.UserID, entry.Status, entry.TransactionType,
		entry.Amount, entry.Balance, entry.AuctionID, entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("wallet repository: append entry %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallet_accounts SET balance = $3, updated_at = NOW()
		WHERE account_type = $1 AND user_id = $2
	`, accountType, userID, entry.Balance); err != nil {
		return nil, fmt.Errorf("wallet repository: update account balance %w", err)
	}

	return &entry, nil
}

// creditTx зачисляет средства на счёт в рамках расчёта по аукциону.
func creditTx(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID, credit WalletCredit) error {
	_, err := appendEntryTx(ctx, tx, credit.AccountType, credit.UserID, models.WalletEntryInput{
		Status:          models.WalletStatusDeposit,
		TransactionType: models.WalletTransactionByAuction,
		Amount:          credit.Amount,
		AuctionID:       &auctionID,
		Description:     credit.Description,
	})
	return err
}

// Append дописывает одиночную запись кошелька вне расчётов (например, вывод
// средств).
func (r *WalletRepository) Append(ctx context.Context, accountType string, userID uuid.UUID, input models.WalletEntryInput) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		entry, err = appendEntryTx(ctx, tx, accountType, userID, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyCancellationSettlement применяет расчёт отмены одной транзакцией:
// строка аукциона блокируется, статус перепроверяется, затем пишутся
// зачисления и переводятся статусы аукциона и участий.
func (r *WalletRepository) ApplyCancellationSettlement(ctx context.Context, settlement CancellationSettlement, now time.Time) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		auction, err := lockAuction(ctx, tx, settlement.AuctionID)
		if err != nil {
			return err
		}
		if auction.Status != settlement.FromStatus {
			return ErrSettlementConflict
		}

		for _, credit := range settlement.Credits {
			if err := creditTx(ctx, tx, settlement.AuctionID, credit); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, end_date = $3, updated_at = NOW()
			WHERE id = $1
		`, settlement.AuctionID, settlement.ToStatus, now); err != nil {
			return fmt.Errorf("wallet repository: cancel auction %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE joined_auctions SET status = $2, updated_at = NOW()
			WHERE auction_id = $1 AND status IN ($3, $4, $5)
		`, settlement.AuctionID, settlement.ToStatus,
			models.JoinedStatusPendingPayment, models.JoinedStatusWaitingForDelivery,
			models.JoinedStatusLost); err != nil {
			return fmt.Errorf("wallet repository: cancel joined auctions %w", err)
		}

		return nil
	})
}

// ApplyDeliverySettlement применяет расчёт доставки одной транзакцией:
// зачисления продавцу и платформе, участие победителя — COMPLETED.
func (r *WalletRepository) ApplyDeliverySettlement(ctx context.Context, settlement DeliverySettlement) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := lockAuction(ctx, tx, settlement.AuctionID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE joined_auctions SET status = $3, updated_at = NOW()
			WHERE auction_id = $1 AND user_id = $2 AND status = $4
		`, settlement.AuctionID, settlement.WinnerID,
			models.JoinedStatusCompleted, models.JoinedStatusWaitingForDelivery)
		if err != nil {
			return fmt.Errorf("wallet repository: complete joined auction %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrSettlementConflict
		}

		for _, credit := range settlement.Credits {
			if err := creditTx(ctx, tx, settlement.AuctionID, credit); err != nil {
				return err
			}
		}

		return nil
	})
}

// ListByOwner возвращает записи кошелька владельца от новых к старым.
func (r *WalletRepository) ListByOwner(ctx context.Context, accountType string, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM wallet_transactions
		WHERE account_type = $1 AND user_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, accountType, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list by owner %w", err)
	}
	return entries, nil
}

// LastBalance возвращает текущий баланс владельца, 0 если записей ещё нет.
func (r *WalletRepository) LastBalance(ctx context.Context, accountType string, userID uuid.UUID) (float64, error) {
	var balance float64
	err := r.db.GetContext(ctx, &balance, `
		SELECT balance FROM wallet_accounts
		WHERE account_type = $1 AND user_id = $2
	`, accountType, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("wallet repository: last balance %w", err)
	}
	return balance, nil
}
