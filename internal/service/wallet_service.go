package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/auction-backend/internal/models"
)

// WalletStore описывает зависимости WalletService от журнала кошельков.
type WalletStore interface {
	Append(ctx context.Context, accountType string, userID uuid.UUID, input models.WalletEntryInput) (*models.WalletTransaction, error)
	ListByOwner(ctx context.Context, accountType string, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
	LastBalance(ctx context.Context, accountType string, userID uuid.UUID) (float64, error)
}

// WalletService отдаёт пользователю его журнал и баланс и проводит вывод
// средств. Зачисления делают только расчёты отмены и доставки.
type WalletService struct {
	wallet WalletStore
}

// NewWalletService создаёт сервис кошелька.
func NewWalletService(wallet WalletStore) *WalletService {
	return &WalletService{wallet: wallet}
}

// Balance возвращает текущий баланс пользователя.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	return s.wallet.LastBalance(ctx, models.WalletAccountUser, userID)
}

// ListTransactions возвращает журнал кошелька пользователя.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.wallet.ListByOwner(ctx, models.WalletAccountUser, userID, limit, offset)
}

// Withdraw списывает средства с кошелька пользователя. Недостаток средств
// отклоняется на уровне журнала: баланс не может уйти в минус.
func (s *WalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount float64) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("wallet service: amount must be positive")
	}
	entry, err := s.wallet.Append(ctx, models.WalletAccountUser, userID, models.WalletEntryInput{
		Status:          models.WalletStatusWithdraw,
		TransactionType: models.WalletTransactionByWithdraw,
		Amount:          amount,
		Description:     "Withdrawal request",
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
