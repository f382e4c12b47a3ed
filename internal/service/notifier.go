package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/auction-backend/internal/email"
	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
)

// Notifier — realtime-оповещения участников. Вызовы fire-and-forget:
// сбой оповещения никогда не откатывает финансовые изменения.
type Notifier interface {
	BroadcastBid(auctionID uuid.UUID, amount float64, totalBids int)
	NotifyWinner(userID, auctionID uuid.UUID)
}

// Mailer отправляет письма через внешний релей.
type Mailer interface {
	Send(ctx context.Context, address, category string, body email.Body) error
}

// maskInternal прячет инфраструктурную ошибку за общим сообщением для
// клиента, сохраняя причину в цепочке для логов.
func maskInternal(err error) error {
	return apperror.Wrap(err, apperror.ErrCodeInternal, apperror.ErrOperationFailed.Message)
}
