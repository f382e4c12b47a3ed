package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper — операции периодической коррекции статусов аукционов.
type Sweeper interface {
	ExpireDueAuctions(ctx context.Context, now time.Time) (int, error)
	ActivateScheduledAuctions(ctx context.Context, now time.Time) (int, error)
	ExpireWinnerPayments(ctx context.Context, now time.Time) (int, error)
}

// Scheduler запускает обход по фиксированному интервалу: активация
// запланированных аукционов, затем закрытие просроченных.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	log      *logrus.Logger
}

// New создаёт планировщик.
func New(sweeper Sweeper, interval time.Duration, log *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{sweeper: sweeper, interval: interval, log: log}
}

// Run крутит цикл обхода до отмены контекста. Первый проход выполняется
// сразу: после рестарта просроченные аукционы не должны ждать интервал.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler: остановлен")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	now := time.Now()

	activated, err := s.sweeper.ActivateScheduledAuctions(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("scheduler: активация запланированных аукционов")
	}
	expired, err := s.sweeper.ExpireDueAuctions(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("scheduler: закрытие просроченных аукционов")
	}
	overdue, err := s.sweeper.ExpireWinnerPayments(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("scheduler: закрытие просроченных оплат победителей")
	}

	if activated > 0 || expired > 0 || overdue > 0 {
		s.log.WithFields(logrus.Fields{
			"activated":        activated,
			"expired":          expired,
			"payments_expired": overdue,
		}).Info("scheduler: проход завершён")
	}
}
