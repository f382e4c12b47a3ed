package logger

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Log — глобальный логгер движка. До вызова Init пишет с настройками по
// умолчанию, поэтому фоновые задачи никогда не остаются без логгера.
var Log = logrus.New()

// Init настраивает уровень и JSON-формат. Уровень с ошибкой разбора
// молча заменяется на info.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter переключает логгер на текстовый формат (development).
func SetTextFormatter() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// WithAuction возвращает entry с идентификатором аукциона.
func WithAuction(auctionID uuid.UUID) *logrus.Entry {
	return Log.WithField("auction_id", auctionID)
}

// WithIntent возвращает entry с идентификатором интента шлюза.
func WithIntent(intentID string) *logrus.Entry {
	return Log.WithField("payment_intent_id", intentID)
}
