package goroutine

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/auction-backend/internal/logger"
)

// SafeGo запускает фоновую задачу с перехватом panic. Рассылки ставок и
// письма идут fire-and-forget: сбой одного получателя не должен ронять
// процесс и не влияет на бизнес-статусы.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithFields(logrus.Fields{
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("goroutine: перехвачен panic фоновой задачи")
			}
		}()
		fn()
	}()
}
