package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignatzorin/auction-backend/internal/models"
)

var (
	// ErrInvalidSignature возвращается при неверной подписи вебхука.
	ErrInvalidSignature = errors.New("stripe: invalid webhook signature")
	// ErrUnknownEvent возвращается для событий, которые движок не обрабатывает.
	ErrUnknownEvent = errors.New("stripe: unknown event type")
)

// signatureTolerance — допустимый возраст подписанного вебхука.
const signatureTolerance = 5 * time.Minute

// WebhookEvent — разобранное событие шлюза, сведённое к статусу платежа.
type WebhookEvent struct {
	ID            string
	Type          string
	IntentID      string
	PaymentStatus string
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object Intent `json:"object"`
	} `json:"data"`
}

// eventStatuses сводит типы событий шлюза к статусам платежа движка.
var eventStatuses = map[string]string{
	"payment_intent.amount_capturable_updated": models.PaymentStatusHold,
	"payment_intent.succeeded":                 models.PaymentStatusSuccess,
	"payment_intent.canceled":                  models.PaymentStatusCancelled,
	"payment_intent.payment_failed":            models.PaymentStatusFailed,
}

// verifySignature проверяет подпись вебхука по схеме шлюза: заголовок несёт
// метку времени и подпись HMAC-SHA256 от строки "t.body".
func verifySignature(payload []byte, header, secret string, now time.Time) error {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}
	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ParseWebhook проверяет подпись и разбирает тело вебхука. Для событий вне
// таблицы диспетчеризации возвращает ErrUnknownEvent — обработчик отвечает
// шлюзу 200 и игнорирует их.
func (c *Client) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	if err := verifySignature(payload, signatureHeader, c.webhookSecret, time.Now()); err != nil {
		return nil, err
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("stripe: parse webhook %w", err)
	}

	status, ok := eventStatuses[envelope.Type]
	if !ok {
		return nil, ErrUnknownEvent
	}

	return &WebhookEvent{
		ID:            envelope.ID,
		Type:          envelope.Type,
		IntentID:      envelope.Data.Object.ID,
		PaymentStatus: status,
	}, nil
}
