package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Категории писем для шаблонизатора на стороне релея.
const (
	CategoryAuction = "AUCTION"
	CategoryPayment = "PAYMENT"
)

// Body — содержимое письма, которое релей подставляет в шаблон.
type Body struct {
	Subject     string `json:"subject"`
	Title       string `json:"title"`
	ProductName string `json:"product_name,omitempty"`
	Message     string `json:"message"`
	ButtonText  string `json:"button_text,omitempty"`
	ButtonURL   string `json:"button_url,omitempty"`
}

// Client отправляет письма через HTTP-релей. Отправка — fire-and-forget:
// ошибки релея логируются вызывающей стороной и не влияют на бизнес-статусы.
type Client struct {
	relayURL   string
	apiKey     string
	frontURL   string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента. frontURL подставляется
// в относительные ссылки кнопок.
func NewClient(relayURL, apiKey, frontURL string) *Client {
	return &Client{
		relayURL: relayURL,
		apiKey:   apiKey,
		frontURL: strings.TrimRight(frontURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Send отправляет письмо получателю.
func (c *Client) Send(ctx context.Context, address, category string, body Body) error {
	if c.relayURL == "" {
		return fmt.Errorf("email: relay URL не задан")
	}

	if strings.HasPrefix(body.ButtonURL, "/") {
		body.ButtonURL = c.frontURL + body.ButtonURL
	}

	payload, err := json.Marshal(map[string]any{
		"to":       address,
		"category": category,
		"body":     body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email: код ответа %d", resp.StatusCode)
	}
	return nil
}
