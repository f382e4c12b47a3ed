package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Статусы интента на стороне шлюза.
const (
	IntentStatusRequiresPayment = "requires_payment_method"
	IntentStatusRequiresCapture = "requires_capture"
	IntentStatusSucceeded       = "succeeded"
	IntentStatusCanceled        = "canceled"
)

// Intent — платёжный интент шлюза в объёме, который нужен движку.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

// IsSettled сообщает, завершён ли интент на стороне шлюза.
func (i *Intent) IsSettled() bool {
	return i.Status == IntentStatusSucceeded || i.Status == IntentStatusCanceled
}

// Customer — клиент шлюза.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client реализует клиента платёжного шлюза поверх его form-encoded HTTP API.
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	currency      string
	httpClient    *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, secretKey, webhookSecret, currency string) *Client {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	if currency == "" {
		currency = "AED"
	}

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		currency:      currency,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// minorUnits переводит сумму в минимальные единицы валюты шлюза.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// do выполняет запрос к шлюзу и декодирует ответ в out.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if c.secretKey == "" {
		return fmt.Errorf("stripe: секретный ключ не задан")
	}

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("stripe: код ответа %d: %s %s",
			resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

// CreateCustomer создаёт клиента шлюза для пользователя.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	if name != "" {
		form.Set("name", name)
	}

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/v1/customers", form, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateDepositIntent создаёт интент с ручным капчером: средства
// авторизуются и удерживаются до явного capture или cancel. bidAmount
// передаётся для залога участника и возвращается вебхуком в метаданных.
func (c *Client) CreateDepositIntent(ctx context.Context, customerID string, amount float64, auctionID uuid.UUID, paymentType string, bidAmount *float64) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(minorUnits(amount), 10))
	form.Set("currency", strings.ToLower(c.currency))
	form.Set("customer", customerID)
	form.Set("capture_method", "manual")
	form.Set("metadata[auction_id]", auctionID.String())
	form.Set("metadata[payment_type]", paymentType)
	if bidAmount != nil {
		form.Set("metadata[bid_amount]", strconv.FormatFloat(*bidAmount, 'f', 2, 64))
	}

	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// CreatePurchaseIntent создаёт обычный интент с немедленным списанием —
// для полной оплаты победителем или прямой покупки.
func (c *Client) CreatePurchaseIntent(ctx context.Context, customerID string, amount float64, auctionID uuid.UUID, paymentType string) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(minorUnits(amount), 10))
	form.Set("currency", strings.ToLower(c.currency))
	form.Set("customer", customerID)
	form.Set("metadata[auction_id]", auctionID.String())
	form.Set("metadata[payment_type]", paymentType)

	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// RetrieveIntent возвращает текущее состояние интента.
func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// CaptureIntent списывает удержанные средства.
func (c *Client) CaptureIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+intentID+"/capture", url.Values{}, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// CancelIntent отпускает удержанные средства.
func (c *Client) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+intentID+"/cancel", url.Values{}, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
