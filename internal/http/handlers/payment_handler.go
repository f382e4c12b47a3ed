package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/auction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/auction-backend/internal/service"
	"github.com/ignatzorin/auction-backend/internal/stripe"
)

// PaymentHandler предоставляет HTTP слой для депозитов, выкупа и вебхуков шлюза.
type PaymentHandler struct {
	payments *service.PaymentService
	gateway  *stripe.Client
}

// NewPaymentHandler создаёт хэндлер.
func NewPaymentHandler(payments *service.PaymentService, gateway *stripe.Client) *PaymentHandler {
	return &PaymentHandler{payments: payments, gateway: gateway}
}

// PaySellerDeposit обрабатывает POST /api/payments/auctions/:id/seller-deposit.
func (h *PaymentHandler) PaySellerDeposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	auctionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	result, err := h.payments.PayDepositBySeller(c.Request.Context(), userID, auctionID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PayBidderDeposit обрабатывает POST /api/payments/auctions/:id/bidder-deposit.
func (h *PaymentHandler) PayBidderDeposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	auctionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req struct {
		BidAmount float64 `json:"bid_amount" binding:"required,gt=0"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	result, err := h.payments.PayDepositByBidder(c.Request.Context(), userID, auctionID, req.BidAmount)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PayAuction обрабатывает POST /api/payments/auctions/:id/purchase.
func (h *PaymentHandler) PayAuction(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	auctionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	result, err := h.payments.PayAuctionByBidder(c.Request.Context(), userID, auctionID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// BuyNow обрабатывает POST /api/payments/auctions/:id/buy-now.
func (h *PaymentHandler) BuyNow(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	auctionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	result, err := h.payments.BuyNow(c.Request.Context(), userID, auctionID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Webhook обрабатывает POST /api/payments/webhook. Шлюз повторяет доставку
// до получения 200, поэтому незнакомые события подтверждаются без обработки.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	event, err := h.gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, stripe.ErrUnknownEvent) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), event); err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
