package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/auction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/auction-backend/internal/service"
)

// AuctionHandler предоставляет HTTP слой для жизненного цикла аукционов.
type AuctionHandler struct {
	auctions *service.AuctionService
}

// NewAuctionHandler создаёт хэндлер.
func NewAuctionHandler(auctions *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctions: auctions}
}

type auctionRequest struct {
	Type            string     `json:"type" binding:"required"`
	DurationUnit    string     `json:"duration_unit" binding:"required"`
	DurationValue   int        `json:"duration_value" binding:"required"`
	StartBidAmount  float64    `json:"start_bid_amount" binding:"required"`
	IsBuyNowAllowed bool       `json:"is_buy_now_allowed"`
	AcceptedAmount  *float64   `json:"accepted_amount"`
	StartDate       *time.Time `json:"start_date"`

	IsDeliveryAvailable bool `json:"is_delivery_available"`
	IsReturnable        bool `json:"is_returnable"`
	HasWarranty         bool `json:"has_warranty"`

	SaveAsDraft bool `json:"save_as_draft"`

	Product struct {
		CategoryID uuid.UUID `json:"category_id" binding:"required"`
		Title      string    `json:"title" binding:"required"`
		Model      *string   `json:"model"`
		ImagePaths []string  `json:"image_paths"`
	} `json:"product" binding:"required"`
}

func (r *auctionRequest) toInput() service.CreateAuctionInput {
	return service.CreateAuctionInput{
		Type:            r.Type,
		DurationUnit:    r.DurationUnit,
		DurationValue:   r.DurationValue,
		StartBidAmount:  r.StartBidAmount,
		IsBuyNowAllowed: r.IsBuyNowAllowed,
		AcceptedAmount:  r.AcceptedAmount,
		StartDate:       r.StartDate,

		IsDeliveryAvailable: r.IsDeliveryAvailable,
		IsReturnable:        r.IsReturnable,
		HasWarranty:         r.HasWarranty,

		SaveAsDraft: r.SaveAsDraft,
		Product: service.ProductInput{
			CategoryID: r.Product.CategoryID,
			Title:      r.Product.Title,
			Model:      r.Product.Model,
			ImagePaths: r.Product.ImagePaths,
		},
	}
}

// Create обрабатывает POST /api/auctions.
func (h *AuctionHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	var req auctionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	auction, err := h.auctions.Create(c.Request.Context(), userID, req.toInput())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"auction": auction})
}

// Update обрабатывает PUT /api/auctions/:id.
func (h *AuctionHandler) Update(c *gin.Context) {
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

	var req auctionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	auction, err := h.auctions.Update(c.Request.Context(), userID, auctionID, req.toInput())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auction": auction})
}

// Delete обрабатывает DELETE /api/auctions/:id. Удаляются только черновики.
func (h *AuctionHandler) Delete(c *gin.Context) {
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

	if err := h.auctions.Delete(c.Request.Context(), userID, auctionID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Get обрабатывает GET /api/auctions/:id.
func (h *AuctionHandler) Get(c *gin.Context) {
	auctionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	auction, err := h.auctions.Get(c.Request.Context(), auctionID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auction": auction})
}

// ListMine обрабатывает GET /api/auctions/my.
func (h *AuctionHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	limit, offset := common.GetPagination(c)
	auctions, err := h.auctions.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": auctions})
}

// ListParticipations обрабатывает GET /api/auctions/participations.
func (h *AuctionHandler) ListParticipations(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	limit, offset := common.GetPagination(c)
	participations, err := h.auctions.ListParticipations(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participations": participations})
}

// ParticipationStats обрабатывает GET /api/auctions/participations/stats.
func (h *AuctionHandler) ParticipationStats(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	stats, err := h.auctions.ParticipationStats(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Cancel обрабатывает POST /api/auctions/:id/cancel.
func (h *AuctionHandler) Cancel(c *gin.Context) {
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

	if err := h.auctions.Cancel(c.Request.Context(), userID, auctionID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// MarkItemSent обрабатывает POST /api/auctions/:id/item-sent.
func (h *AuctionHandler) MarkItemSent(c *gin.Context) {
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

	if err := h.auctions.MarkItemSent(c.Request.Context(), userID, auctionID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "item_sent"})
}

// ConfirmDelivery обрабатывает POST /api/auctions/:id/confirm-delivery.
func (h *AuctionHandler) ConfirmDelivery(c *gin.Context) {
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

	if err := h.auctions.ConfirmDelivery(c.Request.Context(), userID, auctionID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}
