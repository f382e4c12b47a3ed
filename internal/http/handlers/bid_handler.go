package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/auction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/auction-backend/internal/service"
)

// BidHandler предоставляет HTTP слой для ставок.
type BidHandler struct {
	bids *service.BidService
}

// NewBidHandler создаёт хэндлер.
func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

// Submit обрабатывает POST /api/auctions/:id/bids.
func (h *BidHandler) Submit(c *gin.Context) {
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
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	bid, err := h.bids.SubmitBid(c.Request.Context(), userID, auctionID, req.Amount)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bid": bid})
}

// List обрабатывает GET /api/auctions/:id/bids.
func (h *BidHandler) List(c *gin.Context) {
	auctionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	bids, err := h.bids.ListBids(c.Request.Context(), auctionID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// BidderSummaries обрабатывает GET /api/auctions/:id/bidders.
func (h *BidHandler) BidderSummaries(c *gin.Context) {
	auctionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	summaries, err := h.bids.BidderSummaries(c.Request.Context(), auctionID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bidders": summaries})
}
