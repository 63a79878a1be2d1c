package api

import (
	"net/http"

	"dione/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// placeOrder handles POST /place-order
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sessionID, err := h.ensureSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	result, err := h.orders.PlaceOrder(c.Request.Context(), sessionUserID(c), sessionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"success":       true,
		"order_numbers": result.OrderNumbers,
		"eta":           result.ETA,
	}
	if len(result.OrderNumbers) > 0 {
		body["order_number"] = result.OrderNumbers[0]
	}
	c.JSON(http.StatusOK, body)
}

// orderConfirmation handles GET /order-confirmation using the post-checkout
// handoff stored in the session.
func (h *Handler) orderConfirmation(c *gin.Context) {
	sessionID := c.GetString(ctxSessionID)
	orderNumber, eta, err := h.sessions.LatestOrder(c.Request.Context(), sessionID)
	if err != nil || orderNumber == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recent order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_number": orderNumber,
		"eta":          eta,
	})
}

// getOrder handles GET /orders/:id. Buyers only see their own orders.
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, items, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	if order.BuyerID != sessionUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// listPurchases handles GET /my-purchases. Visiting the page runs the lazy
// auto-completion sweep first, so due orders show up already completed.
func (h *Handler) listPurchases(c *gin.Context) {
	buyerID := sessionUserID(c)

	if _, err := h.completion.SweepBuyerOrders(c.Request.Context(), buyerID); err != nil {
		h.logger.Warn("Purchase sweep failed", zap.Int64("buyer_id", buyerID), zap.Error(err))
	}

	purchases, err := h.orders.ListPurchases(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": purchases,
		"count":  len(purchases),
	})
}

// submitReview handles POST /submit-review
func (h *Handler) submitReview(c *gin.Context) {
	var req struct {
		OrderItemID int64    `json:"order_item_id" binding:"required"`
		Rating      int      `json:"rating" binding:"required"`
		Title       string   `json:"title"`
		Body        string   `json:"body"`
		Images      []string `json:"images"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	review, err := h.completion.SubmitReview(c.Request.Context(), sessionUserID(c), req.OrderItemID, req.Rating, req.Title, req.Body, req.Images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "review": review})
}
