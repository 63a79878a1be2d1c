package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// updatePayoutStatus handles POST /admin/rider-payouts/:id/status (form body)
func (h *Handler) updatePayoutStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	status := c.PostForm("status")
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	req, err := h.payouts.UpdatePayout(c.Request.Context(), sessionUserID(c), id,
		status, c.PostForm("admin_notes"), c.PostForm("reference_code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payout": req})
}

// listSellerOrders handles GET /seller/api/orders?status=
func (h *Handler) listSellerOrders(c *gin.Context) {
	orders, err := h.orders.ListSellerOrders(c.Request.Context(), sessionUserID(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// createPickupRequest handles POST /seller/api/pickup-requests
func (h *Handler) createPickupRequest(c *gin.Context) {
	var req struct {
		OrderIDs     []int64 `json:"order_ids" binding:"required"`
		Address      string  `json:"pickup_address" binding:"required"`
		ContactName  string  `json:"pickup_contact_name" binding:"required"`
		ContactPhone string  `json:"pickup_contact_phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	pr, err := h.dispatch.CreatePickupRequest(c.Request.Context(), sessionUserID(c),
		req.OrderIDs, req.Address, req.ContactName, req.ContactPhone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "pickup_request": pr})
}
