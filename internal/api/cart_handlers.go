package api

import (
	"net/http"

	"dione/internal/service"

	"github.com/gin-gonic/gin"
)

// addToCart handles POST /add-to-cart. Anonymous callers get a session
// provisioned on the fly.
func (h *Handler) addToCart(c *gin.Context) {
	var req service.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	owner, err := h.cartOwner(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	line, err := h.cart.Add(c.Request.Context(), owner, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	count, err := h.cart.Count(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"cart_count": count,
		"item":       line,
	})
}

// removeFromCart handles POST /remove-from-cart
func (h *Handler) removeFromCart(c *gin.Context) {
	var req struct {
		ItemID int64 `json:"item_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	owner, err := h.cartOwner(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	if err := h.cart.Remove(c.Request.Context(), owner, req.ItemID); err != nil {
		respondError(c, err)
		return
	}
	h.respondCartTotals(c, gin.H{"success": true})
}

// updateCartQuantity handles POST /update-cart-quantity. The quantity is
// clamped, never rejected.
func (h *Handler) updateCartQuantity(c *gin.Context) {
	var req struct {
		ItemID   int64 `json:"item_id" binding:"required"`
		Quantity int   `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	owner, err := h.cartOwner(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	quantity, err := h.cart.UpdateQuantity(c.Request.Context(), owner, req.ItemID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCartTotals(c, gin.H{"success": true, "quantity": quantity})
}

// getCart handles GET /cart
func (h *Handler) getCart(c *gin.Context) {
	owner, err := h.cartOwner(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	lines, err := h.cart.List(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	subtotal, err := h.cart.Subtotal(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      lines,
		"cart_count": len(lines),
		"subtotal":   subtotal,
	})
}

// setCheckoutItems handles POST /set-checkout-items
func (h *Handler) setCheckoutItems(c *gin.Context) {
	var req struct {
		SelectedItemIDs []int64 `json:"selected_item_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sessionID, err := h.ensureSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	if err := h.sessions.SetCheckoutSelection(c.Request.Context(), sessionID, req.SelectedItemIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save selection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "selected": len(req.SelectedItemIDs)})
}

func (h *Handler) respondCartTotals(c *gin.Context, body gin.H) {
	owner, err := h.cartOwner(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}
	count, err := h.cart.Count(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	subtotal, err := h.cart.Subtotal(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	body["cart_count"] = count
	body["subtotal"] = subtotal
	c.JSON(http.StatusOK, body)
}
