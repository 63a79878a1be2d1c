package api

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// saveProofPhoto stores an uploaded proof image under a fresh uuid name and
// returns its public URL path.
func (h *Handler) saveProofPhoto(c *gin.Context, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	name := uuid.New().String() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		return "", err
	}
	return "/uploads/" + name, nil
}

// listPickups handles GET /rider/api/pickups?scope=
func (h *Handler) listPickups(c *gin.Context) {
	scope := c.DefaultQuery("scope", "available")
	pickups, err := h.dispatch.ListPickups(c.Request.Context(), sessionUserID(c), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pickups": pickups,
		"count":   len(pickups),
	})
}

// getPickup handles GET /rider/api/pickups/:id
func (h *Handler) getPickup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	pr, items, err := h.dispatch.PickupDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pickup": pr, "items": items})
}

// getDelivery handles GET /rider/api/deliveries/:id
func (h *Handler) getDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.dispatch.DeliveryDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": item})
}

// acceptPickup handles POST /rider/api/pickups/:id/accept
func (h *Handler) acceptPickup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	pr, err := h.dispatch.AcceptPickup(c.Request.Context(), sessionUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pickup": pr})
}

// completePickup handles POST /rider/api/pickups/:id/complete. Accepts
// multipart (with optional proof photo) or plain JSON.
func (h *Handler) completePickup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var proofURL, notes string
	markComplete := true

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if file, err := c.FormFile("photo"); err == nil {
			url, err := h.saveProofPhoto(c, file)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
				return
			}
			proofURL = url
		}
		notes = c.PostForm("notes")
		if c.PostForm("mark_complete") == "false" {
			markComplete = false
		}
	} else {
		var req struct {
			ProofURL     string `json:"proof_url"`
			Notes        string `json:"notes"`
			MarkComplete *bool  `json:"mark_complete"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			proofURL = req.ProofURL
			notes = req.Notes
			if req.MarkComplete != nil {
				markComplete = *req.MarkComplete
			}
		}
	}

	pr, err := h.dispatch.CompletePickup(c.Request.Context(), sessionUserID(c), id, proofURL, notes, markComplete)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pickup": pr})
}

// listDeliveries handles GET /rider/api/deliveries?scope=
func (h *Handler) listDeliveries(c *gin.Context) {
	scope := c.DefaultQuery("scope", "available")
	deliveries, err := h.dispatch.ListDeliveries(c.Request.Context(), sessionUserID(c), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// acceptDelivery handles POST /rider/api/deliveries/:id/accept
func (h *Handler) acceptDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.dispatch.AcceptDelivery(c.Request.Context(), sessionUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "delivery": item})
}

// rejectDelivery handles POST /rider/api/deliveries/:id/reject
func (h *Handler) rejectDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	item, err := h.dispatch.RejectDelivery(c.Request.Context(), sessionUserID(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "delivery": item})
}

// updateDeliveryStatus handles POST /rider/api/deliveries/:id/status.
// status=to_receive_today comes as JSON; status=delivered comes as multipart
// with the proof photo and the payment confirmation.
func (h *Handler) updateDeliveryStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	riderID := sessionUserID(c)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if c.PostForm("status") != "delivered" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported status"})
			return
		}
		file, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof photo is required"})
			return
		}
		proofURL, err := h.saveProofPhoto(c, file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
			return
		}
		paymentReceived := c.PostForm("payment_received") == "true"

		item, err := h.dispatch.CompleteDelivery(c.Request.Context(), riderID, id, proofURL, paymentReceived)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "delivery": item})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Status != "to_receive_today" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported status"})
		return
	}

	item, err := h.dispatch.MarkToReceiveToday(c.Request.Context(), riderID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "delivery": item})
}

// getEarnings handles GET /rider/earnings
func (h *Handler) getEarnings(c *gin.Context) {
	view, err := h.earnings.Earnings(c.Request.Context(), sessionUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// listPayouts handles GET /rider/payouts
func (h *Handler) listPayouts(c *gin.Context) {
	payouts, err := h.payouts.ListPayouts(c.Request.Context(), sessionUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payouts": payouts,
		"count":   len(payouts),
	})
}

// requestPayout handles POST /rider/payouts/request (form body)
func (h *Handler) requestPayout(c *gin.Context) {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("amount")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	req, err := h.payouts.RequestPayout(c.Request.Context(), sessionUserID(c),
		amount, c.PostForm("gcash_name"), c.PostForm("gcash_number"), c.PostForm("notes"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "payout": req})
}
