package api

import (
	"net/http"
	"strconv"
	"time"

	"dione/config"
	"dione/internal/apperr"
	"dione/internal/redisclient"
	"dione/internal/service"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog    *service.CatalogService
	cart       *service.CartService
	orders     *service.OrderService
	dispatch   *service.DispatchService
	earnings   *service.EarningsService
	payouts    *service.PayoutService
	completion *service.CompletionService
	sessions   *redisclient.Client
	users      *store.Store
	uploadDir  string
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.CatalogService,
	cart *service.CartService,
	orders *service.OrderService,
	dispatch *service.DispatchService,
	earnings *service.EarningsService,
	payouts *service.PayoutService,
	completion *service.CompletionService,
	sessions *redisclient.Client,
	users *store.Store,
	cfg *config.Config,
) *Handler {
	return &Handler{
		catalog:    catalog,
		cart:       cart,
		orders:     orders,
		dispatch:   dispatch,
		earnings:   earnings,
		payouts:    payouts,
		completion: completion,
		sessions:   sessions,
		users:      users,
		uploadDir:  cfg.Assets.UploadDir,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(h.sessionMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/uploads", h.uploadDir)

	api := router.Group("/api")
	{
		api.POST("/session/login", h.login)
		api.POST("/session/logout", h.logout)
		api.GET("/products", h.listProducts)
		api.GET("/product/:id", h.getProduct)
		api.GET("/product/:id/variant/:color", h.getVariant)
		api.GET("/products/:id/variants", h.listVariants)
		api.GET("/products/:id/colors/:color/sizes", h.listSizes)
	}

	router.POST("/add-to-cart", h.addToCart)
	router.POST("/remove-from-cart", h.removeFromCart)
	router.POST("/update-cart-quantity", h.updateCartQuantity)
	router.GET("/cart", h.getCart)
	router.POST("/set-checkout-items", h.requireAuth(), h.setCheckoutItems)
	router.POST("/place-order", h.requireAuth(), h.placeOrder)
	router.GET("/my-purchases", h.requireAuth(), h.listPurchases)
	router.GET("/orders/:id", h.requireAuth(), h.getOrder)
	router.GET("/order-confirmation", h.requireAuth(), h.orderConfirmation)
	router.POST("/submit-review", h.requireAuth(), h.submitReview)

	seller := router.Group("/seller", h.requireRole("seller", "admin"))
	{
		seller.GET("/api/orders", h.listSellerOrders)
		seller.POST("/api/pickup-requests", h.createPickupRequest)
	}

	rider := router.Group("/rider", h.requireRole("rider"))
	{
		rider.GET("/api/pickups", h.listPickups)
		rider.GET("/api/pickups/:id", h.getPickup)
		rider.POST("/api/pickups/:id/accept", h.acceptPickup)
		rider.POST("/api/pickups/:id/complete", h.completePickup)
		rider.GET("/api/deliveries", h.listDeliveries)
		rider.GET("/api/deliveries/:id", h.getDelivery)
		rider.POST("/api/deliveries/:id/accept", h.acceptDelivery)
		rider.POST("/api/deliveries/:id/reject", h.rejectDelivery)
		rider.POST("/api/deliveries/:id/status", h.updateDeliveryStatus)
		rider.GET("/earnings", h.getEarnings)
		rider.GET("/payouts", h.listPayouts)
		rider.POST("/payouts/request", h.requestPayout)
	}

	admin := router.Group("/admin", h.requireRole("admin"))
	{
		admin.POST("/rider-payouts/:id/status", h.updatePayoutStatus)
	}
}

// respondError maps a service error to the JSON envelope {error, ...context}.
func respondError(c *gin.Context, err error) {
	body := gin.H{"error": apperr.MessageOf(err)}
	for k, v := range apperr.ContextOf(err) {
		body[k] = v
	}
	c.JSON(apperr.HTTPStatus(err), body)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
