package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dione/config"
	"dione/internal/apperr"
	"dione/internal/broker"
	"dione/internal/models"
	"dione/internal/redisclient"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DeliveryETA is the coarse estimate surfaced on the thank-you screen.
const DeliveryETA = "3-5 business days"

// OrderService converts selected cart lines into persisted orders, one per
// seller, inside a single transaction.
type OrderService struct {
	store          *store.Store
	redis          *redisclient.Client
	catalog        *CatalogService
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	st *store.Store,
	redis *redisclient.Client,
	catalog *CatalogService,
	eventPublisher *broker.EventPublisher,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		store:          st,
		redis:          redis,
		catalog:        catalog,
		eventPublisher: eventPublisher,
		business:       cfg.Business,
		logger:         util.GetLogger(),
	}
}

// PlaceOrderRequest carries the checkout form.
type PlaceOrderRequest struct {
	FirstName      string `json:"firstName" binding:"required"`
	LastName       string `json:"lastName" binding:"required"`
	Email          string `json:"email" binding:"required"`
	Address        string `json:"address" binding:"required"`
	Apartment      string `json:"apartment"`
	City           string `json:"city" binding:"required"`
	State          string `json:"state"`
	ZipCode        string `json:"zipCode"`
	Phone          string `json:"phone" binding:"required"`
	Country        string `json:"country"`
	PaymentMethod  string `json:"paymentMethod" binding:"required"`
	CardNumber     string `json:"cardNumber"`
	Expiry         string `json:"expiry"`
	CVC            string `json:"cvc"`
	CardholderName string `json:"cardholderName"`
	GcashNumber    string `json:"gcashNumber"`
}

// PlaceOrderResult reports the created orders.
type PlaceOrderResult struct {
	OrderNumbers []string `json:"order_numbers"`
	ETA          string   `json:"eta"`
}

// shippingFee applies the flat-rate rule: free at or above the threshold,
// free for an empty subtotal, flat fee otherwise.
func shippingFee(subtotal, threshold, fee decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() || subtotal.GreaterThanOrEqual(threshold) {
		return decimal.Zero
	}
	return fee
}

// orderNumberBase formats the per-seller order number stem.
func orderNumberBase(now time.Time, sellerID int64) string {
	return fmt.Sprintf("DIO-%s-%d", now.UTC().Format("20060102150405"), sellerID)
}

// cardLastFour keeps only the last four digits of a card number.
func cardLastFour(cardNumber string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cardNumber)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func validPaymentMethod(method string) bool {
	switch method {
	case models.PaymentMethodCOD, models.PaymentMethodCard, models.PaymentMethodGcash:
		return true
	}
	return false
}

// PlaceOrder atomically materializes orders for the buyer's selected cart
// lines, grouped by seller. Either every order commits or none does; stock
// decrements run under per-row locks so concurrent buyers serialize.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID int64, sessionID string, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	if !validPaymentMethod(req.PaymentMethod) {
		util.OrdersFailedTotal.WithLabelValues("bad_payment_method").Inc()
		return nil, apperr.BadRequest("unsupported payment method")
	}

	selection, err := s.redis.CheckoutSelection(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to read checkout selection", zap.Error(err))
	}
	selected := make(map[int64]bool, len(selection))
	for _, id := range selection {
		selected[id] = true
	}

	owner := store.OwnerUser(buyerID)

	var (
		orderNumbers []string
		placedEvents []*models.OrderPlacedEvent
	)

	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		lines, err := s.store.GetCartLines(ctx, owner)
		if err != nil {
			return apperr.Internal("failed to load cart", err)
		}

		var consume []models.CartLineView
		for _, line := range lines {
			if len(selected) == 0 || selected[line.ID] {
				consume = append(consume, line)
			}
		}
		if len(consume) == 0 {
			util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
			return apperr.BadRequest("cart is empty")
		}

		partitions := make(map[int64][]models.CartLineView)
		for _, line := range consume {
			partitions[line.SellerID] = append(partitions[line.SellerID], line)
		}
		sellerIDs := make([]int64, 0, len(partitions))
		for sellerID := range partitions {
			sellerIDs = append(sellerIDs, sellerID)
		}
		sort.Slice(sellerIDs, func(i, j int) bool { return sellerIDs[i] < sellerIDs[j] })

		now := time.Now()
		for _, sellerID := range sellerIDs {
			partition := partitions[sellerID]
			if err := s.placeSellerOrder(ctx, tx, buyerID, sellerID, partition, now, req, &orderNumbers, &placedEvents); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for range orderNumbers {
		util.OrdersPlacedTotal.Inc()
	}
	touched := make(map[int64]bool)
	for _, event := range placedEvents {
		if perr := s.eventPublisher.PublishOrderPlaced(ctx, event); perr != nil {
			s.logger.Error("Failed to publish OrderPlaced event", zap.Error(perr))
		}
		for _, item := range event.Items {
			touched[item.ProductID] = true
		}
	}

	// Drop the stale cached matrices right away; the worker rebuilds them
	// from the ORDER_PLACED events.
	for productID := range touched {
		if err := s.redis.InvalidateStock(ctx, productID); err != nil {
			s.logger.Warn("Failed to invalidate stock cache",
				zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	if len(orderNumbers) > 0 && sessionID != "" {
		if err := s.redis.ClearCheckoutSelection(ctx, sessionID); err != nil {
			s.logger.Warn("Failed to clear checkout selection", zap.Error(err))
		}
		last := orderNumbers[len(orderNumbers)-1]
		if err := s.redis.SetLatestOrder(ctx, sessionID, last, DeliveryETA); err != nil {
			s.logger.Warn("Failed to record latest order", zap.Error(err))
		}
	}

	s.logger.Info("Order placed",
		zap.Int64("buyer_id", buyerID),
		zap.Strings("order_numbers", orderNumbers))

	return &PlaceOrderResult{OrderNumbers: orderNumbers, ETA: DeliveryETA}, nil
}

func (s *OrderService) placeSellerOrder(
	ctx context.Context,
	tx *sqlx.Tx,
	buyerID, sellerID int64,
	partition []models.CartLineView,
	now time.Time,
	req *PlaceOrderRequest,
	orderNumbers *[]string,
	placedEvents *[]*models.OrderPlacedEvent,
) error {
	// Lock product rows first: prices come from the locked rows, and legacy
	// products have no variant_sizes row to serialize on. Ascending ID order
	// keeps concurrent checkouts sharing products from deadlocking.
	productIDs := lockOrderProductIDs(partition)
	products := make(map[int64]*models.Product, len(productIDs))
	for _, productID := range productIDs {
		product, err := s.store.LockProduct(ctx, tx, productID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("product no longer exists").With("product_id", productID)
		}
		if err != nil {
			return apperr.Internal("failed to lock product", err)
		}
		products[productID] = product
	}

	subtotal := decimal.Zero
	for _, line := range partition {
		price := products[line.ProductID].Price
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = subtotal.Round(2)
	fee := shippingFee(subtotal, s.business.FreeShippingThreshold, s.business.ShippingFee)

	orderNumber := orderNumberBase(now, sellerID)
	for counter := 2; ; counter++ {
		exists, err := s.store.OrderNumberExists(ctx, tx, orderNumber)
		if err != nil {
			return apperr.Internal("failed to check order number", err)
		}
		if !exists {
			break
		}
		orderNumber = fmt.Sprintf("%s-%d", orderNumberBase(now, sellerID), counter)
	}

	paymentStatus := models.PaymentStatusPaid
	if req.PaymentMethod == models.PaymentMethodCOD {
		paymentStatus = models.PaymentStatusPending
	}

	address := models.ShippingAddress{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Address:      req.Address,
		Apartment:    req.Apartment,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Phone:        req.Phone,
		Country:      req.Country,
		DeliveryMeta: &models.DeliveryMeta{},
	}
	// Stock is deducted under row locks right here, so the completion-time
	// reconciliation guard must not run again for this order.
	deductedAt := now.UTC()
	address.InventoryDeducted = true
	address.InventoryDeductedAt = &deductedAt

	billing := map[string]string{"payment_method": req.PaymentMethod}
	if req.PaymentMethod == models.PaymentMethodCard {
		billing["card_last_four"] = cardLastFour(req.CardNumber)
		billing["cardholder_name"] = req.CardholderName
	}
	if req.PaymentMethod == models.PaymentMethodGcash {
		billing["gcash_number"] = req.GcashNumber
	}
	billingJSON, err := json.Marshal(billing)
	if err != nil {
		return apperr.Internal("failed to encode billing", err)
	}

	order := &models.Order{
		OrderNumber:     orderNumber,
		BuyerID:         buyerID,
		SellerID:        sellerID,
		TotalAmount:     subtotal.Add(fee).Round(2),
		ShippingFee:     fee,
		Tax:             decimal.Zero,
		Discount:        decimal.Zero,
		Status:          models.OrderStatusPending,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: address,
		BillingAddress:  billingJSON,
	}
	if err := s.store.InsertOrder(ctx, tx, order); err != nil {
		return apperr.Internal("failed to create order", err)
	}

	event := &models.OrderPlacedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		TotalAmount: order.TotalAmount,
	}

	lineIDs := make([]int64, 0, len(partition))
	touched := make(map[int64]bool)
	for _, line := range partition {
		product := products[line.ProductID]

		if err := s.deductStock(ctx, tx, product, line); err != nil {
			return err
		}
		touched[line.ProductID] = true

		item := &models.OrderItem{
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			SellerID:     sellerID,
			ProductName:  product.Name,
			ProductImage: line.VariantImage,
			VariantName:  line.Color,
			Color:        line.Color,
			Size:         line.Size,
			Quantity:     line.Quantity,
			UnitPrice:    product.Price,
			TotalPrice:   product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
		}
		if err := s.store.InsertOrderItem(ctx, tx, item); err != nil {
			return apperr.Internal("failed to create order item", err)
		}

		event.Items = append(event.Items, models.OrderLineData{
			ProductID: line.ProductID,
			Color:     line.Color,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
		lineIDs = append(lineIDs, line.ID)
	}

	for productID := range touched {
		if err := s.catalog.SyncProductStock(ctx, tx, productID); err != nil {
			return apperr.Internal("failed to sync product stock", err)
		}
	}

	if err := s.store.DeleteCartLines(ctx, tx, lineIDs); err != nil {
		return apperr.Internal("failed to clear cart lines", err)
	}

	*orderNumbers = append(*orderNumbers, orderNumber)
	*placedEvents = append(*placedEvents, event)
	return nil
}

// lockOrderProductIDs returns the distinct product IDs of a partition in
// ascending order, the order every placement acquires its row locks in.
func lockOrderProductIDs(partition []models.CartLineView) []int64 {
	ids := make([]int64, 0, len(partition))
	seen := make(map[int64]bool, len(partition))
	for _, line := range partition {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// deductStock decrements the stock leaf for one cart line under the row
// locks already held. Normalized variant rows are the usual case; legacy
// products fall back to the product-level counter.
func (s *OrderService) deductStock(ctx context.Context, tx *sqlx.Tx, product *models.Product, line models.CartLineView) error {
	vs, err := s.store.LockVariantSize(ctx, tx, line.ProductID, line.Color, line.Size)
	switch {
	case err == nil:
		if vs.StockQuantity < line.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return apperr.Conflict("insufficient stock").
				With("product_id", line.ProductID).
				With("available_stock", vs.StockQuantity)
		}
		return s.store.UpdateVariantSizeStock(ctx, tx, vs.ID, vs.StockQuantity-line.Quantity)

	case errors.Is(err, sql.ErrNoRows):
		legacy, perr := models.ParseLegacyVariants(product.LegacyVariants)
		if perr != nil {
			return apperr.NotFound("variant no longer exists").With("product_id", line.ProductID)
		}
		stock, ok := legacy.Stock(line.Color, line.Size)
		if !ok {
			return apperr.NotFound("variant no longer exists").With("product_id", line.ProductID)
		}
		if stock < line.Quantity || product.TotalStock < line.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			available := stock
			if product.TotalStock < available {
				available = product.TotalStock
			}
			return apperr.Conflict("insufficient stock").
				With("product_id", line.ProductID).
				With("available_stock", available)
		}
		product.TotalStock -= line.Quantity
		return s.store.SetProductStock(ctx, tx, product.ID, product.TotalStock)

	default:
		return apperr.Internal("failed to lock stock", err)
	}
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("failed to load order", err)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, apperr.Internal("failed to load order items", err)
	}
	return order, items, nil
}

// ListPurchases lists a buyer's orders with items, newest first.
func (s *OrderService) ListPurchases(ctx context.Context, buyerID int64) ([]PurchaseView, error) {
	orders, err := s.store.GetOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, apperr.Internal("failed to list purchases", err)
	}

	views := make([]PurchaseView, 0, len(orders))
	for i := range orders {
		items, err := s.store.GetOrderItemsByOrderID(ctx, orders[i].ID)
		if err != nil {
			return nil, apperr.Internal("failed to load order items", err)
		}
		views = append(views, PurchaseView{Order: orders[i], Items: items})
	}
	return views, nil
}

// PurchaseView is an order with its items for the buyer's purchase list.
type PurchaseView struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// ListSellerOrders lists a seller's orders, optionally filtered by status.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID int64, status string) ([]models.Order, error) {
	orders, err := s.store.GetOrdersBySeller(ctx, sellerID, status)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}
	return orders, nil
}
