package store

import (
	"context"

	"dione/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertOrder creates a new order inside tx.
func (s *Store) InsertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders
			(order_number, buyer_id, seller_id, total_amount, shipping_fee, tax, discount,
			 status, payment_status, payment_method, shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	return tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.BuyerID, order.SellerID,
		order.TotalAmount, order.ShippingFee, order.Tax, order.Discount,
		order.Status, order.PaymentStatus, order.PaymentMethod,
		order.ShippingAddress, order.BillingAddress,
	).Scan(&order.ID, &order.CreatedAt)
}

// OrderNumberExists checks an order number inside tx; placement retries with
// a counter suffix on collision.
func (s *Store) OrderNumberExists(ctx context.Context, tx *sqlx.Tx, orderNumber string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)", orderNumber)
	return exists, err
}

// InsertOrderItem creates a new order item inside tx.
func (s *Store) InsertOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items
			(order_id, product_id, seller_id, product_name, product_image, variant_name,
			 color, size, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	return tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.SellerID,
		item.ProductName, item.ProductImage, item.VariantName,
		item.Color, item.Size, item.Quantity, item.UnitPrice, item.TotalPrice)
}

// GetOrderByID retrieves an order by ID.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder locks an order row inside tx for a dispatch or completion write.
func (s *Store) LockOrder(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByBuyer lists a buyer's orders newest first.
func (s *Store) GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return orders, err
}

// GetOrdersBySeller lists a seller's orders, optionally filtered by status.
func (s *Store) GetOrdersBySeller(ctx context.Context, sellerID int64, status string) ([]models.Order, error) {
	var orders []models.Order
	if status == "" {
		err := s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE seller_id = $1 ORDER BY created_at DESC", sellerID)
		return orders, err
	}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE seller_id = $1 AND status = $2 ORDER BY created_at DESC",
		sellerID, status)
	return orders, err
}

// UpdateOrderDispatch persists the dispatch-mutable columns: status, the
// shipping timestamps and the shipping_address JSON with its embedded meta.
func (s *Store) UpdateOrderDispatch(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			status = $1,
			payment_status = $2,
			shipping_address = $3,
			shipped_at = $4,
			delivered_at = $5
		WHERE id = $6`,
		order.Status, order.PaymentStatus, order.ShippingAddress,
		order.ShippedAt, order.DeliveredAt, order.ID)
	return err
}

// GetOrderItemsByOrderID retrieves all items for an order.
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrderItemsTx retrieves an order's items inside tx.
func (s *Store) GetOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrderItemByID retrieves one order item.
func (s *Store) GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM order_items WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UnreviewedItemCount counts an order's items still awaiting a review.
func (s *Store) UnreviewedItemCount(ctx context.Context, orderID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM order_items WHERE order_id = $1 AND is_reviewed = FALSE", orderID)
	return count, err
}

// MarkOrderItemReviewed flips the review flag inside tx.
func (s *Store) MarkOrderItemReviewed(ctx context.Context, tx *sqlx.Tx, itemID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE order_items SET is_reviewed = TRUE WHERE id = $1", itemID)
	return err
}

// InsertReview stores a buyer review inside tx. The unique index on
// order_item_id enforces at most one review per item.
func (s *Store) InsertReview(ctx context.Context, tx *sqlx.Tx, review *models.Review) error {
	query := `
		INSERT INTO reviews (order_item_id, product_id, buyer_id, rating, title, body, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return tx.QueryRowxContext(ctx, query,
		review.OrderItemID, review.ProductID, review.BuyerID,
		review.Rating, review.Title, review.Body, review.Images,
	).Scan(&review.ID, &review.CreatedAt)
}

// ReviewExists reports whether an order item already has a review.
func (s *Store) ReviewExists(ctx context.Context, orderItemID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM reviews WHERE order_item_id = $1)", orderItemID)
	return exists, err
}
