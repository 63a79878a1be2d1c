package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dione/internal/apperr"
	"dione/internal/broker"
	"dione/internal/models"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// CompletionService advances delivered orders to completed and runs the
// one-shot inventory reconciliation guard. The sweep is lazy: it runs when
// the buyer lists their purchases, and row locks plus the guard flag keep it
// correct when two requests race.
type CompletionService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	reviewWindow   time.Duration
	logger         *zap.Logger
}

// NewCompletionService creates a new completion service
func NewCompletionService(st *store.Store, eventPublisher *broker.EventPublisher, reviewWindow time.Duration) *CompletionService {
	return &CompletionService{
		store:          st,
		eventPublisher: eventPublisher,
		reviewWindow:   reviewWindow,
		logger:         util.GetLogger(),
	}
}

// ReviewWindowElapsed reports whether the post-delivery review window has
// passed for an order delivered at deliveredAt.
func (s *CompletionService) ReviewWindowElapsed(deliveredAt, now time.Time) bool {
	return !deliveredAt.Add(s.reviewWindow).After(now)
}

// SweepBuyerOrders completes every delivered order of the buyer whose items
// are all reviewed or whose review window has elapsed. Returns the IDs of
// orders it completed.
func (s *CompletionService) SweepBuyerOrders(ctx context.Context, buyerID int64) ([]int64, error) {
	ctx, span := util.StartSpan(ctx, "CompletionService.SweepBuyerOrders")
	defer span.End()

	orders, err := s.store.GetOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}

	var completed []int64
	now := time.Now().UTC()
	for i := range orders {
		order := &orders[i]
		if order.Status != models.OrderStatusDelivered {
			continue
		}

		// Cheap pre-check outside the transaction; the conditions are
		// re-verified under the row lock before anything moves.
		windowElapsed := order.DeliveredAt != nil && s.ReviewWindowElapsed(*order.DeliveredAt, now)
		if !windowElapsed {
			unreviewed, err := s.store.UnreviewedItemCount(ctx, order.ID)
			if err != nil || unreviewed > 0 {
				continue
			}
		}

		done, err := s.completeIfDue(ctx, order.ID, now)
		if err != nil {
			s.logger.Error("Failed to sweep order",
				zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		if done {
			completed = append(completed, order.ID)
		}
	}
	return completed, nil
}

// completeIfDue re-checks the completion conditions under a row lock and, if
// they hold, advances the order and runs the deduction guard.
func (s *CompletionService) completeIfDue(ctx context.Context, orderID int64, now time.Time) (bool, error) {
	var event *models.OrderCompletedEvent
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusDelivered {
			return errNotDue
		}

		items, err := s.store.GetOrderItemsTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		allReviewed := true
		for _, item := range items {
			if !item.IsReviewed {
				allReviewed = false
				break
			}
		}
		windowElapsed := order.DeliveredAt != nil && s.ReviewWindowElapsed(*order.DeliveredAt, now)
		if !allReviewed && !windowElapsed {
			return errNotDue
		}

		productIDs, err := s.runDeductionGuard(ctx, tx, order, items, now)
		if err != nil {
			return err
		}

		order.Status = models.OrderStatusCompleted
		if err := s.store.UpdateOrderDispatch(ctx, tx, order); err != nil {
			return err
		}

		event = &models.OrderCompletedEvent{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			ProductIDs: productIDs,
		}
		return nil
	})
	if errors.Is(err, errNotDue) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	util.OrdersAutoCompletedTotal.Inc()
	if perr := s.eventPublisher.PublishOrderCompleted(ctx, event); perr != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(perr))
	}
	return true, nil
}

var errNotDue = errors.New("order not due for completion")

// runDeductionGuard reconciles stock for orders written by older code paths
// that never deducted at placement. The _inventory_deducted flag makes it a
// one-shot: orders placed here carry the flag already and skip straight
// through.
func (s *CompletionService) runDeductionGuard(ctx context.Context, tx *sqlx.Tx, order *models.Order, items []models.OrderItem, now time.Time) ([]int64, error) {
	productIDs := make([]int64, 0, len(items))
	seen := make(map[int64]bool)
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			productIDs = append(productIDs, item.ProductID)
		}
	}

	if order.ShippingAddress.InventoryDeducted {
		return productIDs, nil
	}

	touched := make(map[int64]bool)
	for _, item := range items {
		product, err := s.store.LockProduct(ctx, tx, item.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}

		vs, err := s.store.LockVariantSize(ctx, tx, item.ProductID, item.Color, item.Size)
		switch {
		case err == nil:
			stock := vs.StockQuantity - item.Quantity
			if stock < 0 {
				stock = 0
			}
			if err := s.store.UpdateVariantSizeStock(ctx, tx, vs.ID, stock); err != nil {
				return nil, err
			}
			touched[item.ProductID] = true
		case errors.Is(err, sql.ErrNoRows):
			total := product.TotalStock - item.Quantity
			if total < 0 {
				total = 0
			}
			if err := s.store.SetProductStock(ctx, tx, item.ProductID, total); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	for productID := range touched {
		if err := s.store.SyncProductStock(ctx, tx, productID); err != nil {
			return nil, err
		}
	}

	order.ShippingAddress.InventoryDeducted = true
	order.ShippingAddress.InventoryDeductedAt = &now
	return productIDs, nil
}

// SubmitReview records a buyer's review for one of their delivered order
// items and marks the item reviewed. One review per item.
func (s *CompletionService) SubmitReview(ctx context.Context, buyerID, orderItemID int64, rating int, title, body string, images []string) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "CompletionService.SubmitReview")
	defer span.End()

	if rating < 1 || rating > 5 {
		return nil, apperr.BadRequest("rating must be between 1 and 5")
	}

	item, err := s.store.GetOrderItemByID(ctx, orderItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order item not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load order item", err)
	}

	order, err := s.store.GetOrderByID(ctx, item.OrderID)
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	if order.BuyerID != buyerID {
		return nil, apperr.Forbidden("order item belongs to another buyer")
	}
	switch order.Status {
	case models.OrderStatusDelivered, models.OrderStatusCompleted:
	default:
		return nil, apperr.Conflict("order is not delivered yet")
	}

	exists, err := s.store.ReviewExists(ctx, orderItemID)
	if err != nil {
		return nil, apperr.Internal("failed to check existing review", err)
	}
	if exists || item.IsReviewed {
		return nil, apperr.Conflict("item already reviewed")
	}

	review := &models.Review{
		OrderItemID: orderItemID,
		ProductID:   item.ProductID,
		BuyerID:     buyerID,
		Rating:      rating,
		Title:       title,
		Body:        body,
		Images:      pq.StringArray(images),
	}
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.store.InsertReview(ctx, tx, review); err != nil {
			return err
		}
		return s.store.MarkOrderItemReviewed(ctx, tx, orderItemID)
	})
	if err != nil {
		return nil, apperr.Internal("failed to save review", err)
	}
	return review, nil
}
