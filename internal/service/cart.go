package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"dione/config"
	"dione/internal/apperr"
	"dione/internal/models"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService owns the mutable per-identity basket. It validates stock at
// add time only; placement re-validates under row locks.
type CartService struct {
	store   *store.Store
	catalog *CatalogService
	maxQty  int
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(st *store.Store, catalog *CatalogService, cfg *config.Config) *CartService {
	return &CartService{
		store:   st,
		catalog: catalog,
		maxQty:  cfg.Business.MaxCartQuantity,
		logger:  util.GetLogger(),
	}
}

// AddRequest is the add-to-cart input.
type AddRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Color     string `json:"color" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	VariantID int64  `json:"variant_id,omitempty"`
	SizeID    int64  `json:"size_id,omitempty"`
	SKU       string `json:"sku,omitempty"`
}

// clampQuantity bounds q to [1, max].
func clampQuantity(q, max int) int {
	if q < 1 {
		return 1
	}
	if q > max {
		return max
	}
	return q
}

// Add resolves the variant, validates stock and the per-line cap, and
// upserts the unique (owner, product, color, size) row. On conflict the
// quantities merge; the whole call fails when the merged quantity would
// exceed available stock.
func (s *CartService) Add(ctx context.Context, owner store.CartOwner, req *AddRequest) (*models.CartLine, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	if req.Quantity < 1 {
		util.CartAddsRejectedTotal.WithLabelValues("bad_quantity").Inc()
		return nil, apperr.BadRequest("quantity must be at least 1")
	}
	if req.Quantity > s.maxQty {
		util.CartAddsRejectedTotal.WithLabelValues("cap_exceeded").Inc()
		return nil, apperr.Conflict("quantity exceeds the per-item limit").
			With("max_quantity", s.maxQty)
	}

	res, err := s.catalog.Resolve(ctx, req.ProductID, req.Color, req.Size)
	if err != nil {
		util.CartAddsRejectedTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if req.Quantity > res.AvailableStock {
		util.CartAddsRejectedTotal.WithLabelValues("out_of_stock").Inc()
		return nil, apperr.Conflict("not enough stock").
			With("available_stock", res.AvailableStock)
	}

	var line *models.CartLine
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.store.LockCartLineByVariant(ctx, tx, owner, req.ProductID, req.Color, req.Size)
		switch {
		case err == nil:
			merged := existing.Quantity + req.Quantity
			if merged > s.maxQty {
				util.CartAddsRejectedTotal.WithLabelValues("cap_exceeded").Inc()
				return apperr.Conflict("cart limit reached for this item").
					With("max_quantity", s.maxQty).
					With("current_in_cart", existing.Quantity)
			}
			if merged > res.AvailableStock {
				util.CartAddsRejectedTotal.WithLabelValues("out_of_stock").Inc()
				return apperr.Conflict("not enough stock").
					With("available_stock", res.AvailableStock).
					With("current_in_cart", existing.Quantity)
			}
			if err := s.store.UpdateCartLineQuantity(ctx, tx, existing.ID, merged); err != nil {
				return apperr.Internal("failed to update cart line", err)
			}
			existing.Quantity = merged
			line = existing
			return nil

		case errors.Is(err, sql.ErrNoRows):
			newLine := &models.CartLine{
				ProductID:    req.ProductID,
				SellerID:     res.SellerID,
				Color:        strings.TrimSpace(req.Color),
				Size:         strings.TrimSpace(req.Size),
				Quantity:     req.Quantity,
				UnitPrice:    res.UnitPrice,
				VariantImage: res.VariantImage,
			}
			if owner.IsUser() {
				newLine.UserID = sql.NullInt64{Int64: owner.UserID, Valid: true}
			} else {
				newLine.SessionID = sql.NullString{String: owner.SessionID, Valid: true}
			}
			if err := s.store.InsertCartLine(ctx, tx, newLine); err != nil {
				return apperr.Internal("failed to insert cart line", err)
			}
			line = newLine
			return nil

		default:
			return apperr.Internal("failed to lock cart line", err)
		}
	})
	if err != nil {
		return nil, err
	}

	util.CartAddsTotal.Inc()
	return line, nil
}

// UpdateQuantity clamps the requested quantity to [1, max] and applies it.
// Stock is deliberately not re-checked here; placement does that under row
// locks. Returns the clamped quantity.
func (s *CartService) UpdateQuantity(ctx context.Context, owner store.CartOwner, lineID int64, quantity int) (int, error) {
	line, err := s.store.GetCartLineByID(ctx, lineID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("cart item not found")
	}
	if err != nil {
		return 0, apperr.Internal("failed to load cart line", err)
	}
	if !ownedBy(line, owner) {
		return 0, apperr.NotFound("cart item not found")
	}

	clamped := clampQuantity(quantity, s.maxQty)
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.store.UpdateCartLineQuantity(ctx, tx, lineID, clamped)
	})
	if err != nil {
		return 0, apperr.Internal("failed to update quantity", err)
	}
	return clamped, nil
}

// Remove deletes a line the owner holds.
func (s *CartService) Remove(ctx context.Context, owner store.CartOwner, lineID int64) error {
	err := s.store.DeleteCartLine(ctx, owner, lineID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("cart item not found")
	}
	if err != nil {
		return apperr.Internal("failed to remove cart line", err)
	}
	return nil
}

// List returns the owner's lines newest first with the seller store names.
func (s *CartService) List(ctx context.Context, owner store.CartOwner) ([]models.CartLineView, error) {
	lines, err := s.store.GetCartLines(ctx, owner)
	if err != nil {
		return nil, apperr.Internal("failed to list cart", err)
	}
	return lines, nil
}

// Count returns the owner's line count for the cart badge.
func (s *CartService) Count(ctx context.Context, owner store.CartOwner) (int, error) {
	count, err := s.store.CountCartLines(ctx, owner)
	if err != nil {
		return 0, apperr.Internal("failed to count cart", err)
	}
	return count, nil
}

// Subtotal sums the owner's snapshot prices for the cart screen.
func (s *CartService) Subtotal(ctx context.Context, owner store.CartOwner) (decimal.Decimal, error) {
	sub, err := s.store.CartSubtotal(ctx, owner)
	if err != nil {
		return decimal.Zero, apperr.Internal("failed to compute subtotal", err)
	}
	return sub.Round(2), nil
}

// Merge folds a guest session's cart into the user's on login. The user's
// line wins when both have the same (product, color, size).
func (s *CartService) Merge(ctx context.Context, sessionID string, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Merge")
	defer span.End()

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.store.MergeGuestCart(ctx, tx, sessionID, userID)
	})
	if err != nil {
		return apperr.Internal("failed to merge guest cart", err)
	}

	s.logger.Info("Guest cart merged",
		zap.String("session_id", sessionID), zap.Int64("user_id", userID))
	return nil
}

func ownedBy(line *models.CartLine, owner store.CartOwner) bool {
	if owner.IsUser() {
		return line.UserID.Valid && line.UserID.Int64 == owner.UserID
	}
	return line.SessionID.Valid && line.SessionID.String == owner.SessionID
}
