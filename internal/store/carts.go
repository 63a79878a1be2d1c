package store

import (
	"context"

	"dione/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CartOwner identifies a basket: a user id for authenticated carts, a
// session id for guest carts. Exactly one side is set.
type CartOwner struct {
	UserID    int64
	SessionID string
}

func OwnerUser(userID int64) CartOwner { return CartOwner{UserID: userID} }

func OwnerSession(sessionID string) CartOwner { return CartOwner{SessionID: sessionID} }

func (o CartOwner) IsUser() bool { return o.UserID != 0 }

func (o CartOwner) whereClause() (string, interface{}) {
	if o.IsUser() {
		return "user_id = $1", o.UserID
	}
	return "session_id = $1", o.SessionID
}

// GetCartLines lists an owner's lines newest first, joined with the seller's
// business name for store grouping.
func (s *Store) GetCartLines(ctx context.Context, owner CartOwner) ([]models.CartLineView, error) {
	where, arg := owner.whereClause()
	var lines []models.CartLineView
	err := s.db.SelectContext(ctx, &lines, `
		SELECT ci.*, p.name AS product_name, u.business_name AS store_name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN users u ON u.id = ci.seller_id
		WHERE ci.`+where+`
		ORDER BY ci.created_at DESC`, arg)
	return lines, err
}

// GetCartLineByID retrieves a single line.
func (s *Store) GetCartLineByID(ctx context.Context, id int64) (*models.CartLine, error) {
	var line models.CartLine
	err := s.db.GetContext(ctx, &line, "SELECT * FROM cart_items WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// LockCartLineByVariant locks the owner's line for (product, color, size)
// inside tx, if one exists. Concurrent adds to the same line serialize here.
func (s *Store) LockCartLineByVariant(ctx context.Context, tx *sqlx.Tx, owner CartOwner, productID int64, color, size string) (*models.CartLine, error) {
	where, arg := owner.whereClause()
	var line models.CartLine
	err := tx.GetContext(ctx, &line, `
		SELECT * FROM cart_items
		WHERE `+where+` AND product_id = $2
		  AND LOWER(TRIM(color)) = LOWER(TRIM($3))
		  AND LOWER(TRIM(size)) = LOWER(TRIM($4))
		FOR UPDATE`,
		arg, productID, color, size)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// InsertCartLine inserts a new line inside tx.
func (s *Store) InsertCartLine(ctx context.Context, tx *sqlx.Tx, line *models.CartLine) error {
	query := `
		INSERT INTO cart_items
			(user_id, session_id, product_id, seller_id, color, size, quantity, unit_price, variant_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, line, query,
		line.UserID, line.SessionID, line.ProductID, line.SellerID,
		line.Color, line.Size, line.Quantity, line.UnitPrice, line.VariantImage)
}

// UpdateCartLineQuantity sets a line's quantity inside tx.
func (s *Store) UpdateCartLineQuantity(ctx context.Context, tx *sqlx.Tx, lineID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, lineID)
	return err
}

// DeleteCartLine removes a line belonging to owner. Returns ErrNotFound when
// the line does not exist or belongs to someone else.
func (s *Store) DeleteCartLine(ctx context.Context, owner CartOwner, lineID int64) error {
	where, arg := owner.whereClause()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $2 AND "+where, arg, lineID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartLines removes a batch of lines inside tx (placement consumes
// them per seller partition).
func (s *Store) DeleteCartLines(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM cart_items WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

// CountCartLines returns the number of lines in an owner's basket.
func (s *Store) CountCartLines(ctx context.Context, owner CartOwner) (int, error) {
	where, arg := owner.whereClause()
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM cart_items WHERE "+where, arg)
	return count, err
}

// CartSubtotal sums unit_price * quantity over an owner's basket.
func (s *Store) CartSubtotal(ctx context.Context, owner CartOwner) (decimal.Decimal, error) {
	where, arg := owner.whereClause()
	var subtotal decimal.Decimal
	err := s.db.GetContext(ctx, &subtotal,
		"SELECT COALESCE(SUM(unit_price * quantity), 0) FROM cart_items WHERE "+where, arg)
	return subtotal, err
}

// MergeGuestCart moves a guest session's lines into the user's cart inside
// tx. Lines already present by (product, color, size) stay as the user had
// them; the guest duplicates are dropped.
func (s *Store) MergeGuestCart(ctx context.Context, tx *sqlx.Tx, sessionID string, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cart_items g SET user_id = $2, session_id = NULL, updated_at = NOW()
		WHERE g.session_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM cart_items u
			WHERE u.user_id = $2
			  AND u.product_id = g.product_id
			  AND LOWER(TRIM(u.color)) = LOWER(TRIM(g.color))
			  AND LOWER(TRIM(u.size)) = LOWER(TRIM(g.size))
		  )`, sessionID, userID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = $1", sessionID)
	return err
}
