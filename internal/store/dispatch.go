package store

import (
	"context"

	"dione/internal/models"

	"github.com/jmoiron/sqlx"
)

// DeliveryItem is a pickup request item joined with its order, which carries
// the delivery sub-state inside shipping_address.
type DeliveryItem struct {
	models.PickupRequestItem
	OrderNumber     string                 `db:"order_number"`
	OrderStatus     string                 `db:"order_status"`
	BuyerID         int64                  `db:"buyer_id"`
	SellerID        int64                  `db:"order_seller_id"`
	ShippingAddress models.ShippingAddress `db:"shipping_address"`
}

const deliveryItemColumns = `
	pri.*, o.order_number, o.status AS order_status, o.buyer_id,
	o.seller_id AS order_seller_id, o.shipping_address`

// InsertPickupRequest creates a pickup request inside tx.
func (s *Store) InsertPickupRequest(ctx context.Context, tx *sqlx.Tx, pr *models.PickupRequest) error {
	query := `
		INSERT INTO pickup_requests
			(request_number, seller_id, pickup_address, pickup_contact_name, pickup_contact_phone, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, requested_at`

	return tx.QueryRowxContext(ctx, query,
		pr.RequestNumber, pr.SellerID, pr.PickupAddress,
		pr.PickupContactName, pr.PickupContactPhone, pr.Status,
	).Scan(&pr.ID, &pr.RequestedAt)
}

// RequestNumberExists checks a pickup request number inside tx.
func (s *Store) RequestNumberExists(ctx context.Context, tx *sqlx.Tx, requestNumber string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM pickup_requests WHERE request_number = $1)", requestNumber)
	return exists, err
}

// InsertPickupRequestItem creates a pickup request item inside tx.
func (s *Store) InsertPickupRequestItem(ctx context.Context, tx *sqlx.Tx, item *models.PickupRequestItem) error {
	query := `
		INSERT INTO pickup_request_items (pickup_request_id, order_id, package_count, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return tx.GetContext(ctx, &item.ID, query,
		item.PickupRequestID, item.OrderID, item.PackageCount, item.Status)
}

// OrderInActivePickup reports whether an order already belongs to an item
// that has not finished its delivery lifecycle.
func (s *Store) OrderInActivePickup(ctx context.Context, tx *sqlx.Tx, orderID int64) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM pickup_request_items
			WHERE order_id = $1 AND status <> $2)`,
		orderID, models.PickupItemStatusDelivered)
	return exists, err
}

// GetPickupRequestByID retrieves a pickup request.
func (s *Store) GetPickupRequestByID(ctx context.Context, id int64) (*models.PickupRequest, error) {
	var pr models.PickupRequest
	err := s.db.GetContext(ctx, &pr, "SELECT * FROM pickup_requests WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// LockPickupRequest locks a pickup request row inside tx. Acceptance is
// single-winner through this lock.
func (s *Store) LockPickupRequest(ctx context.Context, tx *sqlx.Tx, id int64) (*models.PickupRequest, error) {
	var pr models.PickupRequest
	err := tx.GetContext(ctx, &pr, "SELECT * FROM pickup_requests WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// UpdatePickupRequest persists the mutable pickup request columns inside tx.
func (s *Store) UpdatePickupRequest(ctx context.Context, tx *sqlx.Tx, pr *models.PickupRequest) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE pickup_requests SET
			rider_user_id = $1, status = $2, assigned_at = $3, picked_up_at = $4, completed_at = $5
		WHERE id = $6`,
		pr.RiderUserID, pr.Status, pr.AssignedAt, pr.PickedUpAt, pr.CompletedAt, pr.ID)
	return err
}

// GetPickupRequestItems retrieves a request's items.
func (s *Store) GetPickupRequestItems(ctx context.Context, prID int64) ([]models.PickupRequestItem, error) {
	var items []models.PickupRequestItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM pickup_request_items WHERE pickup_request_id = $1 ORDER BY id", prID)
	return items, err
}

// GetPickupRequestItemsTx retrieves a request's items inside tx.
func (s *Store) GetPickupRequestItemsTx(ctx context.Context, tx *sqlx.Tx, prID int64) ([]models.PickupRequestItem, error) {
	var items []models.PickupRequestItem
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM pickup_request_items WHERE pickup_request_id = $1 ORDER BY id", prID)
	return items, err
}

// LockPickupRequestItem locks an item row inside tx.
func (s *Store) LockPickupRequestItem(ctx context.Context, tx *sqlx.Tx, id int64) (*models.PickupRequestItem, error) {
	var item models.PickupRequestItem
	err := tx.GetContext(ctx, &item,
		"SELECT * FROM pickup_request_items WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdatePickupRequestItem persists the mutable item columns inside tx.
func (s *Store) UpdatePickupRequestItem(ctx context.Context, tx *sqlx.Tx, item *models.PickupRequestItem) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE pickup_request_items SET
			status = $1, proof_photo_url = $2, rider_notes = $3
		WHERE id = $4`,
		item.Status, item.ProofPhotoURL, item.RiderNotes, item.ID)
	return err
}

// ListAvailablePickups lists unassigned pending pickup requests. Coverage
// filtering happens in the service against the rider's profile.
func (s *Store) ListAvailablePickups(ctx context.Context) ([]models.PickupRequest, error) {
	var prs []models.PickupRequest
	err := s.db.SelectContext(ctx, &prs, `
		SELECT * FROM pickup_requests
		WHERE status = $1 AND rider_user_id IS NULL
		ORDER BY requested_at`, models.PickupStatusPending)
	return prs, err
}

// ListRiderPickups lists a rider's pickups, active or historical.
func (s *Store) ListRiderPickups(ctx context.Context, riderUserID int64, history bool) ([]models.PickupRequest, error) {
	statuses := []string{models.PickupStatusAssigned, models.PickupStatusPickedUp}
	if history {
		statuses = []string{models.PickupStatusCompleted, models.PickupStatusCancelled}
	}

	query, args, err := sqlx.In(`
		SELECT * FROM pickup_requests
		WHERE rider_user_id = ? AND status IN (?)
		ORDER BY requested_at DESC`, riderUserID, statuses)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var prs []models.PickupRequest
	err = s.db.SelectContext(ctx, &prs, query, args...)
	return prs, err
}

// ListDeliverableItems lists items ready for a delivery assignment.
func (s *Store) ListDeliverableItems(ctx context.Context) ([]DeliveryItem, error) {
	query, args, err := sqlx.In(`
		SELECT `+deliveryItemColumns+`
		FROM pickup_request_items pri
		JOIN orders o ON o.id = pri.order_id
		WHERE pri.status IN (?)
		ORDER BY pri.id`,
		[]string{models.PickupItemStatusReadyForDelivery, models.PickupItemStatusDeliveryRejected})
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []DeliveryItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// ListRiderDeliveries lists items whose delivery is assigned to the rider
// (via the order's embedded meta), active or delivered history.
func (s *Store) ListRiderDeliveries(ctx context.Context, riderUserID int64, history bool) ([]DeliveryItem, error) {
	statuses := []string{models.PickupItemStatusDeliveryAssigned, models.PickupItemStatusToReceiveToday}
	if history {
		statuses = []string{models.PickupItemStatusDelivered}
	}

	query, args, err := sqlx.In(`
		SELECT `+deliveryItemColumns+`
		FROM pickup_request_items pri
		JOIN orders o ON o.id = pri.order_id
		WHERE pri.status IN (?)
		  AND (o.shipping_address -> '_delivery_meta' ->> 'delivery_rider_id')::bigint = ?
		ORDER BY pri.id DESC`, statuses, riderUserID)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []DeliveryItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// GetDeliveryItemByID retrieves one joined delivery item.
func (s *Store) GetDeliveryItemByID(ctx context.Context, id int64) (*DeliveryItem, error) {
	var item DeliveryItem
	err := s.db.GetContext(ctx, &item, `
		SELECT `+deliveryItemColumns+`
		FROM pickup_request_items pri
		JOIN orders o ON o.id = pri.order_id
		WHERE pri.id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetRiderProfileByUserID retrieves a rider profile by the owning user.
func (s *Store) GetRiderProfileByUserID(ctx context.Context, userID int64) (*models.RiderProfile, error) {
	var profile models.RiderProfile
	err := s.db.GetContext(ctx, &profile,
		"SELECT * FROM rider_profiles WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// IncrementRiderDeliveries bumps the rider's lifetime delivery count.
func (s *Store) IncrementRiderDeliveries(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE rider_profiles SET total_deliveries = total_deliveries + 1 WHERE user_id = $1",
		userID)
	return err
}
