package store

import (
	"context"

	"dione/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CountCompletedPickups counts a rider's completed pickup requests inside tx.
func (s *Store) CountCompletedPickups(ctx context.Context, tx *sqlx.Tx, riderUserID int64) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM pickup_requests
		WHERE rider_user_id = $1 AND status = $2`,
		riderUserID, models.PickupStatusCompleted)
	return count, err
}

// CountDeliveredItems counts delivered items whose parent pickup belongs to
// the rider, inside tx.
func (s *Store) CountDeliveredItems(ctx context.Context, tx *sqlx.Tx, riderUserID int64) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM pickup_request_items pri
		JOIN pickup_requests pr ON pr.id = pri.pickup_request_id
		WHERE pri.status = $1 AND pr.rider_user_id = $2`,
		models.PickupItemStatusDelivered, riderUserID)
	return count, err
}

// SumPayoutsByStatus sums a rider profile's payout requests in one status,
// inside tx.
func (s *Store) SumPayoutsByStatus(ctx context.Context, tx *sqlx.Tx, riderProfileID int64, status string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM payout_requests
		WHERE rider_profile_id = $1 AND status = $2`,
		riderProfileID, status)
	return sum, err
}

// InsertPayoutRequest creates a pending payout request inside tx.
func (s *Store) InsertPayoutRequest(ctx context.Context, tx *sqlx.Tx, req *models.PayoutRequest) error {
	query := `
		INSERT INTO payout_requests
			(rider_profile_id, amount, status, gcash_name, gcash_number, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, requested_at`

	return tx.QueryRowxContext(ctx, query,
		req.RiderProfileID, req.Amount, req.Status,
		req.GcashName, req.GcashNumber, req.Notes,
	).Scan(&req.ID, &req.RequestedAt)
}

// LockRiderProfile locks a rider profile row inside tx. Payout writers take
// this lock so concurrent balance checks against the same rider serialize.
func (s *Store) LockRiderProfile(ctx context.Context, tx *sqlx.Tx, profileID int64) (*models.RiderProfile, error) {
	var profile models.RiderProfile
	err := tx.GetContext(ctx, &profile,
		"SELECT * FROM rider_profiles WHERE id = $1 FOR UPDATE", profileID)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// LockPayoutRequest locks a payout request row inside tx.
func (s *Store) LockPayoutRequest(ctx context.Context, tx *sqlx.Tx, id int64) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	err := tx.GetContext(ctx, &req,
		"SELECT * FROM payout_requests WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdatePayoutRequest persists the admin-mutable payout columns inside tx.
func (s *Store) UpdatePayoutRequest(ctx context.Context, tx *sqlx.Tx, req *models.PayoutRequest) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payout_requests SET
			status = $1, admin_notes = $2, reference_code = $3,
			processed_at = $4, processed_by_admin_id = $5
		WHERE id = $6`,
		req.Status, req.AdminNotes, req.ReferenceCode,
		req.ProcessedAt, req.ProcessedByAdminID, req.ID)
	return err
}

// ListPayoutsByRider lists a rider profile's payout requests newest first.
func (s *Store) ListPayoutsByRider(ctx context.Context, riderProfileID int64) ([]models.PayoutRequest, error) {
	var reqs []models.PayoutRequest
	err := s.db.SelectContext(ctx, &reqs,
		"SELECT * FROM payout_requests WHERE rider_profile_id = $1 ORDER BY requested_at DESC",
		riderProfileID)
	return reqs, err
}
