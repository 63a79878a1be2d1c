package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode"

	"dione/config"
	"dione/internal/apperr"
	"dione/internal/broker"
	"dione/internal/models"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayoutService handles rider withdrawal requests and their admin settlement.
type PayoutService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewPayoutService creates a new payout service
func NewPayoutService(st *store.Store, eventPublisher *broker.EventPublisher, cfg *config.Config) *PayoutService {
	return &PayoutService{
		store:          st,
		eventPublisher: eventPublisher,
		business:       cfg.Business,
		logger:         util.GetLogger(),
	}
}

// validGcashNumber accepts digits with optional spaces or dashes, 10 or 11
// digits total.
func validGcashNumber(number string) bool {
	digits := 0
	for _, r := range number {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	return digits == 10 || digits == 11
}

// RequestPayout files a withdrawal against the rider's available balance.
// The balance is recomputed inside the same transaction that inserts the
// request, under the rider profile row lock, so two concurrent requests
// cannot both drain it.
func (s *PayoutService) RequestPayout(ctx context.Context, riderUserID int64, amount decimal.Decimal, gcashName, gcashNumber, notes string) (*models.PayoutRequest, error) {
	ctx, span := util.StartSpan(ctx, "PayoutService.RequestPayout")
	defer span.End()

	if !amount.IsPositive() {
		return nil, apperr.BadRequest("amount must be positive")
	}
	gcashName = strings.TrimSpace(gcashName)
	if gcashName == "" {
		return nil, apperr.BadRequest("gcash name is required")
	}
	if !validGcashNumber(gcashNumber) {
		return nil, apperr.BadRequest("invalid gcash number")
	}

	profile, err := s.store.GetRiderProfileByUserID(ctx, riderUserID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.Forbidden("rider profile required")
		}
		return nil, apperr.Internal("failed to load rider profile", err)
	}

	var req *models.PayoutRequest
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		// The profile row lock serializes concurrent requests for the same
		// rider; without it two transactions could both pass the balance
		// check before either pending row commits.
		if _, err := s.store.LockRiderProfile(ctx, tx, profile.ID); err != nil {
			return apperr.Internal("failed to lock rider profile", err)
		}

		pickups, err := s.store.CountCompletedPickups(ctx, tx, riderUserID)
		if err != nil {
			return apperr.Internal("failed to count pickups", err)
		}
		deliveries, err := s.store.CountDeliveredItems(ctx, tx, riderUserID)
		if err != nil {
			return apperr.Internal("failed to count deliveries", err)
		}
		paid, err := s.store.SumPayoutsByStatus(ctx, tx, profile.ID, models.PayoutStatusPaid)
		if err != nil {
			return apperr.Internal("failed to sum paid payouts", err)
		}
		pending, err := s.store.SumPayoutsByStatus(ctx, tx, profile.ID, models.PayoutStatusPending)
		if err != nil {
			return apperr.Internal("failed to sum pending payouts", err)
		}

		view := buildEarningsView(pickups, deliveries, s.business.PickupRate, s.business.DeliveryRate, paid, pending)
		if amount.GreaterThan(view.AvailableBalance) {
			return apperr.BadRequest("amount exceeds available balance").
				With("available_balance", view.AvailableBalance.StringFixed(2))
		}

		req = &models.PayoutRequest{
			RiderProfileID: profile.ID,
			Amount:         amount.Round(2),
			Status:         models.PayoutStatusPending,
			GcashName:      gcashName,
			GcashNumber:    gcashNumber,
		}
		if notes != "" {
			req.Notes = sql.NullString{String: notes, Valid: true}
		}
		return s.store.InsertPayoutRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	util.PayoutsRequestedTotal.Inc()
	s.logger.Info("Payout requested",
		zap.Int64("rider_profile_id", profile.ID), zap.String("amount", amount.StringFixed(2)))
	return req, nil
}

// ListPayouts returns the rider's payout history, newest first.
func (s *PayoutService) ListPayouts(ctx context.Context, riderUserID int64) ([]models.PayoutRequest, error) {
	profile, err := s.store.GetRiderProfileByUserID(ctx, riderUserID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.Forbidden("rider profile required")
		}
		return nil, apperr.Internal("failed to load rider profile", err)
	}
	payouts, err := s.store.ListPayoutsByRider(ctx, profile.ID)
	if err != nil {
		return nil, apperr.Internal("failed to list payouts", err)
	}
	return payouts, nil
}

func validPayoutStatus(status string) bool {
	switch status {
	case models.PayoutStatusPending, models.PayoutStatusPaid, models.PayoutStatusRejected:
		return true
	}
	return false
}

// UpdatePayout moves a request between pending, paid, and rejected.
// Settling stamps the processing columns; moving back to pending clears
// them so the request can be settled again.
func (s *PayoutService) UpdatePayout(ctx context.Context, adminID, payoutID int64, status, adminNotes, referenceCode string) (*models.PayoutRequest, error) {
	ctx, span := util.StartSpan(ctx, "PayoutService.UpdatePayout")
	defer span.End()

	if !validPayoutStatus(status) {
		return nil, apperr.BadRequest("status must be pending, paid, or rejected")
	}

	var req *models.PayoutRequest
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		req, err = s.store.LockPayoutRequest(ctx, tx, payoutID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("payout request not found")
		}
		if err != nil {
			return apperr.Internal("failed to lock payout request", err)
		}
		if req.Status == status {
			return apperr.Conflict("payout request already " + status)
		}

		req.Status = status
		if status == models.PayoutStatusPending {
			req.ProcessedAt = nil
			req.ProcessedByAdminID = sql.NullInt64{}
		} else {
			now := time.Now().UTC()
			req.ProcessedAt = &now
			req.ProcessedByAdminID = sql.NullInt64{Int64: adminID, Valid: true}
		}
		if adminNotes != "" {
			req.AdminNotes = sql.NullString{String: adminNotes, Valid: true}
		}
		if referenceCode != "" {
			req.ReferenceCode = sql.NullString{String: referenceCode, Valid: true}
		}
		return s.store.UpdatePayoutRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	if status != models.PayoutStatusPending {
		util.PayoutsProcessedTotal.WithLabelValues(status).Inc()
		if perr := s.eventPublisher.PublishPayoutProcessed(ctx, &models.PayoutProcessedEvent{
			PayoutRequestID: req.ID,
			RiderProfileID:  req.RiderProfileID,
			Amount:          req.Amount,
			Status:          status,
		}); perr != nil {
			s.logger.Error("Failed to publish PayoutProcessed event", zap.Error(perr))
		}
	}
	return req, nil
}
