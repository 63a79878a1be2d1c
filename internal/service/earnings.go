package service

import (
	"context"

	"dione/config"
	"dione/internal/apperr"
	"dione/internal/models"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EarningsService derives a rider's balance from completed work and payout
// history. There is no running-balance column; everything is recomputed
// inside one read transaction so the numbers are mutually consistent.
type EarningsService struct {
	store    *store.Store
	business config.BusinessConfig
	logger   *zap.Logger
}

// NewEarningsService creates a new earnings service
func NewEarningsService(st *store.Store, cfg *config.Config) *EarningsService {
	return &EarningsService{
		store:    st,
		business: cfg.Business,
		logger:   util.GetLogger(),
	}
}

// EarningsView is a point-in-time snapshot of a rider's ledger.
type EarningsView struct {
	CompletedPickups int             `json:"completed_pickups"`
	DeliveredItems   int             `json:"delivered_items"`
	PickupEarnings   decimal.Decimal `json:"pickup_earnings"`
	DeliveryEarnings decimal.Decimal `json:"delivery_earnings"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	PendingPayouts   decimal.Decimal `json:"pending_payouts"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

// Earnings computes the snapshot for the rider behind userID.
func (s *EarningsService) Earnings(ctx context.Context, riderUserID int64) (*EarningsView, error) {
	ctx, span := util.StartSpan(ctx, "EarningsService.Earnings")
	defer span.End()

	profile, err := s.store.GetRiderProfileByUserID(ctx, riderUserID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.Forbidden("rider profile required")
		}
		return nil, apperr.Internal("failed to load rider profile", err)
	}

	var view *EarningsView
	err = s.store.WithReadTx(ctx, func(tx *sqlx.Tx) error {
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
		view = buildEarningsView(pickups, deliveries, s.business.PickupRate, s.business.DeliveryRate, paid, pending)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func buildEarningsView(pickups, deliveries int, pickupRate, deliveryRate, paid, pending decimal.Decimal) *EarningsView {
	pickupEarnings := pickupRate.Mul(decimal.NewFromInt(int64(pickups)))
	deliveryEarnings := deliveryRate.Mul(decimal.NewFromInt(int64(deliveries)))
	earned := pickupEarnings.Add(deliveryEarnings)

	available := earned.Sub(paid).Sub(pending)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return &EarningsView{
		CompletedPickups: pickups,
		DeliveredItems:   deliveries,
		PickupEarnings:   pickupEarnings.Round(2),
		DeliveryEarnings: deliveryEarnings.Round(2),
		TotalEarned:      earned.Round(2),
		TotalPaid:        paid.Round(2),
		PendingPayouts:   pending.Round(2),
		AvailableBalance: available.Round(2),
	}
}
