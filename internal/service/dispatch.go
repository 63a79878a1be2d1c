package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"dione/config"
	"dione/internal/apperr"
	"dione/internal/broker"
	"dione/internal/models"
	"dione/internal/store"
	"dione/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DispatchService runs the pickup/delivery state machine. Every mutation
// locks its pickup request or item row, so acceptance is single-winner and
// invalid transitions are rejected consistently under concurrency.
type DispatchService struct {
	store          *store.Store
	policy         DispatchPolicy
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(st *store.Store, eventPublisher *broker.EventPublisher, cfg *config.Config) *DispatchService {
	return &DispatchService{
		store:          st,
		eventPublisher: eventPublisher,
		business:       cfg.Business,
		logger:         util.GetLogger(),
	}
}

func errInvalidTransition(op string) error {
	util.DispatchConflictsTotal.WithLabelValues(op).Inc()
	return apperr.Conflict("invalid transition")
}

// riderProfile loads the caller's rider profile or Forbidden.
func (s *DispatchService) riderProfile(ctx context.Context, riderUserID int64) (*models.RiderProfile, error) {
	profile, err := s.store.GetRiderProfileByUserID(ctx, riderUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Forbidden("rider profile required")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load rider profile", err)
	}
	return profile, nil
}

// CreatePickupRequest groups a seller's ready orders into one pickup task.
// Orders still pending are confirmed as a side effect.
func (s *DispatchService) CreatePickupRequest(ctx context.Context, sellerID int64, orderIDs []int64, address, contactName, contactPhone string) (*models.PickupRequest, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.CreatePickupRequest")
	defer span.End()

	if len(orderIDs) == 0 {
		return nil, apperr.BadRequest("no orders selected")
	}
	sort.Slice(orderIDs, func(i, j int) bool { return orderIDs[i] < orderIDs[j] })

	var pr *models.PickupRequest
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		number := fmt.Sprintf("PKR-%s-%d", time.Now().UTC().Format("20060102150405"), sellerID)
		for counter := 2; ; counter++ {
			exists, err := s.store.RequestNumberExists(ctx, tx, number)
			if err != nil {
				return apperr.Internal("failed to check request number", err)
			}
			if !exists {
				break
			}
			number = fmt.Sprintf("PKR-%s-%d-%d", time.Now().UTC().Format("20060102150405"), sellerID, counter)
		}

		pr = &models.PickupRequest{
			RequestNumber:      number,
			SellerID:           sellerID,
			PickupAddress:      address,
			PickupContactName:  contactName,
			PickupContactPhone: contactPhone,
			Status:             models.PickupStatusPending,
		}
		if err := s.store.InsertPickupRequest(ctx, tx, pr); err != nil {
			return apperr.Internal("failed to create pickup request", err)
		}

		for _, orderID := range orderIDs {
			order, err := s.store.LockOrder(ctx, tx, orderID)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("order not found").With("order_id", orderID)
			}
			if err != nil {
				return apperr.Internal("failed to lock order", err)
			}
			if order.SellerID != sellerID {
				return apperr.Forbidden("order belongs to another seller")
			}
			if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusConfirmed {
				return errInvalidTransition("create_pickup")
			}

			active, err := s.store.OrderInActivePickup(ctx, tx, orderID)
			if err != nil {
				return apperr.Internal("failed to check active pickups", err)
			}
			if active {
				return apperr.Conflict("order already queued for pickup").With("order_id", orderID)
			}

			if order.Status == models.OrderStatusPending {
				order.Status = models.OrderStatusConfirmed
				if err := s.store.UpdateOrderDispatch(ctx, tx, order); err != nil {
					return apperr.Internal("failed to confirm order", err)
				}
			}

			item := &models.PickupRequestItem{
				PickupRequestID: pr.ID,
				OrderID:         orderID,
				PackageCount:    1,
				Status:          models.PickupItemStatusPending,
			}
			if err := s.store.InsertPickupRequestItem(ctx, tx, item); err != nil {
				return apperr.Internal("failed to create pickup item", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// ListPickups lists pickup work for a rider: available (shift and coverage
// gated), assigned, or history.
func (s *DispatchService) ListPickups(ctx context.Context, riderUserID int64, scope string) ([]models.PickupRequest, error) {
	switch scope {
	case "assigned":
		return s.store.ListRiderPickups(ctx, riderUserID, false)
	case "history":
		return s.store.ListRiderPickups(ctx, riderUserID, true)
	}

	profile, err := s.riderProfile(ctx, riderUserID)
	if err != nil {
		return nil, err
	}
	if !s.policy.OnActiveShift(profile.AvailabilityStatus) {
		return []models.PickupRequest{}, nil
	}

	pending, err := s.store.ListAvailablePickups(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list pickups", err)
	}

	visible := make([]models.PickupRequest, 0, len(pending))
	for _, pr := range pending {
		if s.policy.Covers(profile, CoverageTarget{Address: pr.PickupAddress}) {
			visible = append(visible, pr)
		}
	}
	return visible, nil
}

// PickupDetail returns a pickup request with its items for the rider's
// detail screen.
func (s *DispatchService) PickupDetail(ctx context.Context, prID int64) (*models.PickupRequest, []models.PickupRequestItem, error) {
	pr, err := s.store.GetPickupRequestByID(ctx, prID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperr.NotFound("pickup request not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("failed to load pickup request", err)
	}
	items, err := s.store.GetPickupRequestItems(ctx, prID)
	if err != nil {
		return nil, nil, apperr.Internal("failed to load pickup items", err)
	}
	return pr, items, nil
}

// DeliveryDetail returns one delivery item joined with its order.
func (s *DispatchService) DeliveryDetail(ctx context.Context, priID int64) (*store.DeliveryItem, error) {
	item, err := s.store.GetDeliveryItemByID(ctx, priID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("delivery not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load delivery", err)
	}
	return item, nil
}

// AcceptPickup assigns a pending pickup request to the caller. The row lock
// makes acceptance single-winner; the loser gets a conflict.
func (s *DispatchService) AcceptPickup(ctx context.Context, riderUserID, prID int64) (*models.PickupRequest, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.AcceptPickup")
	defer span.End()

	profile, err := s.riderProfile(ctx, riderUserID)
	if err != nil {
		return nil, err
	}
	if !s.policy.OnActiveShift(profile.AvailabilityStatus) {
		return nil, apperr.Forbidden("not on an active shift")
	}

	var pr *models.PickupRequest
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		pr, err = s.store.LockPickupRequest(ctx, tx, prID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("pickup request not found")
		}
		if err != nil {
			return apperr.Internal("failed to lock pickup request", err)
		}

		if pr.Status != models.PickupStatusPending && pr.Status != models.PickupStatusAssigned {
			return errInvalidTransition("accept_pickup")
		}
		if pr.RiderUserID.Valid && pr.RiderUserID.Int64 != riderUserID {
			util.DispatchConflictsTotal.WithLabelValues("accept_pickup").Inc()
			return apperr.Conflict("pickup already assigned to another rider")
		}
		if !s.policy.Covers(profile, CoverageTarget{Address: pr.PickupAddress}) {
			return apperr.Forbidden("pickup is outside your coverage area")
		}

		now := time.Now().UTC()
		pr.RiderUserID = sql.NullInt64{Int64: riderUserID, Valid: true}
		pr.Status = models.PickupStatusAssigned
		pr.AssignedAt = &now
		return s.store.UpdatePickupRequest(ctx, tx, pr)
	})
	if err != nil {
		return nil, err
	}

	util.PickupsAcceptedTotal.Inc()
	s.logger.Info("Pickup accepted",
		zap.Int64("pickup_request_id", prID), zap.Int64("rider_user_id", riderUserID))
	return pr, nil
}

// CompletePickup marks the parcels collected: every item becomes ready for
// delivery and its order moves in transit with shipped_at stamped. With
// markComplete the request itself closes.
func (s *DispatchService) CompletePickup(ctx context.Context, riderUserID, prID int64, proofURL, notes string, markComplete bool) (*models.PickupRequest, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.CompletePickup")
	defer span.End()

	var (
		pr       *models.PickupRequest
		orderIDs []int64
	)
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		pr, err = s.store.LockPickupRequest(ctx, tx, prID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("pickup request not found")
		}
		if err != nil {
			return apperr.Internal("failed to lock pickup request", err)
		}

		if !pr.RiderUserID.Valid || pr.RiderUserID.Int64 != riderUserID {
			return apperr.Forbidden("pickup is not assigned to you")
		}
		if pr.Status != models.PickupStatusAssigned && pr.Status != models.PickupStatusPickedUp {
			return errInvalidTransition("complete_pickup")
		}

		now := time.Now().UTC()
		pr.Status = models.PickupStatusPickedUp
		pr.PickedUpAt = &now

		items, err := s.store.GetPickupRequestItemsTx(ctx, tx, prID)
		if err != nil {
			return apperr.Internal("failed to load pickup items", err)
		}

		for i := range items {
			item := &items[i]
			item.Status = models.PickupItemStatusReadyForDelivery
			if proofURL != "" {
				item.ProofPhotoURL = sql.NullString{String: proofURL, Valid: true}
			}
			if notes != "" {
				item.RiderNotes = sql.NullString{String: notes, Valid: true}
			}
			if err := s.store.UpdatePickupRequestItem(ctx, tx, item); err != nil {
				return apperr.Internal("failed to update pickup item", err)
			}

			order, err := s.store.LockOrder(ctx, tx, item.OrderID)
			if err != nil {
				return apperr.Internal("failed to lock order", err)
			}
			order.Status = models.OrderStatusInTransit
			if order.ShippedAt == nil {
				order.ShippedAt = &now
			}
			meta := order.ShippingAddress.Meta()
			meta.PickupCompletedAt = &now
			meta.PickupCompletedBy = &riderUserID
			if err := s.store.UpdateOrderDispatch(ctx, tx, order); err != nil {
				return apperr.Internal("failed to update order", err)
			}
			orderIDs = append(orderIDs, order.ID)
		}

		if markComplete {
			pr.Status = models.PickupStatusCompleted
			pr.CompletedAt = &now
		}
		return s.store.UpdatePickupRequest(ctx, tx, pr)
	})
	if err != nil {
		return nil, err
	}

	util.PickupsCompletedTotal.Inc()
	if perr := s.eventPublisher.PublishPickupCompleted(ctx, &models.PickupCompletedEvent{
		PickupRequestID: prID,
		RiderUserID:     riderUserID,
		OrderIDs:        orderIDs,
	}); perr != nil {
		s.logger.Error("Failed to publish PickupCompleted event", zap.Error(perr))
	}
	return pr, nil
}

// ListDeliveries lists delivery work for a rider by scope.
func (s *DispatchService) ListDeliveries(ctx context.Context, riderUserID int64, scope string) ([]store.DeliveryItem, error) {
	switch scope {
	case "assigned":
		return s.store.ListRiderDeliveries(ctx, riderUserID, false)
	case "history":
		return s.store.ListRiderDeliveries(ctx, riderUserID, true)
	}

	profile, err := s.riderProfile(ctx, riderUserID)
	if err != nil {
		return nil, err
	}
	if !s.policy.OnActiveShift(profile.AvailabilityStatus) {
		return []store.DeliveryItem{}, nil
	}

	ready, err := s.store.ListDeliverableItems(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list deliveries", err)
	}

	visible := make([]store.DeliveryItem, 0, len(ready))
	for _, item := range ready {
		if s.policy.Covers(profile, TargetFromAddress(&item.ShippingAddress)) {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

// acceptable statuses for taking over a delivery. "picked_up" appears on
// rows written before the ready_for_delivery rename.
func deliveryAcceptable(status string) bool {
	switch status {
	case models.PickupItemStatusReadyForDelivery,
		models.PickupItemStatusDeliveryRejected,
		"picked_up":
		return true
	}
	return false
}

// AcceptDelivery assigns a ready item's delivery leg to the caller.
func (s *DispatchService) AcceptDelivery(ctx context.Context, riderUserID, priID int64) (*models.PickupRequestItem, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.AcceptDelivery")
	defer span.End()

	profile, err := s.riderProfile(ctx, riderUserID)
	if err != nil {
		return nil, err
	}
	if !s.policy.OnActiveShift(profile.AvailabilityStatus) {
		return nil, apperr.Forbidden("not on an active shift")
	}

	var item *models.PickupRequestItem
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.store.LockPickupRequestItem(ctx, tx, priID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("delivery not found")
		}
		if err != nil {
			return apperr.Internal("failed to lock delivery item", err)
		}

		if !deliveryAcceptable(item.Status) {
			return errInvalidTransition("accept_delivery")
		}

		pr, err := s.store.LockPickupRequest(ctx, tx, item.PickupRequestID)
		if err != nil {
			return apperr.Internal("failed to lock pickup request", err)
		}
		if pr.RiderUserID.Valid && pr.RiderUserID.Int64 != riderUserID {
			// Delivery legs are open to any covering rider once the parcels
			// are collected; an active pickup assignment stays exclusive.
			if pr.Status != models.PickupStatusPickedUp && pr.Status != models.PickupStatusCompleted {
				util.DispatchConflictsTotal.WithLabelValues("accept_delivery").Inc()
				return apperr.Conflict("delivery already assigned to another rider")
			}
		}

		order, err := s.store.LockOrder(ctx, tx, item.OrderID)
		if err != nil {
			return apperr.Internal("failed to lock order", err)
		}
		if !s.policy.Covers(profile, TargetFromAddress(&order.ShippingAddress)) {
			return apperr.Forbidden("delivery is outside your coverage area")
		}

		now := time.Now().UTC()
		item.Status = models.PickupItemStatusDeliveryAssigned
		if err := s.store.UpdatePickupRequestItem(ctx, tx, item); err != nil {
			return apperr.Internal("failed to update delivery item", err)
		}

		meta := order.ShippingAddress.Meta()
		meta.DeliveryRiderID = &riderUserID
		meta.DeliveryAssignedAt = &now
		return s.store.UpdateOrderDispatch(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func assigneeOf(order *models.Order) int64 {
	if order.ShippingAddress.DeliveryMeta == nil || order.ShippingAddress.DeliveryMeta.DeliveryRiderID == nil {
		return 0
	}
	return *order.ShippingAddress.DeliveryMeta.DeliveryRiderID
}

// RejectDelivery returns an assigned item to the ready pool, appending the
// reason to the rider notes and clearing the assignee.
func (s *DispatchService) RejectDelivery(ctx context.Context, riderUserID, priID int64, reason string) (*models.PickupRequestItem, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.RejectDelivery")
	defer span.End()

	var item *models.PickupRequestItem
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.store.LockPickupRequestItem(ctx, tx, priID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("delivery not found")
		}
		if err != nil {
			return apperr.Internal("failed to lock delivery item", err)
		}

		switch item.Status {
		case models.PickupItemStatusDeliveryAssigned, models.PickupItemStatusToReceiveToday:
		default:
			return errInvalidTransition("reject_delivery")
		}

		order, err := s.store.LockOrder(ctx, tx, item.OrderID)
		if err != nil {
			return apperr.Internal("failed to lock order", err)
		}
		if assigneeOf(order) != riderUserID {
			return apperr.Forbidden("delivery is not assigned to you")
		}

		item.Status = models.PickupItemStatusDeliveryRejected
		if reason != "" {
			notes := reason
			if item.RiderNotes.Valid && item.RiderNotes.String != "" {
				notes = item.RiderNotes.String + "; " + reason
			}
			item.RiderNotes = sql.NullString{String: notes, Valid: true}
		}
		if err := s.store.UpdatePickupRequestItem(ctx, tx, item); err != nil {
			return apperr.Internal("failed to update delivery item", err)
		}

		order.ShippingAddress.Meta().DeliveryRiderID = nil
		return s.store.UpdateOrderDispatch(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	util.DeliveriesRejectedTotal.Inc()
	return item, nil
}

// MarkToReceiveToday flags the item and order for same-day delivery.
func (s *DispatchService) MarkToReceiveToday(ctx context.Context, riderUserID, priID int64) (*models.PickupRequestItem, error) {
	var item *models.PickupRequestItem
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.store.LockPickupRequestItem(ctx, tx, priID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("delivery not found")
		}
		if err != nil {
			return apperr.Internal("failed to lock delivery item", err)
		}

		if item.Status != models.PickupItemStatusDeliveryAssigned {
			return errInvalidTransition("mark_to_receive_today")
		}

		order, err := s.store.LockOrder(ctx, tx, item.OrderID)
		if err != nil {
			return apperr.Internal("failed to lock order", err)
		}
		if assigneeOf(order) != riderUserID {
			return apperr.Forbidden("delivery is not assigned to you")
		}

		now := time.Now().UTC()
		item.Status = models.PickupItemStatusToReceiveToday
		if err := s.store.UpdatePickupRequestItem(ctx, tx, item); err != nil {
			return apperr.Internal("failed to update delivery item", err)
		}

		order.Status = models.OrderStatusToReceiveToday
		order.ShippingAddress.Meta().ToReceiveTodayAt = &now
		return s.store.UpdateOrderDispatch(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CompleteDelivery finishes a delivery: proof photo and a payment
// confirmation are mandatory. Stamps the meta, bumps the rider's lifetime
// count and awards the one-shot commission record.
func (s *DispatchService) CompleteDelivery(ctx context.Context, riderUserID, priID int64, proofURL string, paymentReceived bool) (*models.PickupRequestItem, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.CompleteDelivery")
	defer span.End()

	if proofURL == "" {
		return nil, apperr.BadRequest("proof photo is required")
	}
	if !paymentReceived {
		return nil, apperr.BadRequest("payment confirmation is required")
	}

	var (
		item  *models.PickupRequestItem
		event *models.OrderDeliveredEvent
	)
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.store.LockPickupRequestItem(ctx, tx, priID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("delivery not found")
		}
		if err != nil {
			return apperr.Internal("failed to lock delivery item", err)
		}

		switch item.Status {
		case models.PickupItemStatusDeliveryAssigned, models.PickupItemStatusToReceiveToday:
		default:
			return errInvalidTransition("complete_delivery")
		}

		order, err := s.store.LockOrder(ctx, tx, item.OrderID)
		if err != nil {
			return apperr.Internal("failed to lock order", err)
		}
		if assigneeOf(order) != riderUserID {
			return apperr.Forbidden("delivery is not assigned to you")
		}

		now := time.Now().UTC()
		item.Status = models.PickupItemStatusDelivered
		item.ProofPhotoURL = sql.NullString{String: proofURL, Valid: true}
		if err := s.store.UpdatePickupRequestItem(ctx, tx, item); err != nil {
			return apperr.Internal("failed to update delivery item", err)
		}

		order.Status = models.OrderStatusDelivered
		order.DeliveredAt = &now
		order.PaymentStatus = models.PaymentStatusPaid

		meta := order.ShippingAddress.Meta()
		meta.DeliveryProofURL = proofURL
		meta.PaymentReceived = true
		meta.PaymentReceivedAt = &now
		meta.DeliveryCompletedAt = &now
		if !meta.CommissionAwarded {
			meta.CommissionAwarded = true
			commission := s.business.RiderDeliveryCommission
			meta.CommissionAmount = &commission
		}
		if err := s.store.UpdateOrderDispatch(ctx, tx, order); err != nil {
			return apperr.Internal("failed to update order", err)
		}

		if err := s.store.IncrementRiderDeliveries(ctx, tx, riderUserID); err != nil {
			return apperr.Internal("failed to update rider stats", err)
		}

		event = &models.OrderDeliveredEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			RiderUserID: riderUserID,
			ProofURL:    proofURL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.DeliveriesCompletedTotal.Inc()
	if perr := s.eventPublisher.PublishOrderDelivered(ctx, event); perr != nil {
		s.logger.Error("Failed to publish OrderDelivered event", zap.Error(perr))
	}
	s.logger.Info("Delivery completed",
		zap.Int64("pickup_request_item_id", priID), zap.Int64("rider_user_id", riderUserID))
	return item, nil
}
