package service

import (
	"testing"

	"dione/internal/apperr"
	"dione/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryAcceptable(t *testing.T) {
	assert.True(t, deliveryAcceptable(models.PickupItemStatusReadyForDelivery))
	assert.True(t, deliveryAcceptable(models.PickupItemStatusDeliveryRejected))
	// legacy rows written before the rename
	assert.True(t, deliveryAcceptable("picked_up"))

	assert.False(t, deliveryAcceptable(models.PickupItemStatusPending))
	assert.False(t, deliveryAcceptable(models.PickupItemStatusDeliveryAssigned))
	assert.False(t, deliveryAcceptable(models.PickupItemStatusDelivered))
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	err := errInvalidTransition("accept_pickup")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAssigneeOf(t *testing.T) {
	order := &models.Order{}
	assert.Zero(t, assigneeOf(order))

	rider := int64(17)
	order.ShippingAddress.Meta().DeliveryRiderID = &rider
	assert.Equal(t, rider, assigneeOf(order))
}
