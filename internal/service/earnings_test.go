package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuildEarningsView(t *testing.T) {
	view := buildEarningsView(3, 5, d("100"), d("50"), d("200"), d("100"))

	assert.Equal(t, 3, view.CompletedPickups)
	assert.Equal(t, 5, view.DeliveredItems)
	assert.True(t, d("300").Equal(view.PickupEarnings))
	assert.True(t, d("250").Equal(view.DeliveryEarnings))
	assert.True(t, d("550").Equal(view.TotalEarned))
	assert.True(t, d("200").Equal(view.TotalPaid))
	assert.True(t, d("100").Equal(view.PendingPayouts))
	assert.True(t, d("250").Equal(view.AvailableBalance))
}

func TestBuildEarningsViewZeroActivity(t *testing.T) {
	view := buildEarningsView(0, 0, d("100"), d("50"), decimal.Zero, decimal.Zero)

	assert.True(t, view.TotalEarned.IsZero())
	assert.True(t, view.AvailableBalance.IsZero())
}

func TestBuildEarningsViewClampsNegativeBalance(t *testing.T) {
	// overdrawn history (paid more than earned) never goes negative
	view := buildEarningsView(1, 0, d("100"), d("50"), d("500"), decimal.Zero)

	assert.True(t, d("100").Equal(view.TotalEarned))
	assert.True(t, view.AvailableBalance.IsZero())
}

func TestBuildEarningsViewPendingReservesBalance(t *testing.T) {
	// one completed pickup, one delivered item: 100 + 50
	view := buildEarningsView(1, 1, d("100"), d("50"), decimal.Zero, d("150"))

	assert.True(t, d("150").Equal(view.TotalEarned))
	assert.True(t, view.AvailableBalance.IsZero())
}
