package service

import (
	"testing"

	"dione/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestOnActiveShift(t *testing.T) {
	var p DispatchPolicy

	for _, active := range []string{"day", "swing", "night", "DAY", " night ", "available", "on-duty"} {
		assert.True(t, p.OnActiveShift(active), active)
	}
	for _, off := range []string{"off_shift", "off-duty", "", "vacation", "unknown"} {
		assert.False(t, p.OnActiveShift(off), off)
	}
}

func rider(location, zones string) *models.RiderProfile {
	return &models.RiderProfile{CurrentLocation: location, DeliveryZones: zones}
}

func TestCoversCityMatch(t *testing.T) {
	var p DispatchPolicy
	target := CoverageTarget{City: "Quezon City", Province: "Metro Manila"}

	assert.True(t, p.Covers(rider("Quezon City", ""), target))
	assert.True(t, p.Covers(rider("quezon city", ""), target))
	assert.True(t, p.Covers(rider("", "Makati, Quezon City"), target))
	assert.True(t, p.Covers(rider("Pasig", "Metro Manila"), target))
	assert.False(t, p.Covers(rider("Cebu City", "Cebu"), target))
}

func TestCoversEmptyZonesMatchAll(t *testing.T) {
	var p DispatchPolicy
	assert.True(t, p.Covers(rider("", ""), CoverageTarget{City: "Davao"}))
	assert.True(t, p.Covers(rider(" , ", ""), CoverageTarget{City: "Davao"}))
}

func TestCoversAddressSegments(t *testing.T) {
	var p DispatchPolicy
	target := CoverageTarget{Address: "12 Mabini St, Poblacion, Makati"}

	assert.True(t, p.Covers(rider("Makati", ""), target))
	assert.True(t, p.Covers(rider("Brgy Poblacion", ""), target))
	assert.False(t, p.Covers(rider("Taguig", ""), target))
}

func TestTargetFromAddress(t *testing.T) {
	addr := &models.ShippingAddress{
		City:    "Iloilo City",
		State:   "Iloilo",
		Address: "88 Diversion Rd, Mandurriao",
	}
	target := TargetFromAddress(addr)
	assert.Equal(t, "Iloilo City", target.City)
	assert.Equal(t, "Iloilo", target.Province)
	assert.Contains(t, target.tokens(), "mandurriao")
}

func TestVisibleRequiresBothGates(t *testing.T) {
	var p DispatchPolicy
	target := CoverageTarget{City: "Baguio"}

	onShift := rider("Baguio", "")
	onShift.AvailabilityStatus = "day"
	assert.True(t, p.Visible(onShift, target))

	offShift := rider("Baguio", "")
	offShift.AvailabilityStatus = "off_shift"
	assert.False(t, p.Visible(offShift, target))

	wrongZone := rider("Cebu City", "")
	wrongZone.AvailabilityStatus = "day"
	assert.False(t, p.Visible(wrongZone, target))
}
