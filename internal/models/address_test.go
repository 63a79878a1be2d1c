package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippingAddressUnknownKeysSurviveRoundTrip(t *testing.T) {
	stored := []byte(`{
		"firstName": "Ana",
		"city": "Quezon City",
		"barangay": "Batasan Hills",
		"landmark": "beside the bakery",
		"_delivery_meta": {"payment_received": true}
	}`)

	var addr ShippingAddress
	require.NoError(t, json.Unmarshal(stored, &addr))
	assert.Equal(t, "Ana", addr.FirstName)
	assert.Equal(t, "Quezon City", addr.City)
	require.NotNil(t, addr.DeliveryMeta)
	assert.True(t, addr.DeliveryMeta.PaymentReceived)

	addr.City = "Makati"
	out, err := json.Marshal(addr)
	require.NoError(t, err)

	var back map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &back))
	assert.JSONEq(t, `"Batasan Hills"`, string(back["barangay"]))
	assert.JSONEq(t, `"beside the bakery"`, string(back["landmark"]))
	assert.JSONEq(t, `"Makati"`, string(back["city"]))
}

func TestShippingAddressMetaLazyAllocation(t *testing.T) {
	var addr ShippingAddress
	assert.Nil(t, addr.DeliveryMeta)

	rider := int64(42)
	addr.Meta().DeliveryRiderID = &rider

	require.NotNil(t, addr.DeliveryMeta)
	assert.Equal(t, rider, *addr.DeliveryMeta.DeliveryRiderID)
	// second call returns the same allocation
	assert.Same(t, addr.DeliveryMeta, addr.Meta())
}

func TestShippingAddressInventoryFlagRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	addr := ShippingAddress{City: "Cebu"}
	addr.InventoryDeducted = true
	addr.InventoryDeductedAt = &now

	out, err := json.Marshal(addr)
	require.NoError(t, err)

	var back ShippingAddress
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.InventoryDeducted)
	require.NotNil(t, back.InventoryDeductedAt)
	assert.True(t, now.Equal(*back.InventoryDeductedAt))
}

func TestShippingAddressScan(t *testing.T) {
	var addr ShippingAddress
	require.NoError(t, addr.Scan([]byte(`{"city":"Davao"}`)))
	assert.Equal(t, "Davao", addr.City)

	require.NoError(t, addr.Scan(`{"city":"Iloilo"}`))
	assert.Equal(t, "Iloilo", addr.City)

	require.NoError(t, addr.Scan(nil))
	assert.Empty(t, addr.City)

	assert.Error(t, addr.Scan(12345))
}

func TestShippingAddressValueOmitsEmptyMeta(t *testing.T) {
	addr := ShippingAddress{City: "Manila"}
	v, err := addr.Value()
	require.NoError(t, err)

	var back map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(v.([]byte), &back))
	assert.NotContains(t, back, "_delivery_meta")
	assert.NotContains(t, back, "_inventory_deducted")
}
