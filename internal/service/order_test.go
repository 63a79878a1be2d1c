package service

import (
	"testing"
	"time"

	"dione/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestShippingFee(t *testing.T) {
	threshold := d("1500")
	fee := d("150")

	assert.True(t, shippingFee(d("0"), threshold, fee).IsZero())
	assert.True(t, fee.Equal(shippingFee(d("0.01"), threshold, fee)))
	assert.True(t, fee.Equal(shippingFee(d("1499.99"), threshold, fee)))
	// free shipping exactly at the threshold
	assert.True(t, shippingFee(d("1500"), threshold, fee).IsZero())
	assert.True(t, shippingFee(d("2500"), threshold, fee).IsZero())
}

func TestOrderNumberBase(t *testing.T) {
	at := time.Date(2026, 2, 3, 14, 5, 6, 0, time.UTC)
	assert.Equal(t, "DIO-20260203140506-12", orderNumberBase(at, 12))

	// non-UTC input normalizes
	manila := time.FixedZone("PHT", 8*3600)
	assert.Equal(t, "DIO-20260203140506-12", orderNumberBase(at.In(manila), 12))
}

func TestCardLastFour(t *testing.T) {
	assert.Equal(t, "4242", cardLastFour("4242 4242 4242 4242"))
	assert.Equal(t, "1111", cardLastFour("4111-1111-1111-1111"))
	assert.Equal(t, "123", cardLastFour("123"))
	assert.Equal(t, "", cardLastFour(""))
	assert.Equal(t, "9876", cardLastFour("abc9876"))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, validPaymentMethod("cod"))
	assert.True(t, validPaymentMethod("card"))
	assert.True(t, validPaymentMethod("gcash"))
	assert.False(t, validPaymentMethod("paypal"))
	assert.False(t, validPaymentMethod(""))
	assert.False(t, validPaymentMethod("COD"))
}

func TestLockOrderProductIDs(t *testing.T) {
	line := func(productID int64) models.CartLineView {
		return models.CartLineView{CartLine: models.CartLine{ProductID: productID}}
	}

	ids := lockOrderProductIDs([]models.CartLineView{line(9), line(3), line(9), line(1)})
	assert.Equal(t, []int64{1, 3, 9}, ids)

	// two carts sharing products acquire locks in the same order
	again := lockOrderProductIDs([]models.CartLineView{line(1), line(9), line(3)})
	assert.Equal(t, ids, again)

	assert.Empty(t, lockOrderProductIDs(nil))
}
