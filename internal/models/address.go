package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryMeta is the dispatch sub-state embedded in an order's shipping
// address under the "_delivery_meta" key.
type DeliveryMeta struct {
	DeliveryRiderID     *int64           `json:"delivery_rider_id,omitempty"`
	DeliveryAssignedAt  *time.Time       `json:"delivery_assigned_at,omitempty"`
	PickupCompletedAt   *time.Time       `json:"pickup_completed_at,omitempty"`
	PickupCompletedBy   *int64           `json:"pickup_completed_by,omitempty"`
	ToReceiveTodayAt    *time.Time       `json:"to_receive_today_at,omitempty"`
	DeliveryProofURL    string           `json:"delivery_proof_url,omitempty"`
	PaymentReceived     bool             `json:"payment_received,omitempty"`
	PaymentReceivedAt   *time.Time       `json:"payment_received_at,omitempty"`
	DeliveryCompletedAt *time.Time       `json:"delivery_completed_at,omitempty"`
	CommissionAwarded   bool             `json:"commission_awarded,omitempty"`
	CommissionAmount    *decimal.Decimal `json:"commission_amount,omitempty"`
}

// ShippingAddress is stored as a JSON column. Besides the address fields it
// carries "_delivery_meta" and the "_inventory_deducted" one-shot flag.
// Unknown keys written by older revisions survive a load/store round trip.
type ShippingAddress struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"address,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`

	DeliveryMeta        *DeliveryMeta `json:"_delivery_meta,omitempty"`
	InventoryDeducted   bool          `json:"_inventory_deducted,omitempty"`
	InventoryDeductedAt *time.Time    `json:"_inventory_deducted_at,omitempty"`

	extra map[string]json.RawMessage
}

// knownAddressKeys are the fields the struct owns; everything else is kept
// verbatim in extra.
var knownAddressKeys = map[string]bool{
	"firstName": true, "lastName": true, "email": true, "address": true,
	"apartment": true, "city": true, "state": true, "zipCode": true,
	"phone": true, "country": true,
	"_delivery_meta": true, "_inventory_deducted": true, "_inventory_deducted_at": true,
}

func (a *ShippingAddress) UnmarshalJSON(data []byte) error {
	type plain ShippingAddress
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownAddressKeys[key] {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		p.extra = raw
	}

	*a = ShippingAddress(p)
	return nil
}

func (a ShippingAddress) MarshalJSON() ([]byte, error) {
	type plain ShippingAddress
	known, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}
	if len(a.extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for key, val := range a.extra {
		merged[key] = val
	}
	return json.Marshal(merged)
}

// Meta returns the delivery meta, allocating it on first use so dispatch
// writes can stamp fields without nil checks.
func (a *ShippingAddress) Meta() *DeliveryMeta {
	if a.DeliveryMeta == nil {
		a.DeliveryMeta = &DeliveryMeta{}
	}
	return a.DeliveryMeta
}

func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ShippingAddress) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = ShippingAddress{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("cannot scan %T into ShippingAddress", src)
	}
}
