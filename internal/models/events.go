package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeOrderCancelled  = "ORDER_CANCELLED"
	EventTypePickupCompleted = "PICKUP_COMPLETED"
	EventTypeOrderDelivered  = "ORDER_DELIVERED"
	EventTypeOrderCompleted  = "ORDER_COMPLETED"
	EventTypePayoutProcessed = "PAYOUT_PROCESSED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLineData represents item data in events
type OrderLineData struct {
	ProductID int64           `json:"product_id"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderPlacedEvent is published once per created order after the placement
// transaction commits.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BuyerID     int64           `json:"buyer_id"`
	SellerID    int64           `json:"seller_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderLineData `json:"items"`
}

// PickupCompletedEvent is published when a rider completes a pickup request.
type PickupCompletedEvent struct {
	BaseEvent
	PickupRequestID int64   `json:"pickup_request_id"`
	RiderUserID     int64   `json:"rider_user_id"`
	OrderIDs        []int64 `json:"order_ids"`
}

// OrderDeliveredEvent is published when a rider completes a delivery.
type OrderDeliveredEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	RiderUserID int64  `json:"rider_user_id"`
	ProofURL    string `json:"proof_url"`
}

// OrderCompletedEvent is published when a delivered order auto-advances to
// completed. ProductIDs lets consumers refresh stock caches.
type OrderCompletedEvent struct {
	BaseEvent
	OrderID    int64   `json:"order_id"`
	BuyerID    int64   `json:"buyer_id"`
	ProductIDs []int64 `json:"product_ids"`
}

// PayoutProcessedEvent is published when an admin settles a payout request.
type PayoutProcessedEvent struct {
	BaseEvent
	PayoutRequestID int64           `json:"payout_request_id"`
	RiderProfileID  int64           `json:"rider_profile_id"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
}
