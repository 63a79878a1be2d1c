package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleRider  = "rider"
	RoleAdmin  = "admin"
)

// User is a marketplace account. Sellers carry a business name shown when
// grouping cart lines by store.
type User struct {
	ID           int64          `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	Role         string         `db:"role" json:"role"`
	PendingRole  sql.NullString `db:"pending_role" json:"pending_role,omitempty"`
	BusinessName sql.NullString `db:"business_name" json:"business_name,omitempty"`
	IsApproved   bool           `db:"is_approved" json:"is_approved"`
	IsSuspended  bool           `db:"is_suspended" json:"is_suspended"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Product statuses
const (
	ProductStatusDraft      = "draft"
	ProductStatusActive     = "active"
	ProductStatusInactive   = "inactive"
	ProductStatusOutOfStock = "out-of-stock"
)

// Product is a catalog entry owned by one seller. TotalStock mirrors the sum
// of variant_sizes.stock_quantity whenever normalized variants exist; the
// variants column is a legacy denormalized blob kept readable for old rows.
type Product struct {
	ID                int64               `db:"id" json:"id"`
	SellerUserID      int64               `db:"seller_user_id" json:"seller_user_id"`
	Name              string              `db:"name" json:"name"`
	Category          string              `db:"category" json:"category"`
	Subcategory       string              `db:"subcategory" json:"subcategory"`
	Price             decimal.Decimal     `db:"price" json:"price"`
	CompareAtPrice    decimal.NullDecimal `db:"compare_at_price" json:"compare_at_price,omitempty"`
	PrimaryImage      string              `db:"primary_image" json:"primary_image"`
	SecondaryImage    sql.NullString      `db:"secondary_image" json:"secondary_image,omitempty"`
	Materials         sql.NullString      `db:"materials" json:"materials,omitempty"`
	Details           sql.NullString      `db:"details" json:"details,omitempty"`
	Attributes        json.RawMessage     `db:"attributes" json:"attributes,omitempty"`
	LegacyVariants    json.RawMessage     `db:"variants" json:"-"`
	Status            string              `db:"status" json:"status"`
	TotalStock        int                 `db:"total_stock" json:"total_stock"`
	LowStockThreshold int                 `db:"low_stock_threshold" json:"low_stock_threshold"`
	BaseSKU           sql.NullString      `db:"base_sku" json:"base_sku,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
}

// Variant is a color-specific facet of a product, unique per color name.
type Variant struct {
	ID        int64          `db:"id" json:"id"`
	ProductID int64          `db:"product_id" json:"product_id"`
	ColorName string         `db:"color_name" json:"color_name"`
	ColorHex  sql.NullString `db:"color_hex" json:"color_hex,omitempty"`
	Images    pq.StringArray `db:"images" json:"images"`
}

// VariantSize is the (color, size) stock leaf. Stock never goes negative.
type VariantSize struct {
	ID            int64          `db:"id" json:"id"`
	VariantID     int64          `db:"variant_id" json:"variant_id"`
	SizeLabel     string         `db:"size_label" json:"size_label"`
	StockQuantity int            `db:"stock_quantity" json:"stock_quantity"`
	SKU           sql.NullString `db:"sku" json:"sku,omitempty"`
}

// CartLine is one (owner, product, color, size) basket row. Exactly one of
// UserID / SessionID is set; the database enforces the XOR with a check
// constraint. UnitPrice is a snapshot taken at add time and is informational
// only; placement re-reads the catalog.
type CartLine struct {
	ID           int64           `db:"id" json:"id"`
	UserID       sql.NullInt64   `db:"user_id" json:"user_id,omitempty"`
	SessionID    sql.NullString  `db:"session_id" json:"session_id,omitempty"`
	ProductID    int64           `db:"product_id" json:"product_id"`
	SellerID     int64           `db:"seller_id" json:"seller_id"`
	Color        string          `db:"color" json:"color"`
	Size         string          `db:"size" json:"size"`
	Quantity     int             `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	VariantImage string          `db:"variant_image" json:"variant_image"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// CartLineView is a cart line joined with the seller's store name for
// grouping on the cart screen.
type CartLineView struct {
	CartLine
	ProductName string         `db:"product_name" json:"product_name"`
	StoreName   sql.NullString `db:"store_name" json:"store_name,omitempty"`
}

// Order statuses (dispatch-visible subset).
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusInTransit      = "in_transit"
	OrderStatusToReceiveToday = "to_receive_today"
	OrderStatusDelivered      = "delivered"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// Payment methods
const (
	PaymentMethodCOD   = "cod"
	PaymentMethodCard  = "card"
	PaymentMethodGcash = "gcash"
)

// Order belongs to exactly one seller. ShippingAddress is a JSON column that
// additionally carries the dispatch sub-state and the inventory-deduction
// flag; see ShippingAddress.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	BuyerID         int64           `db:"buyer_id" json:"buyer_id"`
	SellerID        int64           `db:"seller_id" json:"seller_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	ShippingFee     decimal.Decimal `db:"shipping_fee" json:"shipping_fee"`
	Tax             decimal.Decimal `db:"tax" json:"tax"`
	Discount        decimal.Decimal `db:"discount" json:"discount"`
	Status          string          `db:"status" json:"status"`
	PaymentStatus   string          `db:"payment_status" json:"payment_status"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	ShippingAddress ShippingAddress `db:"shipping_address" json:"shipping_address"`
	BillingAddress  json.RawMessage `db:"billing_address" json:"billing_address,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	ShippedAt       *time.Time      `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
}

// OrderItem snapshots product name, image and price at placement time.
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	ProductID    int64           `db:"product_id" json:"product_id"`
	SellerID     int64           `db:"seller_id" json:"seller_id"`
	ProductName  string          `db:"product_name" json:"product_name"`
	ProductImage string          `db:"product_image" json:"product_image"`
	VariantName  string          `db:"variant_name" json:"variant_name"`
	Color        string          `db:"color" json:"color"`
	Size         string          `db:"size" json:"size"`
	Quantity     int             `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice   decimal.Decimal `db:"total_price" json:"total_price"`
	IsReviewed   bool            `db:"is_reviewed" json:"is_reviewed"`
}

// PickupRequest statuses
const (
	PickupStatusPending   = "pending"
	PickupStatusAssigned  = "assigned"
	PickupStatusPickedUp  = "picked_up"
	PickupStatusCompleted = "completed"
	PickupStatusCancelled = "cancelled"
)

// PickupRequest is a seller-created task to hand parcels to a rider.
type PickupRequest struct {
	ID                 int64         `db:"id" json:"id"`
	RequestNumber      string        `db:"request_number" json:"request_number"`
	SellerID           int64         `db:"seller_id" json:"seller_id"`
	RiderUserID        sql.NullInt64 `db:"rider_user_id" json:"rider_user_id,omitempty"`
	PickupAddress      string        `db:"pickup_address" json:"pickup_address"`
	PickupContactName  string        `db:"pickup_contact_name" json:"pickup_contact_name"`
	PickupContactPhone string        `db:"pickup_contact_phone" json:"pickup_contact_phone"`
	Status             string        `db:"status" json:"status"`
	RequestedAt        time.Time     `db:"requested_at" json:"requested_at"`
	AssignedAt         *time.Time    `db:"assigned_at" json:"assigned_at,omitempty"`
	PickedUpAt         *time.Time    `db:"picked_up_at" json:"picked_up_at,omitempty"`
	CompletedAt        *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

// PickupRequestItem statuses
const (
	PickupItemStatusPending          = "pending"
	PickupItemStatusReadyForDelivery = "ready_for_delivery"
	PickupItemStatusDeliveryAssigned = "delivery_assigned"
	PickupItemStatusDeliveryRejected = "delivery_rejected"
	PickupItemStatusToReceiveToday   = "to_receive_today"
	PickupItemStatusDelivered        = "delivered"
)

// PickupRequestItem carries one order within a pickup request. An order
// participates in at most one active item.
type PickupRequestItem struct {
	ID              int64          `db:"id" json:"id"`
	PickupRequestID int64          `db:"pickup_request_id" json:"pickup_request_id"`
	OrderID         int64          `db:"order_id" json:"order_id"`
	PackageCount    int            `db:"package_count" json:"package_count"`
	Status          string         `db:"status" json:"status"`
	ProofPhotoURL   sql.NullString `db:"proof_photo_url" json:"proof_photo_url,omitempty"`
	RiderNotes      sql.NullString `db:"rider_notes" json:"rider_notes,omitempty"`
}

// Rider shift values. Legacy "available"/"on-duty" still occur in old rows
// and count as active; legacy "off-duty" counts as off.
const (
	ShiftOff   = "off_shift"
	ShiftDay   = "day"
	ShiftSwing = "swing"
	ShiftNight = "night"
)

// RiderProfile holds the rider's vehicle, shift and coverage configuration.
type RiderProfile struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	Phone              string    `db:"phone" json:"phone"`
	LicenseNumber      string    `db:"license_number" json:"license_number"`
	VehicleType        string    `db:"vehicle_type" json:"vehicle_type"`
	VehicleNumber      string    `db:"vehicle_number" json:"vehicle_number"`
	AvailabilityStatus string    `db:"availability_status" json:"availability_status"`
	CurrentLocation    string    `db:"current_location" json:"current_location"`
	DeliveryZones      string    `db:"delivery_zones" json:"delivery_zones"`
	TotalDeliveries    int       `db:"total_deliveries" json:"total_deliveries"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Payout statuses
const (
	PayoutStatusPending  = "pending"
	PayoutStatusPaid     = "paid"
	PayoutStatusRejected = "rejected"
)

// PayoutRequest is a rider withdrawal settled by an admin.
type PayoutRequest struct {
	ID                 int64           `db:"id" json:"id"`
	RiderProfileID     int64           `db:"rider_profile_id" json:"rider_profile_id"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	Status             string          `db:"status" json:"status"`
	GcashName          string          `db:"gcash_name" json:"gcash_name"`
	GcashNumber        string          `db:"gcash_number" json:"gcash_number"`
	Notes              sql.NullString  `db:"notes" json:"notes,omitempty"`
	AdminNotes         sql.NullString  `db:"admin_notes" json:"admin_notes,omitempty"`
	ReferenceCode      sql.NullString  `db:"reference_code" json:"reference_code,omitempty"`
	RequestedAt        time.Time       `db:"requested_at" json:"requested_at"`
	ProcessedAt        *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedByAdminID sql.NullInt64   `db:"processed_by_admin_id" json:"processed_by_admin_id,omitempty"`
}

// Review is a buyer rating for one order item; at most one per item.
type Review struct {
	ID          int64          `db:"id" json:"id"`
	OrderItemID int64          `db:"order_item_id" json:"order_item_id"`
	ProductID   int64          `db:"product_id" json:"product_id"`
	BuyerID     int64          `db:"buyer_id" json:"buyer_id"`
	Rating      int            `db:"rating" json:"rating"`
	Title       string         `db:"title" json:"title"`
	Body        string         `db:"body" json:"body"`
	Images      pq.StringArray `db:"images" json:"images"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
