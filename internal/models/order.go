package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus defines the normalized set of marketplace order statuses
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// NormalizeOrderStatus maps raw provider status strings to the local enum
func NormalizeOrderStatus(raw string) OrderStatus {
	switch raw {
	case "Shipped", "PartiallyShipped", "InvoiceUnconfirmed":
		return OrderStatusShipped
	case "Delivered":
		return OrderStatusDelivered
	case "Canceled", "Cancelled":
		return OrderStatusCancelled
	default:
		return OrderStatusPending
	}
}

// Order represents a marketplace order synced from the provider's reports.
// The marketplace order id is the natural primary key: the first sighting
// creates the row, later sightings only touch the mutable fields.
type Order struct {
	AmazonOrderID string      `gorm:"primaryKey;size:32" json:"amazon_order_id"`
	PurchaseDate  *time.Time  `gorm:"index" json:"purchase_date,omitempty"`
	ShipDate      *time.Time  `json:"ship_date,omitempty"`
	Status        OrderStatus `gorm:"type:varchar(20);default:'Pending';index" json:"status"`

	// Totals
	OrderTotal float64 `json:"order_total"`
	Currency   string  `gorm:"size:8" json:"currency"`

	// Shipping address
	BuyerName      string `json:"buyer_name"`
	ShipCity       string `json:"ship_city"`
	ShipState      string `json:"ship_state"`
	ShipPostalCode string `gorm:"size:20" json:"ship_postal_code"`
	ShipCountry    string `gorm:"size:4" json:"ship_country"`

	SalesChannel string `json:"sales_channel"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Items []OrderItem `gorm:"foreignKey:AmazonOrderID;references:AmazonOrderID" json:"items,omitempty"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "orders"
}

// OrderItem represents one line of an order, keyed by (order id, SKU).
// Quantity and price hold the latest values seen for the key, they are
// never accumulated across report runs.
type OrderItem struct {
	AmazonOrderID string `gorm:"primaryKey;size:32" json:"amazon_order_id"`
	SKU           string `gorm:"primaryKey;size:64" json:"sku"`

	ASIN        string  `gorm:"size:16" json:"asin"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	ItemPrice   float64 `json:"item_price"`
	ItemTax     float64 `json:"item_tax"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}
