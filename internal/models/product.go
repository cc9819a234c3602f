package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is the merchant's catalog entry for a sellable SKU. Report rows
// whose SKU has no catalog entry are skipped during sync instead of
// creating orphan items.
type Product struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SKU       string         `gorm:"uniqueIndex;not null;size:64" json:"sku"`
	ASIN      string         `gorm:"index;size:16" json:"asin"`
	Title     string         `gorm:"not null" json:"title"`
	Price     float64        `json:"price"`
	Cost      float64        `json:"cost"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Product model
func (Product) TableName() string {
	return "products"
}
